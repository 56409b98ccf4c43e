package audit

// Actions recorded for authentication and account events.
const (
	ActionLoginSucceeded  = "login_succeeded"
	ActionLoginFailed     = "login_failed"
	ActionTokenRefreshed  = "token_refreshed"
	ActionRefreshRejected = "refresh_rejected"
	ActionLogout          = "logout"
	ActionUserRegistered  = "user_registered"
	ActionUserUpdated     = "user_updated"
	ActionUserDeleted     = "user_deleted"
	ActionAdminSeeded     = "admin_seeded"
)

// Entity types.
const (
	EntitySession = "session"
	EntityUser    = "user"
)

// Sources.
const (
	SourceAPI    = "api"
	SourceSystem = "system"
)
