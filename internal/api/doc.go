// Package api implements the HTTP API for Ledger Core.
//
// Routes:
//
//	GET    /health               status, version, database and mqtt health
//	POST   /auth/register        create a standard-rank account
//	POST   /auth/login           form or JSON credentials, 202 + refresh cookie
//	POST   /auth/refresh         refresh cookie -> new access token
//	POST   /auth/logout          clear the refresh cookie
//	GET    /auth/me              live identity behind the bearer token
//	GET    /users                admin
//	GET    /users/{username}     admin
//	PATCH  /users/{username}     self or admin; rank changes admin only
//	DELETE /users/{username}     self or admin
//	GET    /audit                admin
//	GET    /metrics              admin
//
// # Security
//
// Access tokens travel in "Authorization: Bearer". Refresh tokens travel
// only in an HttpOnly cookie scoped to the refresh path. Admin routes
// re-read the caller's rank from the directory on every request, so a
// demotion takes effect before the access token expires.
//
// Errors use a stable envelope {status, code, message}. Expired tokens
// carry a WWW-Authenticate challenge; an unreachable directory returns
// 503 with Retry-After.
package api
