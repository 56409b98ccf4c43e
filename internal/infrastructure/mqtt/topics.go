package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "ledger"

// Topics builds Ledger Core topic names under a common prefix:
//
//	<prefix>/auth/<action>    authentication events
//	<prefix>/system/status    retained online/offline status
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// AuthEvent returns the topic for an authentication event.
//
// Example: ledger/auth/login_succeeded
func (t Topics) AuthEvent(action string) string {
	return t.prefix + "/auth/" + action
}

// AllAuthEvents returns the wildcard matching every authentication event.
func (t Topics) AllAuthEvents() string {
	return t.prefix + "/auth/+"
}

// SystemStatus returns the retained status topic.
//
// Example: ledger/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}
