// Package logging is the structured logger shared by every Ledger Core
// component.
//
// Logger embeds *slog.Logger and stamps each record with the service name
// and build version. The handler is chosen from configuration:
//
//	logging:
//	  level: info      # debug | info | warn | error
//	  format: json     # json | text
//	  output: stdout   # stdout | stderr
//
// Components take a *Logger by injection and narrow it with With, e.g.
// logger.With("component", "auth"). Tests use Discard.
//
// Attributes whose key names a credential (password, token, secret, cookie,
// authorization) are rewritten to [REDACTED]. This is a backstop: callers
// must still keep plaintext passwords and raw tokens out of log calls. The
// one deliberate exception is the first-boot admin password, which is
// logged once at WARN under generated_password.
package logging
