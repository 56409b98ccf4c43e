// Package audit records authentication and account events to the
// audit_logs table and lists them back for administrators.
//
// Writes go through a Recorder, which queues entries on a bounded channel
// and persists them from a single goroutine so request handlers never wait
// on the database. Entries can also be mirrored to a Publisher such as the
// MQTT client. The trail is best effort: a full queue drops the entry and
// logs a warning.
package audit
