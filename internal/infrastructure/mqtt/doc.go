// Package mqtt publishes Ledger Core authentication events to an MQTT broker.
//
// The client connects with auto-reconnect, registers a retained Last Will
// on <prefix>/system/status, and publishes audit entries to
// <prefix>/auth/<action> so other services can react to logins, logouts
// and account changes without polling the audit table.
//
// Publishing is optional: when mqtt.enabled is false the API records
// audit entries to the database only.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishAuthEvent("login_succeeded", payload)
package mqtt
