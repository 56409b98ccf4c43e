// Package config loads Ledger Core configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file
// named by LEDGER_CONFIG (default configs/config.yaml), then LEDGER_*
// environment variables. Load finishes with Validate, which reports every
// problem at once so a misconfigured deployment fails on its first start
// rather than one fix at a time.
//
// The security.jwt section deliberately has no defaults. Secret, algorithm
// and both TTLs must be supplied, and the secret belongs in
// LEDGER_JWT_SECRET rather than the file. A refresh cookie with SameSite
// "none" must also be Secure.
//
// The loaded Config is read once during startup and not mutated afterwards;
// rotating the signing key means restarting the process.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	ttl := cfg.AccessTokenTTL()
package config
