// Ledger Core - credential issuance and session authentication service.
//
// This is the main entry point. It loads configuration, opens the user
// directory, builds the authentication service and serves the HTTP API
// until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/ledger-core/migrations"

	"github.com/nerrad567/ledger-core/internal/api"
	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
	"github.com/nerrad567/ledger-core/internal/infrastructure/config"
	"github.com/nerrad567/ledger-core/internal/infrastructure/database"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
	"github.com/nerrad567/ledger-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Ledger Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration. Load validates, so a missing signing secret or
	// algorithm stops us here.
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open user directory storage
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", cfg.Database.Driver)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	hasher, err := auth.NewHasher(auth.HasherConfig{
		Algorithm:  cfg.Security.Password.Algorithm,
		BcryptCost: cfg.Security.Password.BcryptCost,
		Workers:    cfg.Security.Password.HashWorkers,
	})
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	userRepo := directory.NewSQLRepository(db)
	users := directory.NewService(userRepo, hasher, log)

	authSvc, err := auth.NewService(auth.ServiceConfig{
		Directory: userRepo,
		Hasher:    hasher,
		Signing: auth.SigningConfig{
			Secret:     []byte(cfg.Security.JWT.Secret),
			Algorithm:  cfg.Security.JWT.Algorithm,
			AccessTTL:  cfg.AccessTokenTTL(),
			RefreshTTL: cfg.RefreshTokenTTL(),
		},
		Cookie: auth.CookiePolicy{
			Name:     cfg.Security.RefreshCookie.Name,
			Path:     cfg.Security.RefreshCookie.Path,
			SameSite: cfg.RefreshCookieSameSite(),
			Secure:   cfg.Security.RefreshCookie.Secure,
		},
		LookupTimeout: cfg.DirectoryTimeout(),
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	guard := auth.NewGuard(userRepo, cfg.DirectoryTimeout())
	log.Info("auth service initialised",
		"algorithm", cfg.Security.JWT.Algorithm,
		"access_ttl", cfg.AccessTokenTTL(),
		"refresh_ttl", cfg.RefreshTokenTTL(),
		"password_hash", hasher.Algorithm(),
	)

	// Optional MQTT mirror for audit events. The interface values stay nil
	// when disabled so the recorder and health endpoint skip it.
	var (
		publisher  audit.Publisher
		mqttHealth api.HealthChecker
	)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := connectMQTT(cfg, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		publisher = mqttClient
		mqttHealth = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	auditRepo := audit.NewSQLRepository(db)
	recorder := audit.NewRecorder(auditRepo, publisher, log, audit.DefaultQueueSize)

	if cfg.Security.SeedAdmin {
		if seedErr := seedAdmin(ctx, userRepo, hasher, recorder, log); seedErr != nil {
			return seedErr
		}
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Auth:      authSvc,
		Guard:     guard,
		Directory: users,
		AuditRepo: auditRepo,
		Recorder:  recorder,
		Database:  db,
		MQTT:      mqttHealth,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	// Registered after the database close, so it runs first and the audit
	// queue drains while the database is still open.
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Ledger Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LEDGER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT connects to the broker and installs logging callbacks.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix(),
	)

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	return client, nil
}

// seedAdmin creates the first administrator when the directory is empty and
// records the event in the audit trail.
func seedAdmin(ctx context.Context, repo *directory.SQLRepository, hasher *auth.Hasher, recorder *audit.Recorder, log *logging.Logger) error {
	password, err := directory.SeedAdmin(ctx, repo, hasher, log)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if password == "" {
		return nil
	}

	admin, err := repo.FindByUsername(ctx, directory.SeedAdminUsername)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return fmt.Errorf("seed admin missing after creation: %w", err)
		}
		return fmt.Errorf("loading seed admin: %w", err)
	}

	recorder.Record(&audit.AuditLog{
		Action:     audit.ActionAdminSeeded,
		EntityType: audit.EntityUser,
		EntityID:   admin.ID,
		Source:     audit.SourceSystem,
		Details:    map[string]any{"username": admin.Username},
	})
	return nil
}
