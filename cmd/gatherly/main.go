// Gatherly Core - collaborative event photo sharing backend
//
// This is the main entry point for the Gatherly Core service. It wires
// the SQLite stores, the access control layer, the share link engine,
// and the HTTP API together, with optional MQTT notifications and
// InfluxDB engagement metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mwrenholt/gatherly-core/migrations"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/api"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/clock"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/config"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/database"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/influxdb"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/logging"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/mqtt"
	"github.com/mwrenholt/gatherly-core/internal/media"
	"github.com/mwrenholt/gatherly-core/internal/notify"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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

// run is the actual application logic, separated from main for
// testability. Returning an error lets main handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gatherly Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and migrate
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Domain stores
	events := event.NewSQLiteRepository(db.DB)
	participants := participant.NewSQLiteRepository(db.DB)
	tokens := sharetoken.NewSQLiteRepository(db.DB)
	mediaRepo := media.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Access control layer
	clk := clock.System()
	validator := sharetoken.NewValidator(tokens, clk)
	checker := access.NewChecker(events, participants, validator, clk, log.Logger)
	engine := event.NewEngine(events, clk,
		time.Duration(cfg.Sharing.ForceLoginGraceHours)*time.Hour)
	accessService := access.NewService(checker, engine)

	// MQTT notification bus (optional)
	var notifier *notify.Notifier
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Logger)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// #nosec G115 -- QoS validated to 0..2 by config
		notifier = notify.New(mqttClient, byte(cfg.MQTT.QoS), log.Logger)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB engagement metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		Sharing:      cfg.Sharing,
		Logger:       log,
		Identity:     identity.NewResolver(cfg.Security.JWT.Secret),
		Access:       accessService,
		Events:       events,
		Participants: participants,
		Tokens:       tokens,
		Media:        mediaRepo,
		Audit:        auditRepo,
		Notifier:     notifier,
		Metrics:      influxClient,
		Clock:        clk,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gatherly Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the GATHERLY_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("GATHERLY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections. MQTT and InfluxDB
// are nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
