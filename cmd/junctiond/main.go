// Junction Cloud Core - IoT gateway control plane
//
// This is the main entry point for the Junction control-plane service.
// It tracks the live gateway fleet, brokers gateway access for objects
// and services, and bridges browser sessions onto the object event
// plane over SSE and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/junctionlabs/junction-core/migrations"

	"github.com/junctionlabs/junction-core/internal/api"
	"github.com/junctionlabs/junction-core/internal/broker"
	"github.com/junctionlabs/junction-core/internal/gateway"
	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/database"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/infrastructure/metrics"
	"github.com/junctionlabs/junction-core/internal/infrastructure/mqtt"
	"github.com/junctionlabs/junction-core/internal/protocol"
	"github.com/junctionlabs/junction-core/internal/session"
	"github.com/junctionlabs/junction-core/internal/stream"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Junction Cloud Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the gateway audit log
	db, err := database.Open(database.Config{
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

	// Connect to MQTT broker (optional: without it the control plane
	// still brokers access, but lifecycle announcements and session
	// event streams are disabled)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.Metrics.URL,
			"org", cfg.Metrics.Org,
			"bucket", cfg.Metrics.Bucket,
		)

		metricsClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Gateway registry with audit trail, lifecycle announcements, and gauges
	registry := gateway.NewRegistry(cfg.Registry, log)
	auditLog := gateway.NewAuditLog(db)
	registry.SetAuditor(auditLog)
	if mqttClient != nil {
		registry.SetAnnouncer(mqttClient)
	}
	if metricsClient != nil {
		registry.SetMetrics(metricsClient)
	}
	go registry.Run(ctx)
	log.Info("gateway registry started",
		"heartbeat_timeout", cfg.Registry.HeartbeatTimeout,
		"eviction_grace", cfg.Registry.EvictionGrace,
	)

	// Access broker
	accessBroker := broker.New(cfg.Broker, registry, log)
	if metricsClient != nil {
		accessBroker.SetMetrics(metricsClient)
	}

	// Session store over the object event plane. Without MQTT, sessions
	// fall back to inert in-memory clients so the HTTP surface stays up.
	factory := protocol.Factory(func(params protocol.Params) protocol.Client {
		if mqttClient != nil {
			return protocol.NewMQTTClient(mqttClient, params, log)
		}
		return protocol.NewMemClient()
	})
	sessions := session.NewStore(cfg.Session, factory, log)
	if metricsClient != nil {
		sessions.SetMetrics(metricsClient)
	}

	// Stream binder: one emitter per session, heartbeats on a timer
	binder := stream.NewBinder(cfg.Stream.HeartbeatInterval, log)
	if metricsClient != nil {
		binder.SetMetrics(metricsClient)
	}
	sessions.SetOnClose(binder.Unbind)
	sessions.SetEmitterGate(func(id string) bool {
		_, ok := binder.Get(id)
		return ok
	})
	go sessions.Run(ctx)
	go binder.Run(ctx)
	defer sessions.CloseAll(context.Background())

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Stream:   cfg.Stream,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Audit:    auditLog,
		Broker:   accessBroker,
		Sessions: sessions,
		Binder:   binder,
		Version:  version,
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

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, metricsClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests, drains streams)
	// 2. Session store (closes protocol clients)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Junction Cloud Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses JUNCTION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("JUNCTION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, metricsClient *metrics.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if metricsClient != nil {
		if err := metricsClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
