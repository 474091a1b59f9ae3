// PJLink bridge
//
// Connects one PJLink class 1 projector to the Gray Logic bus: projector
// status is mirrored into named slots, published on MQTT, persisted in
// SQLite, optionally recorded in InfluxDB and served over HTTP/WebSocket.
// Writes to the power, input and mute slots become projector commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-pjlink/migrations"

	"github.com/nerrad567/gray-logic-pjlink/internal/api"
	"github.com/nerrad567/gray-logic-pjlink/internal/bridges/projector"
	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pjlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-pjlink/internal/pjlink"
	"github.com/nerrad567/gray-logic-pjlink/internal/state"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/pjlink-bridge.yaml"
	configEnvVar      = "PJLINK_BRIDGE_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until ctx is cancelled. Components are
// torn down in reverse start order by the deferred closes.
func run(ctx context.Context, args []string) error { //nolint:gocognit,gocyclo // linear startup sequence
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	configPath := opts.configPath

	log := logging.Default()
	log.Info("starting PJLink bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("device_id", cfg.Bridge.DeviceID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if opts.migrateDown {
		return rollbackMigration(ctx, cfg.Database, log)
	}

	store := state.NewStore()
	store.SetLogger(log)
	defer store.Close()

	// SQLite (optional): restore slots created in earlier runs.
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database, store, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	} else {
		log.Info("database disabled, slots will not persist")
	}

	transport := pjlink.New(pjlink.Options{
		Host:     cfg.Projector.Host,
		Port:     cfg.Projector.Port,
		Password: cfg.Projector.Password.Value(),
		Timeout:  cfg.Projector.Timeout,
	})
	transport.SetLogger(log.With("component", "pjlink"))

	session, err := projector.NewSession(projector.Options{
		Config: projector.Config{
			ReconnectDelay:     cfg.Projector.ReconnectDelay,
			StatusPollInterval: cfg.Projector.StatusPollInterval,
			InfoPollInterval:   cfg.Projector.InfoPollInterval,
		},
		Transport: transport,
		Store:     store,
		Logger:    log.With("component", "session"),
	})
	if err != nil {
		//nolint:errcheck // nothing was sent yet
		transport.Close()
		return fmt.Errorf("creating projector session: %w", err)
	}

	var topics mqtt.Topics
	health := projector.NewHealthReporter(projector.HealthReporterConfig{
		DeviceID:  cfg.Bridge.DeviceID,
		Version:   version,
		Topic:     topics.Health(cfg.Bridge.DeviceID),
		Session:   session,
		Transport: transport,
		Store:     store,
	})
	health.SetLogger(log.With("component", "health"))

	lwt, err := health.LWTPayload()
	if err != nil {
		return fmt.Errorf("building last will: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Will{
		Topic:   topics.Health(cfg.Bridge.DeviceID),
		Payload: lwt,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mirror := state.NewMQTTMirror(mqttClient, store, cfg.Bridge.DeviceID, byte(cfg.MQTT.QoS)) //nolint:gosec // QoS validated 0-2
	if err := mirror.Start(); err != nil {
		return fmt.Errorf("starting MQTT mirror: %w", err)
	}
	mirror.Republish()
	health.SetPublisher(mqttClient)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		mirror.Republish()
		if pubErr := health.PublishNow(); pubErr != nil {
			log.Warn("publishing health after reconnect failed", "error", pubErr)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB (optional).
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
		store.AddSink(state.NewHistorySink(influxClient, cfg.Bridge.DeviceID))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting projector session: %w", err)
	}
	defer stopSession(session, store, log)
	log.Info("projector session started", "address", transport.Address())

	health.Start(ctx)
	defer health.Stop()

	if cfg.API.Enabled {
		server, apiErr := startAPI(ctx, cfg, store, session, log)
		if apiErr != nil {
			return apiErr
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// stopSession stops the session and then flushes the store, so the final
// info.connection=false reaches MQTT and SQLite before they are closed.
func stopSession(session interface{ Stop() }, store *state.Store, log *logging.Logger) {
	log.Info("stopping projector session")
	session.Stop()
	store.Close()
}

// cliOptions holds the command-line flags.
type cliOptions struct {
	configPath  string
	migrateDown bool
}

// parseFlags reads the flags. The config path is the -config flag, else
// PJLINK_BRIDGE_CONFIG, else the default.
func parseFlags(args []string, output io.Writer) (cliOptions, error) {
	fs := flag.NewFlagSet("pjlinkbridge", flag.ContinueOnError)
	fs.SetOutput(output)

	defaultPath := defaultConfigPath
	if env := os.Getenv(configEnvVar); env != "" {
		defaultPath = env
	}

	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", defaultPath, "path to the YAML or TOML configuration file")
	fs.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the latest database migration and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	return opts, nil
}

// rollbackMigration reverts the most recent migration of the configured
// database.
func rollbackMigration(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) error {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // the process exits next

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	log.Info("latest migration rolled back", "path", cfg.Path)
	return nil
}

// openDatabase opens and migrates SQLite, restores persisted slots into the
// store and registers the repository as a sink.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, store *state.Store, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	repo := state.NewRepository(db, log.With("component", "repository"))
	defs, values, err := repo.Load(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("loading persisted slots: %w", err)
	}
	store.Restore(defs, values)
	store.AddSink(repo)

	log.Info("database ready", "path", cfg.Path, "restored_slots", len(defs))
	return db, nil
}

func startAPI(ctx context.Context, cfg *config.Config, store *state.Store, session *projector.Session, log *logging.Logger) (*api.Server, error) {
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.With("component", "api"),
		Store:    store,
		Session:  session,
		DeviceID: cfg.Bridge.DeviceID,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	store.AddSink(server.Hub())

	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return server, nil
}

// healthCheck verifies the infrastructure connections. db and influxClient
// are nil when disabled. The projector is not checked: an unreachable
// projector is a normal, retried condition.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
