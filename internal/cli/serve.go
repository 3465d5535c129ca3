package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/api"
	"github.com/nerrad567/gray-logic-integrations/internal/audit"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-integrations/internal/integrations"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

// CommandRefresh is the MQTT command that polls an entry immediately.
const CommandRefresh = "refresh"

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the integration service and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// runServe starts every backend, loads the stored entries and blocks until
// ctx is cancelled. Deferred closes run in reverse order of startup.
func runServe(ctx context.Context, opts *options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Integrations",
		"version", opts.build.Version,
		"commit", opts.build.Commit,
		"build_date", opts.build.Date,
	)

	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}
	log = logging.New(cfg.Logging, opts.build.Version)
	log.Info("configuration loaded", "path", opts.path(), "level", cfg.Logging.Level)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	entries := entry.NewSQLiteRepository(db.DB)
	auditLog := audit.NewSQLiteRepository(db.DB)
	flows := flow.NewManager(entries, cfg.Integrations.Flows.TTL)
	flows.SetLogger(log)
	flows.StartSweeper(0)
	defer flows.Close()

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	fanout := integrations.NewFanout(hub)

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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		fanout.Add(integrations.MQTTPublisher{Client: mqttClient})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		fanout.Add(integrations.InfluxPublisher{Client: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	mgr := integrations.NewManager(entries, flows, fanout)
	mgr.SetLogger(log)
	for _, in := range buildIntegrations(cfg, opts, log) {
		if err := mgr.Register(in); err != nil {
			return fmt.Errorf("registering %s: %w", in.Domain(), err)
		}
	}
	defer func() {
		log.Info("stopping integrations")
		mgr.StopAll()
	}()

	loaded, err := mgr.SetupAll(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	log.Info("entries loaded", "count", loaded)

	if mqttClient != nil {
		if err := mqttClient.SubscribeCommands(commandHandler(ctx, mgr, auditLog)); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	}

	deps := api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Site:         cfg.Site,
		Security:     cfg.Security,
		Logger:       log,
		Flows:        flows,
		Integrations: mgr,
		Entries:      entries,
		Audit:        auditLog,
		DB:           db.DB,
		Hub:          hub,
		Version:      opts.build.Version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadServeConfig loads and validates the config file. Unlike the other
// commands, serve never runs on built-in defaults.
func loadServeConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.path())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the entry store and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: time.Duration(cfg.BusyTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// refresher is the part of *integrations.Manager driven by MQTT commands.
type refresher interface {
	Refresh(ctx context.Context, entryID string) error
}

// commandHandler runs entry commands received over MQTT.
func commandHandler(ctx context.Context, r refresher, rec audit.Recorder) func(mqtt.Command) error {
	return func(c mqtt.Command) error {
		switch c.Name {
		case CommandRefresh:
			if err := r.Refresh(ctx, c.EntryID); err != nil {
				return fmt.Errorf("refreshing %s entry %s: %w", c.Domain, c.EntryID, err)
			}
			return rec.Record(ctx, &audit.Record{
				Action:  audit.ActionEntryRefreshed,
				Domain:  c.Domain,
				EntryID: c.EntryID,
				Source:  audit.SourceMQTT,
			})
		default:
			return fmt.Errorf("unknown command %q for %s entry %s", c.Name, c.Domain, c.EntryID)
		}
	}
}

// healthCheck verifies the backends the service depends on. influxClient
// and mqttClient may be nil when disabled.
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
