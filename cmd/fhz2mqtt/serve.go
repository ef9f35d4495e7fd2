package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/fhz2mqtt/migrations"

	"github.com/nerrad567/fhz2mqtt/internal/api"
	"github.com/nerrad567/fhz2mqtt/internal/bridge"
	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/device"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/database"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/serial"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the FHZ to MQTT bridge",
		Long: `Open the transceiver, connect to the MQTT broker and bridge traffic until
interrupted.

Decoded values are published to <namespace>/fht/<house-code>/<kind>/<name>.
Set requests are read from <namespace>/set/fht/<house-code>/<command> and
answered on <namespace>/fht/<house-code>/result/<command>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
}

// run is the bridge service, separated from the command for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded configuration
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config) error {
	started := time.Now()
	log := logging.New(cfg.Logging, version)
	log.Info("starting fhz2mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Thermostat inventory (optional)
	var (
		db       *database.DB
		registry *device.Registry
	)
	if cfg.Database.Enabled {
		var err error
		db, registry, err = openInventory(ctx, cfg, log)
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
		log.Info("thermostat inventory disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
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

	// Frame capture (optional)
	var recorder *capture.Recorder
	if cfg.Capture.Path != "" {
		recorder, err = capture.Create(cfg.Capture.Path)
		if err != nil {
			return fmt.Errorf("opening capture file: %w", err)
		}
		defer func() {
			log.Info("closing capture file", "frames", recorder.Count())
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing capture file", "error", closeErr)
			}
		}()
		log.Info("capturing frames", "path", cfg.Capture.Path)
	}

	// The bridge broadcasts into the hub, so it exists before either the
	// bridge or the API server.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go hub.Run(ctx)
	}

	br, err := bridge.New(buildBridgeOptions(cfg, mqttClient, registry, recorder, hub, log))
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()
	log.Info("bridge started",
		"device", cfg.Serial.Device,
		"namespace", cfg.MQTT.Namespace,
		"dry_run", cfg.Serial.DryRun,
	)

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Bridge:  br,
			DB:      db,
			Hub:     hub,
			Version: version,
		}
		if registry != nil {
			deps.Devices = registry
		}
		srv, srvErr := api.New(deps)
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "startup", logging.Since(started))

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Bridge (publishes the stopping health message)
	// 3. Capture file
	// 4. MQTT
	// 5. Database

	return nil
}

// openInventory opens the database, applies migrations and loads the
// thermostat registry, seeding it with the devices named in config.
func openInventory(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *device.Registry, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("reading schema version: %w", err)
	}
	journal, _ := db.JournalMode(ctx) //nolint:errcheck // informational only
	log.Info("database ready",
		"path", cfg.Database.Path,
		"schema", status.Version(),
		"journal", journal,
	)

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("devices"))

	seeds := make([]device.Seed, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		seeds = append(seeds, device.Seed{HouseCode: d.HouseCode, Name: d.Name})
	}
	if err := registry.SeedDevices(ctx, seeds); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("seeding devices: %w", err)
	}
	if err := registry.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	return db, registry, nil
}

// buildBridgeOptions assembles the bridge dependencies. Optional parts are
// only set when present so the bridge sees untyped nil interfaces.
func buildBridgeOptions(
	cfg *config.Config,
	client bridge.MQTTClient,
	registry *device.Registry,
	recorder *capture.Recorder,
	hub *api.Hub,
	log *logging.Logger,
) bridge.Options {
	serialCfg := serial.FromConfig(cfg.Serial)

	opts := bridge.Options{
		Config:     cfg,
		MQTTClient: client,
		OpenPort: func() (io.ReadWriteCloser, error) {
			return serial.Open(serialCfg)
		},
		Logger:  log.Component("bridge"),
		Version: version,
	}
	if registry != nil {
		opts.Devices = registry
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	if hub != nil {
		opts.Broadcaster = hub
	}
	return opts
}

// healthCheck verifies the infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// The transceiver is not checked: the bridge keeps retrying the port and
	// reports its state in health messages.

	return nil
}
