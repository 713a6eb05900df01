// Stanmore Bridge - Marshall Stanmore II BLE to MQTT bridge
//
// This is the main entry point for the bridge. It owns the single BLE
// session to the speaker, mirrors its state onto retained MQTT info
// topics, and executes commands arriving on the command namespace.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/stanmore-bridge/migrations"

	"github.com/nerrad567/stanmore-bridge/internal/api"
	"github.com/nerrad567/stanmore-bridge/internal/ble"
	"github.com/nerrad567/stanmore-bridge/internal/bridge"
	"github.com/nerrad567/stanmore-bridge/internal/history"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/config"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/database"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/stanmore-bridge/internal/speaker"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Stanmore Bridge",
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

	// Open database for field history (optional)
	var store *history.Store
	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
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

		store = history.NewStore(db)
	} else {
		log.Info("field history disabled")
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", cfg.MQTT.TopicPrefix,
	)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Assemble the bridge around the shared state model. The supervisor's
	// callbacks close over the bridge variable, which is bound before
	// Run starts delivering updates.
	state := speaker.NewState()

	transport, err := ble.NewBluezTransport(cfg.Speaker.Address, log)
	if err != nil {
		return fmt.Errorf("initialising BLE transport: %w", err)
	}

	var br *bridge.Bridge
	supervisor := ble.NewSupervisor(transport, ble.Callbacks{
		OnUpdate: func(update speaker.Update, commandID string) {
			br.OnUpdate(update, commandID)
		},
		OnLinkChange: func(connected bool) {
			br.OnLinkChange(connected)
		},
		OnPairingExit: func() {
			log.Info("pairing mode entered, shutting down")
		},
	}, log)
	defer supervisor.Close()

	topics := mqttClient.Topics()
	qos := byte(cfg.MQTT.QoS)
	router := bridge.NewRouter(cfg.Speaker.AllowPairing)

	// A nil *history.Store must stay a nil interface for the publisher.
	var recorder bridge.HistoryRecorder
	if store != nil {
		recorder = store
	}
	publisher := bridge.NewPublisher(mqttClient, topics, state, qos, cfg.MQTT.Retain, recorder, log)
	br = bridge.New(mqttClient, topics, router, publisher, state, supervisor, qos, log)

	if err := br.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started",
		"speaker", cfg.Speaker.Address,
		"allow_pairing", cfg.Speaker.AllowPairing,
	)

	// Start HTTP status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			State:   state,
			Speaker: supervisor,
			Broker:  mqttClient,
			History: store,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, supervising BLE link")

	// Run blocks until shutdown or until pairing mode drops the link
	// for good. Deferred Close() calls then run in reverse order.
	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("ble supervisor: %w", err)
	}

	log.Info("Stanmore Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STANMORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STANMORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
