// firetvd - Fire TV control server
//
// This is the main entry point for the Fire TV control server. It exposes
// registered Fire TV devices over a REST API, classifies their power and
// playback state via ADB, and optionally publishes state transitions to
// MQTT and InfluxDB for automation and history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/firetv-core/migrations"

	"github.com/nerrad567/firetv-core/internal/adb"
	"github.com/nerrad567/firetv-core/internal/api"
	"github.com/nerrad567/firetv-core/internal/device"
	"github.com/nerrad567/firetv-core/internal/infrastructure/config"
	"github.com/nerrad567/firetv-core/internal/infrastructure/database"
	"github.com/nerrad567/firetv-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/firetv-core/internal/infrastructure/logging"
	"github.com/nerrad567/firetv-core/internal/infrastructure/mqtt"
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
	log.Info("starting firetvd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// ADB dialer (talks to the local adb server daemon)
	dialer, err := adb.NewServerDialer(cfg.ADB)
	if err != nil {
		return fmt.Errorf("creating ADB dialer: %w", err)
	}
	if hcErr := dialer.HealthCheck(ctx); hcErr != nil {
		log.Warn("ADB server not responding; devices will report disconnected until it is up",
			"host", cfg.ADB.ServerHost, "port", cfg.ADB.ServerPort, "error", hcErr)
	} else {
		log.Info("ADB server reachable", "host", cfg.ADB.ServerHost, "port", cfg.ADB.ServerPort)
	}

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo, dialer, device.Options{
		ConnectTimeout: cfg.ADB.GetConnectTimeout(),
		CommandTimeout: cfg.ADB.GetCommandTimeout(),
		Classifier: device.ClassifierConfig{
			LauncherPackages:    cfg.Classifier.LauncherPackages,
			ScreensaverPackages: cfg.Classifier.ScreensaverPackages,
		},
	})
	deviceRegistry.SetLogger(log)
	defer func() {
		log.Info("closing device sessions")
		if closeErr := deviceRegistry.Close(); closeErr != nil {
			log.Error("error closing device sessions", "error", closeErr)
		}
	}()

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}

	// Register devices from config (idempotent; persisted rows survive)
	if regErr := registerConfiguredDevices(ctx, cfg, deviceRegistry, log); regErr != nil {
		return regErr
	}

	// Connect to MQTT broker (optional)
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

		deviceRegistry.AddSink(&mqttStateSink{client: mqttClient, log: log})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		deviceRegistry.AddSink(&influxStateSink{client: influxClient, log: log})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: deviceRegistry,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// WebSocket clients get every observed state transition
	deviceRegistry.AddSink(apiServer)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, device sessions, database.

	log.Info("firetvd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FIRETV_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FIRETV_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// registerConfiguredDevices upserts devices named in the config file.
// Config registration is idempotent, so restarts never duplicate rows.
func registerConfiguredDevices(ctx context.Context, cfg *config.Config, registry *device.Registry, log *logging.Logger) error {
	for id, host := range cfg.Devices {
		if err := registry.Add(ctx, id, host); err != nil {
			return fmt.Errorf("registering device %q: %w", id, err)
		}
		log.Info("device registered from config", "id", id, "host", host)
	}

	if cfg.DefaultDevice != "" {
		if err := registry.Add(ctx, "default", cfg.DefaultDevice); err != nil {
			return fmt.Errorf("registering default device: %w", err)
		}
		log.Info("default device registered", "host", cfg.DefaultDevice)
	}

	return nil
}

// mqttStateSink publishes state transitions as retained JSON so consumers
// joining late immediately see every device's last known state.
type mqttStateSink struct {
	client *mqtt.Client
	log    *logging.Logger
}

func (s *mqttStateSink) OnStateChange(deviceID string, previous, current device.State) {
	payload, err := json.Marshal(map[string]string{
		"device_id":      deviceID,
		"state":          string(current),
		"previous_state": string(previous),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.DeviceState(deviceID)
	if pubErr := s.client.PublishRetained(topic, payload); pubErr != nil {
		s.log.Warn("publishing device state", "device_id", deviceID, "error", pubErr)
	}
}

// influxStateSink records state transitions for history dashboards.
// Failures are logged, never escalated; history is best-effort.
type influxStateSink struct {
	client *influxdb.Client
	log    *logging.Logger
}

func (s *influxStateSink) OnStateChange(deviceID string, previous, current device.State) {
	if err := s.client.WriteStateTransition(deviceID, string(previous), string(current)); err != nil {
		s.log.Debug("recording state transition", "device_id", deviceID, "error", err)
	}
}
