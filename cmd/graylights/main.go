// Gray Logic Lights - light schedule and device command backend.
//
// This is the main entry point. It loads the configured lights, serves the
// HTTP API and runs the schedule evaluator until it receives SIGINT or
// SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/gray-logic-lights/migrations"

	"github.com/nerrad567/gray-logic-lights/internal/api"
	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lights/internal/schedule"
	"github.com/nerrad567/gray-logic-lights/internal/voice"
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

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Lights",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving timezone: %w", err)
	}

	// Open database
	db, err := database.Open(database.ConfigFrom(cfg.Database))
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
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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

	// Load lights
	devices, err := device.LoadAll(cfg.Devices.File, cfg.Devices.LegacyFile, log)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	registry, err := device.NewRegistry(devices, buildTransports(cfg, mqttClient, log))
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log.Component("device"))
	log.Info("device registry initialised",
		"devices", registry.Count(),
		"dev_mode", cfg.Devices.DevMode,
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dispatcher := dispatch.New(registry, dispatch.Options{
		CommandTimeout: cfg.GetCommandTimeout(),
		Concurrency:    cfg.Devices.Concurrency,
		Metrics:        dispatch.NewMetrics(promRegistry),
	})
	dispatcher.SetLogger(log.Component("dispatch"))

	store := schedule.NewStore(schedule.NewSQLiteRepository(db.DB))
	store.SetLogger(log.Component("schedule"))
	if refreshErr := store.Refresh(ctx); refreshErr != nil {
		return fmt.Errorf("loading schedules: %w", refreshErr)
	}
	log.Info("schedule store initialised", "schedules", len(store.List(ctx)))

	evaluator := schedule.NewEvaluator(store, dispatcher, schedule.SystemClock{}, loc)
	evaluator.SetLogger(log.Component("evaluator"))
	evaluator.SetMetrics(schedule.NewMetrics(promRegistry))

	if influxClient != nil {
		dispatcher.SetRecorder(influxClient)
		evaluator.SetRecorder(influxClient)
	}

	// Start API server
	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Registry:   registry,
		Dispatcher: dispatcher,
		Schedules:  store,
		DB:         db,
		MQTT:       mqttClient,
		Prometheus: promRegistry,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	registry.SetOnStateChange(srv.OnDeviceStateChange)
	store.SetOnChange(srv.OnScheduleChanged)
	evaluator.SetOnFired(srv.OnScheduleFired)

	// Start schedule evaluator
	if cfg.Scheduler.Enabled {
		runner := schedule.NewRunner(evaluator, cfg.GetTickInterval())
		runner.SetLogger(log.Component("scheduler"))
		if startErr := runner.Start(ctx); startErr != nil {
			return fmt.Errorf("starting scheduler: %w", startErr)
		}
		defer func() {
			log.Info("stopping scheduler")
			runner.Stop()
		}()
		log.Info("scheduler started", "tick_interval", cfg.GetTickInterval(), "timezone", loc.String())
	} else {
		log.Warn("scheduler disabled, schedules will not fire")
	}

	if cfg.Voice.Enabled {
		stopVoice, voiceErr := startVoice(ctx, cfg, dispatcher, mqttClient, log)
		if voiceErr != nil {
			return fmt.Errorf("starting voice commands: %w", voiceErr)
		}
		defer stopVoice()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: voice, scheduler, API server,
	// InfluxDB, MQTT, database.

	log.Info("Gray Logic Lights stopped")
	return nil
}

// buildTransports wires one transport per kind. In dev mode every kind is
// backed by the simulated transport so no real hardware is touched.
func buildTransports(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) device.Transports {
	if cfg.Devices.DevMode {
		log.Warn("dev mode enabled, device commands are simulated")
		return device.SimulatedTransports(device.NewSimulated(0))
	}

	// A nil *mqtt.Client must not become a non-nil Publisher.
	var publisher device.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}

	return device.Transports{
		device.TransportTelnet:    device.NewTelnet(cfg.Devices.TelnetPort, cfg.GetCommandTimeout()),
		device.TransportKasa:      device.NewKasa(cfg.Devices.KasaBinary),
		device.TransportMQTT:      device.NewMQTT(publisher, mqtt.Topics{}.DeviceCommand),
		device.TransportLIFX:      device.NewLIFX(),
		device.TransportElgato:    device.NewElgato(),
		device.TransportSimulated: device.NewSimulated(0),
	}
}

// startVoice subscribes to graylights/voice when MQTT is up and watches
// the transcript file when one is configured. The returned func stops
// the watcher and waits for it.
func startVoice(ctx context.Context, cfg *config.Config, dispatcher *dispatch.Dispatcher, mqttClient *mqtt.Client, log *logging.Logger) (func(), error) {
	ingester := voice.New(dispatcher, cfg.GetVoiceTimeout())
	ingester.SetLogger(log.Component("voice"))

	if mqttClient != nil {
		if err := ingester.SubscribeMQTT(ctx, mqttClient); err != nil {
			return nil, fmt.Errorf("subscribing: %w", err)
		}
	}

	if cfg.Voice.TranscriptFile == "" {
		return func() {}, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ingester.WatchFile(watchCtx, cfg.Voice.TranscriptFile); err != nil {
			log.Error("transcript watcher stopped", "path", cfg.Voice.TranscriptFile, "error", err)
		}
	}()
	log.Info("voice commands enabled", "transcript", cfg.Voice.TranscriptFile, "mqtt", mqttClient != nil)

	return func() {
		log.Info("stopping voice commands")
		cancel()
		<-done
	}, nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLIGHTS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLIGHTS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
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
