// Qingping Bridge - local MQTT bridge for Qingping air quality monitors
//
// This is the main entry point for the bridge daemon. The bridge keeps
// Qingping Air Monitor Lite devices talking to a private MQTT broker:
//   - Decodes device uplinks and republishes readings as retained state
//   - Acknowledges messages the firmware expects an ack for
//   - Pushes interval configuration keepalives so devices stay bound
//   - Watches per-device liveness and escalates silence to MQTT alerts
//
// Besides the daemon, the binary carries the adoption flows:
//
//	qingpingbridge                   run the bridge
//	qingpingbridge adopt MAC [name]  adopt a device by MAC
//	qingpingbridge scan              listen on the broker for unadopted devices
//	qingpingbridge provision         cloud login, bind devices, adopt them
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/qingping-bridge/migrations"

	"github.com/nerrad567/qingping-bridge/internal/bridge"
	"github.com/nerrad567/qingping-bridge/internal/cloud"
	"github.com/nerrad567/qingping-bridge/internal/device"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/config"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/database"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/qingping-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/qingping-bridge/internal/setup"
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

	var err error
	if len(os.Args) > 1 {
		err = runSetup(ctx, os.Args[1], os.Args[2:])
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon logic, separated from main for testability.
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
	log.Info("starting Qingping Bridge",
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

	// Open database and run migrations
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Device store
	repo := device.NewSQLiteRepository(db.DB)

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
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Legacy cloud API client (optional) - used by the watchdog to jolt
	// devices that go silent
	opts := bridge.Options{
		BridgeID:          cfg.Bridge.ID,
		Version:           version,
		MQTT:              &mqttBridgeAdapter{client: mqttClient},
		Store:             repo,
		ReportInterval:    cfg.Bridge.ReportInterval,
		KeepaliveInterval: cfg.GetKeepaliveInterval(),
		Logger:            log,
	}
	if influxClient != nil {
		opts.Recorder = influxClient
	}
	if cfg.Cloud.AppKey != "" {
		cloudClient, cloudErr := cloud.NewClient(cloud.ClientConfig{
			AppKey:    cfg.Cloud.AppKey,
			AppSecret: cfg.Cloud.AppSecret,
			Timeout:   cfg.GetCloudTimeout(),
			Logger:    log,
		})
		if cloudErr != nil {
			return fmt.Errorf("creating cloud client: %w", cloudErr)
		}
		opts.Cloud = cloudClient
		log.Info("cloud sync enabled")
	} else {
		log.Info("cloud sync disabled (no app key)")
	}

	// Create and start the bridge
	qpBridge, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := qpBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		qpBridge.Stop()
	}()
	log.Info("bridge started", "devices", qpBridge.DeviceCount())

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Bridge
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Qingping Bridge stopped")
	return nil
}

// runSetup dispatches the adoption subcommands. Each one loads config,
// opens the device store and runs a single wizard flow to completion.
func runSetup(ctx context.Context, command string, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := device.NewSQLiteRepository(db.DB)

	switch command {
	case "adopt":
		return adoptCommand(ctx, repo, args)
	case "scan":
		return scanCommand(ctx, cfg, repo, log)
	case "provision":
		return provisionCommand(ctx, cfg, repo, log)
	default:
		return fmt.Errorf("unknown command %q (want adopt, scan or provision)", command)
	}
}

// adoptCommand adopts one device by MAC: qingpingbridge adopt MAC [name]
func adoptCommand(ctx context.Context, repo *device.SQLiteRepository, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: qingpingbridge adopt MAC [name]")
	}
	mac := args[0]
	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	wizard, err := setup.New(setup.Config{Store: repo})
	if err != nil {
		return err
	}
	rec, err := wizard.Adopt(ctx, mac, name)
	if err != nil {
		return err
	}
	fmt.Printf("adopted %s (%s)\n", rec.MAC, rec.Name)
	return nil
}

// scanCommand listens on the broker for devices not yet adopted and
// prints what it hears. Adoption stays a separate explicit step.
func scanCommand(ctx context.Context, cfg *config.Config, repo *device.SQLiteRepository, log *logging.Logger) error {
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer mqttClient.Close()

	wizard, err := setup.New(setup.Config{
		Store:      repo,
		Subscriber: &mqttBridgeAdapter{client: mqttClient},
		Logger:     log,
	})
	if err != nil {
		return err
	}

	fmt.Println("listening for devices...")
	macs, err := wizard.Scan(ctx)
	if err != nil {
		return err
	}
	if len(macs) == 0 {
		fmt.Println("no unadopted devices heard")
		return nil
	}
	for _, mac := range macs {
		fmt.Println(mac)
	}
	return nil
}

// provisionCommand runs the full cloud flow: portal login, broker
// config reconciliation, device discovery, bind and adopt.
func provisionCommand(ctx context.Context, cfg *config.Config, repo *device.SQLiteRepository, log *logging.Logger) error {
	if cfg.Cloud.Email == "" || cfg.Cloud.Password == "" {
		return fmt.Errorf("cloud.email and cloud.password are required for provisioning")
	}

	portal := cloud.NewDeveloperClient(cloud.DeveloperConfig{
		Timeout: cfg.GetCloudTimeout(),
		Logger:  log,
	})
	wizard, err := setup.New(setup.Config{
		Store:  repo,
		Portal: portal,
		Logger: log,
	})
	if err != nil {
		return err
	}

	broker := cloud.BrokerParams{
		Host:     cfg.MQTT.Broker.Host,
		Port:     cfg.MQTT.Broker.Port,
		Username: cfg.MQTT.Auth.Username,
		Password: cfg.MQTT.Auth.Password,
	}
	adopted, err := wizard.AutoAdopt(ctx, cfg.Cloud.Email, cfg.Cloud.Password, cfg.Bridge.ID, broker)
	if err != nil {
		return err
	}
	for _, rec := range adopted {
		fmt.Printf("adopted %s (%s) config %d\n", rec.MAC, rec.Name, rec.ConfigID)
	}
	return nil
}

// openDatabase opens the SQLite store and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

// getConfigPath returns the configuration file path.
// Uses QINGPING_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("QINGPING_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The infrastructure Subscribe takes the
// named mqtt.MessageHandler type, which Go will not match against the
// interface's plain func parameter, so the call is forwarded by hand.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

// Unsubscribe implements setup.Subscriber.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
