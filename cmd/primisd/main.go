// Command primisd is the Primis device telemetry backend.
//
// It bridges an MQTT broker to SQLite storage and a WebSocket fan-out:
// inbound device messages are persisted and relayed live to dashboard
// clients, and an HTTP API serves device and user management.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/primisapp/primis-backend/internal/api"
	"github.com/primisapp/primis-backend/internal/auth"
	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
	"github.com/primisapp/primis-backend/internal/infrastructure/config"
	"github.com/primisapp/primis-backend/internal/infrastructure/database"
	"github.com/primisapp/primis-backend/internal/infrastructure/influxdb"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
	"github.com/primisapp/primis-backend/internal/infrastructure/mqtt"
	"github.com/primisapp/primis-backend/internal/ingest"
	"github.com/primisapp/primis-backend/internal/user"
	_ "github.com/primisapp/primis-backend/migrations" // register embedded schema
)

var version = "dev" // set via -ldflags at build time

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("primisd", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logging.Default().Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting primis backend", "version", version)

	// Storage
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // shutdown path

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	deviceRepo := device.NewSQLiteRepository(db)
	userRepo := user.NewSQLiteRepository(db)

	// WebSocket fan-out
	hub := broadcast.NewHub(logger)
	defer hub.Shutdown()

	// Optional telemetry metric sink
	var sink ingest.TelemetrySink
	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to influxdb: %w", err)
		}
		defer influx.Close() //nolint:errcheck // shutdown path
		influx.SetOnError(func(err error) {
			logger.Error("influxdb write failed", "error", err)
		})
		sink = influx
		logger.Info("influxdb sink enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// MQTT ingestion
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	defer mqttClient.Close() //nolint:errcheck // shutdown path
	mqttClient.SetLogger(logger)
	mqttClient.SetOnConnect(func() {
		logger.Info("mqtt connected", "host", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	pipeline := ingest.New(mqttClient, deviceRepo, hub, logger, ingest.Options{
		QoS:          byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		BroadcastRaw: cfg.Features.BroadcastRawData,
		Sink:         sink,
	})
	if err := pipeline.Start(); err != nil {
		return fmt.Errorf("starting ingest pipeline: %w", err)
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:  cfg,
		Logger:  logger,
		Devices: deviceRepo,
		Users:   userRepo,
		Tokens:  auth.NewTokenIssuer(cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL),
		Hub:     hub,
		DB:      db,
		MQTT:    mqttClient,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	logger.Info("primis backend running")

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("primis backend stopped")

	return nil
}
