package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/config"
	"github.com/piacobelli14/PSYCHE-API/internal/database"
	httpapi "github.com/piacobelli14/PSYCHE-API/internal/http"
	"github.com/piacobelli14/PSYCHE-API/internal/logger"
	"github.com/piacobelli14/PSYCHE-API/internal/mqtt"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
	"github.com/piacobelli14/PSYCHE-API/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "psyche-api")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// The raw telemetry log is optional: without Redis the reconciliation
	// job still works from stored session history, just with presence-
	// filtered staleness.
	var rawLog *store.TelemetryLog
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, raw telemetry log disabled", zap.Error(err))
	} else {
		rawLog = store.NewTelemetryLog(store.NewRedisKV(redisClient))
	}

	devicesRepo := repository.NewPostgresDevicesRepo(db)
	patientsRepo := repository.NewPostgresPatientsRepo(db)
	usersRepo := repository.NewPostgresUsersRepo(db)

	var sessions repository.SessionStore
	if cfg.Session.Backend == "postgres" {
		sessions = repository.NewPostgresSessionStore(db)
		log.Info("session store: postgres")
	} else {
		fileStore, err := repository.NewFileSessionStore(cfg.Session.Dir)
		if err != nil {
			log.Fatal("session spool dir unavailable", zap.Error(err))
		}
		sessions = fileStore
		log.Info("session store: file", zap.String("dir", cfg.Session.Dir))
	}

	telemetry := service.NewTelemetryService(devicesRepo, sessions, rawLog, log)
	auth := service.NewAuthService(usersRepo, &service.SMTPMailer{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
	}, log)

	alerts := service.NewAlertClient(cfg.Reconcile.AlertWebhookURL, log)
	battery := service.NewBatteryService(
		devicesRepo, sessions, rawLog, alerts,
		cfg.Reconcile.Interval, cfg.Reconcile.LowBatteryLevel, log,
	)

	router := httpapi.NewRouter(log)
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetry, sessions, log))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(devicesRepo, log))
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(patientsRepo, log))
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(auth, log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go battery.Run(ctx)

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("mqtt ingestion disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			broker := mqtt.NewTelemetryBroker(telemetry, log)
			if err := client.Subscribe(cfg.MQTT.Topic, byte(cfg.MQTT.QoS), broker.HandleMessage); err != nil {
				log.Warn("mqtt subscription failed", zap.Error(err))
			} else {
				log.Info("mqtt ingestion enabled", zap.String("topic", cfg.MQTT.Topic))
			}
		}
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("http server exited", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
