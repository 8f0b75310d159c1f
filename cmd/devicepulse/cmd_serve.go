package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HerbHall/devicepulse/internal/config"
	"github.com/HerbHall/devicepulse/internal/heartbeat"
	"github.com/HerbHall/devicepulse/internal/liveness"
	"github.com/HerbHall/devicepulse/internal/server"
	"github.com/HerbHall/devicepulse/internal/services"
	"github.com/HerbHall/devicepulse/internal/store"
	"github.com/HerbHall/devicepulse/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("DevicePulse server starting", zap.String("version", version.Short()))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	settings := cfg.Settings()
	if err := settings.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(ctx, settings.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	devices, err := services.NewSQLiteDeviceRepository(ctx, db)
	if err != nil {
		logger.Fatal("failed to prepare device registry", zap.Error(err))
	}
	activity, err := services.NewSQLiteActivityRepository(ctx, db)
	if err != nil {
		logger.Fatal("failed to prepare activity store", zap.Error(err))
	}

	oracle, err := liveness.NewOracle(settings.Liveness.ActivitySource, activity)
	if err != nil {
		logger.Fatal("invalid liveness.activity_source", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	lookup := liveness.NewDeviceLookup(devices, logger.Named("lookup"))
	evaluator := liveness.NewEvaluator(lookup, logger.Named("liveness"),
		liveness.WithOracle(oracle),
		liveness.WithWindow(settings.Liveness.Window),
		liveness.WithMetrics(liveness.NewMetrics(reg)),
	)

	var listener *heartbeat.Listener
	if settings.MQTT.Enabled {
		client, err := heartbeat.Dial(heartbeat.ClientOptions{
			Broker:   settings.MQTT.Broker,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
		}, logger.Named("mqtt"))
		if err != nil {
			logger.Fatal("failed to connect to MQTT broker", zap.Error(err))
		}
		defer client.Disconnect(1000)

		listener = heartbeat.NewListener(client, activity, logger.Named("heartbeat"),
			heartbeat.WithTopic(settings.MQTT.Topic),
			heartbeat.WithRegisterer(reg),
		)
		if err := listener.Start(ctx); err != nil {
			logger.Fatal("failed to start heartbeat listener", zap.Error(err))
		}
	}

	addr := net.JoinHostPort(settings.Server.Host, strconv.Itoa(settings.Server.Port))
	auth := server.NewAuthenticator([]byte(settings.Auth.JWTSecret), logger.Named("auth"))
	srv := server.New(addr, evaluator, auth, logger.Named("http"),
		server.WithRateLimiter(server.NewTenantLimiter(settings.RateLimit.RPS, settings.RateLimit.Burst)),
		server.WithMetrics(reg),
	)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("DevicePulse server ready",
		zap.String("addr", addr),
		zap.Duration("window", evaluator.Window()),
		zap.String("activity_source", settings.Liveness.ActivitySource),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if listener != nil {
		listener.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("DevicePulse server stopped")
}
