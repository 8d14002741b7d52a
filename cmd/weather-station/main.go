package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/solentwx/weather-station/internal/api/http"
	"github.com/solentwx/weather-station/internal/config"
	"github.com/solentwx/weather-station/internal/console"
	"github.com/solentwx/weather-station/internal/mqtt"
	"github.com/solentwx/weather-station/internal/scheduler"
	"github.com/solentwx/weather-station/internal/store"
	"github.com/solentwx/weather-station/internal/weather"
	"github.com/solentwx/weather-station/internal/weather/sources"
	"github.com/solentwx/weather-station/internal/wifi"
)

func main() {
	// Load configuration (.env picked up when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound station calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}
	httpCfg := sources.HTTPClientConfig{
		Client:    httpClient,
		UserAgent: cfg.UserAgent,
		MaxBody:   cfg.Parse.MaxBytes,
	}

	// In-memory store with configured retention, journaled to SQLite.
	var svcStore weather.Store
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	svcStore = memStore

	var sqlStore *store.SQLiteStore
	if cfg.SQLitePath != "" {
		sqlStore, err = store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite store: %v", err)
		}
		defer sqlStore.Close()
		svcStore = store.NewTeeStore(memStore, sqlStore)
	}

	// Station sources, each behind backoff and a circuit breaker.
	var srcs []weather.Source
	srcs = append(srcs, sources.NewWeatherLinkSource(httpCfg, cfg.WeatherLinkPageID))
	srcs = append(srcs, sources.NewWeatherFileSource(httpCfg, cfg.WeatherFileLocID))
	srcs = append(srcs, sources.NewSouthamptonVTSSource(httpCfg))
	srcs = append(srcs, sources.NewNavisSource(httpCfg, cfg.NavisIMEI, cfg.NavisViewID, cfg.NavisWindow))
	if cfg.CustomSourceURL != "" {
		srcs = append(srcs, sources.NewCustomSource(httpCfg, cfg.CustomSourceName, cfg.CustomSourceURL, cfg.Parse))
	}

	// Optional MQTT publishing of aggregated snapshots.
	var publisher weather.Publisher
	if cfg.MQTTBroker != "" {
		pub, err := mqtt.New(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Fatalf("failed to connect mqtt publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	// Core service orchestrating stations and store.
	service := weather.NewService(cfg.Location, svcStore, srcs, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Network link manager over the configured backend.
	var mgr *wifi.Manager
	if cfg.WiFiBackend != "off" {
		networks, passwords, err := wifi.ParseSimSpec(cfg.WiFiSimNetworks)
		if err != nil {
			log.Fatalf("invalid WIFI_SIM_NETWORKS: %v", err)
		}
		backend := wifi.NewSimBackend(networks, passwords)

		var credStore wifi.CredentialStore
		if sqlStore != nil {
			credStore = store.NewCredentialStore(sqlStore)
		}

		mgr = wifi.NewManager(wifi.Config{
			ConnectTimeout:     cfg.WiFiConnectTimeout,
			ScanTimeout:        cfg.WiFiScanTimeout,
			ReconnectInterval:  cfg.WiFiReconnectInterval,
			StatusPollInterval: cfg.WiFiStatusPollInterval,
			MaxNetworks:        cfg.WiFiMaxScanNetworks,
		}, backend, credStore)

		if err := mgr.Start(ctx); err != nil {
			log.Fatalf("failed to start wifi manager: %v", err)
		}
		defer mgr.Stop()
	}

	// Scheduler that periodically fetches and stores data.
	sched := scheduler.New(service, mgr, cfg.FetchInterval, cfg.HTTPTimeout*2)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Command console.
	cons := console.New(console.Config{
		Addr:          cfg.ConsoleAddr,
		ReadTimeout:   cfg.ConsoleReadTimeout,
		MaxCommandLen: cfg.CommandBufferSize,
		FetchTimeout:  cfg.HTTPTimeout * 2,
	}, service, mgr, cfg.Parse)
	if err := cons.Start(); err != nil {
		log.Fatalf("failed to start console: %v", err)
	}
	defer cons.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-station",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-station",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, mgr)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
