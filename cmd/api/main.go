package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-companion-core/internal/application"
	"call-companion-core/internal/application/webhook_handlers"
	"call-companion-core/internal/config"
	"call-companion-core/internal/infrastructure/api"
	"call-companion-core/internal/infrastructure/auth"
	"call-companion-core/internal/infrastructure/lock"
	"call-companion-core/internal/infrastructure/memory"
	"call-companion-core/internal/infrastructure/metrics"
	"call-companion-core/internal/infrastructure/realtime"
	"call-companion-core/internal/infrastructure/repository"
	"call-companion-core/internal/infrastructure/sheets"
	"call-companion-core/internal/infrastructure/whatsapp"
	"call-companion-core/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET environment variable is required")
	}
	if cfg.WebhookVerifyToken == "" {
		logger.Warn().Msg("WEBHOOK_VERIFY_TOKEN not set, lead webhooks will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	// Initialize repositories
	var (
		customers ports.CustomerRecordStore
		bindings  ports.SheetBindingRepository
	)
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer client.Disconnect(context.Background())

		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureCustomerIndexes(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create customer indexes")
		}
		if err := repository.EnsureSheetBindingIndexes(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create sheet binding indexes")
		}
		customers = repository.NewMongoCustomerRepository(db)
		bindings = repository.NewMongoSheetBindingRepository(db)
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB storage")
	} else {
		customers = memory.NewCustomerStore()
		bindings = memory.NewSheetBindingRepo()
		logger.Warn().Msg("MONGODB_URI not set, using in-memory storage")
	}

	// Cross-process export lock
	var exportLock ports.ExportLock = lock.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, export lock is process-local")
		} else {
			exportLock = lock.NewRedisLock(rdb, "callcompanion:", logger)
		}
	}

	// Spreadsheet client
	var sheetClient ports.SpreadsheetClient = sheets.Disabled{}
	creds := sheets.Credentials{File: cfg.GoogleCredentialsFile, JSON: cfg.GoogleCredentialsJSON}
	if creds.Configured() {
		client, err := sheets.NewClient(ctx, logger, creds.ClientOptions()...)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize sheets client")
		}
		sheetClient = client
	} else {
		logger.Warn().Msg("Google credentials not set, spreadsheet exports are disabled")
	}

	// Messaging channel
	transport, err := whatsapp.NewTransport(ctx, whatsapp.StoreConfig{
		Dialect: cfg.Channel.StoreDialect,
		DSN:     cfg.Channel.StoreDSN,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize messaging transport")
	}
	channel := application.NewChannelClient(transport, application.ChannelClientOptions{
		ReconnectDelay:     cfg.Channel.ReconnectDelay,
		DefaultCountryCode: cfg.Channel.DefaultCountryCode,
	}, recorder, logger)
	channelDone := make(chan struct{})
	go func() {
		defer close(channelDone)
		channel.Run(ctx)
	}()
	if cfg.Channel.AutoConnect {
		if err := channel.Connect(ctx); err != nil {
			logger.Error().Err(err).Msg("Initial channel connect failed, retrying in background")
		}
	}

	// Devices
	verifier := auth.NewVerifier(cfg.JWTSecret)
	devices := realtime.NewRegistry(verifier, logger)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "callcompanion",
		Name:      "bound_devices",
		Help:      "Devices currently authenticated on the realtime socket.",
	}, func() float64 {
		return float64(devices.GetStats()["bound_devices"].(int))
	}))

	// Initialize application services
	mirror := application.NewRecordMirror(customers, bindings, sheetClient, recorder, logger)
	scheduler := application.NewExportScheduler(mirror, exportLock, application.ExportSchedulerOptions{}, logger)
	synchronizer := application.NewSynchronizer(customers, recorder, logger)
	recordService := application.NewRecordService(customers, synchronizer, scheduler, logger)
	bindingService := application.NewBindingService(bindings, mirror, scheduler, logger)
	callRouter := application.NewCallRouter(devices, customers, recorder, logger)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewLeadHandler(recordService, logger))

	router := api.NewRouter(api.Dependencies{
		Channel:            channel,
		Records:            recordService,
		Calls:              callRouter,
		Bindings:           bindingService,
		Webhooks:           webhookDispatcher,
		Identities:         verifier,
		Devices:            realtime.NewHandler(devices, cfg.AllowedOrigins, logger),
		Metrics:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WebhookVerifyToken: cfg.WebhookVerifyToken,
		AllowedOrigins:     cfg.AllowedOrigins,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	scheduler.Wait()
	<-channelDone
	logger.Info().Msg("Shutdown complete")
}
