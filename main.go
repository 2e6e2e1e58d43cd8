package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/communa-labs/ticketing/internal/di"
	"github.com/communa-labs/ticketing/internal/inventory"
	"github.com/communa-labs/ticketing/internal/repository"
	"github.com/communa-labs/ticketing/internal/scancode"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/internal/worker"
	"github.com/communa-labs/ticketing/pkg/config"
	"github.com/communa-labs/ticketing/pkg/database"
	"github.com/communa-labs/ticketing/pkg/logger"
	"github.com/communa-labs/ticketing/pkg/middleware"
	pkgredis "github.com/communa-labs/ticketing/pkg/redis"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	logCfg := &logger.Config{
		Level:       logLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Ticketing Service...")

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Tracing init failed, continuing without traces: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     cfg.App.Name,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis connection
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		PoolTimeout:   cfg.Redis.PoolTimeout,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("Kafka event publisher connected")
	}
	defer eventPublisher.Close()

	// Initialize repositories and inventory ledger
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool())
	ticketTypeRepo := repository.NewPostgresTicketTypeRepository(db.Pool())
	ledger := inventory.NewCachedLedger(
		inventory.NewPostgresLedger(db.Pool()),
		redisClient,
		cfg.Ticket.AvailabilityCacheTTL,
	)

	// Admission token codec
	codec := scancode.New(cfg.ScanCode.Secret, cfg.ScanCode.Issuer)

	// Catalog schedule lookups are optional
	var schedules service.ScheduleFetcher
	if cfg.Catalog.ServiceURL != "" {
		schedules = service.NewHTTPCatalogClient(cfg.Catalog.ServiceURL)
		appLog.Info(fmt.Sprintf("Catalog client configured: %s", cfg.Catalog.ServiceURL))
	} else {
		appLog.Info("No catalog service configured, sale window bounds ticket validity")
	}

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		TicketRepo:     ticketRepo,
		TicketTypeRepo: ticketTypeRepo,
		Ledger:         ledger,
		Codec:          codec,
		EventPublisher: eventPublisher,
		Schedules:      schedules,
		ServiceConfig: &service.TicketServiceConfig{
			HoldTTL: cfg.Ticket.HoldTTL,
		},
	})

	// Start the expiry worker
	expiryWorker := worker.NewExpiryWorker(container.TicketService, &worker.ExpiryWorkerConfig{
		SweepInterval: cfg.Ticket.SweepInterval,
		BatchSize:     cfg.Ticket.SweepBatchSize,
	})
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}
	defer expiryWorker.Stop()

	// Setup Gin
	gin.SetMode(gin.ReleaseMode)
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTel.Enabled {
		router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Identity())

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		// Idempotency middleware guards the write operations
		idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient.Client())
		idempotencyConfig.SkipPaths = []string{"/health", "/ready", "/metrics"}
		idem := middleware.IdempotencyMiddleware(idempotencyConfig)

		tickets := v1.Group("/tickets")
		{
			tickets.POST("/reserve", idem, container.TicketHandler.Reserve)
			tickets.POST("/:id/confirm", idem, container.TicketHandler.ConfirmPayment)
			tickets.POST("/:id/cancel", idem, container.TicketHandler.Cancel)

			tickets.GET("", container.TicketHandler.GetUserTickets)
			tickets.GET("/:id", container.TicketHandler.GetTicket)
		}

		ticketTypes := v1.Group("/ticket-types")
		{
			ticketTypes.POST("", idem, container.TicketTypeHandler.Create)
			ticketTypes.DELETE("/:id", idem, container.TicketTypeHandler.Archive)

			ticketTypes.GET("", container.TicketTypeHandler.ListMine)
			ticketTypes.GET("/:id", container.TicketTypeHandler.Get)
			ticketTypes.GET("/:id/availability", container.TicketTypeHandler.GetAvailability)
		}

		// Gate scans are idempotent at the domain level, a repeated
		// scan of a used code answers already_used.
		v1.POST("/scan", container.ScanHandler.Scan)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start pprof server on separate port for profiling
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Ticketing Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
