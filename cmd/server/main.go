package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	libredis "github.com/redis/go-redis/v9"

	"github.com/laburoapp/laburo-backend/internal/config"
	"github.com/laburoapp/laburo-backend/internal/db"
	httpHandlers "github.com/laburoapp/laburo-backend/internal/http/handlers"
	httpRouter "github.com/laburoapp/laburo-backend/internal/http/router"
	"github.com/laburoapp/laburo-backend/internal/logger"
	"github.com/laburoapp/laburo-backend/internal/repository"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/storage"
	"github.com/laburoapp/laburo-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis опционален: без него rate limiter и кэш отчётов живут в памяти.
	var rdb *libredis.Client
	if cfg.RedisAddr != "" {
		rdb = libredis.NewClient(&libredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	proofStorage, err := storage.NewProofStorage(storage.ProofStorageConfig{
		Endpoint:    cfg.S3Endpoint,
		Region:      cfg.S3Region,
		Bucket:      cfg.S3Bucket,
		AccessKey:   cfg.S3AccessKey,
		SecretKey:   cfg.S3SecretKey,
		BaseURL:     cfg.S3BaseURL,
		MaxUploadMB: cfg.MaxUploadSizeMB,
	})
	if err != nil {
		log.Fatalf("main: не удалось подготовить хранилище файлов: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	contractRepo := repository.NewContractRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	reportRepo := repository.NewReportRepository(dbConn)

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo)
	escrowService := service.NewEscrowService(paymentRepo, contractRepo, notificationService)
	contractService := service.NewContractService(contractRepo, jobRepo, escrowService, notificationService, cfg.PlatformCommissionRate)
	jobService := service.NewJobService(jobRepo, notificationService)
	disputeService := service.NewDisputeService(disputeRepo, contractRepo, notificationService)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, userRepo, notificationService, cfg.MinWithdrawalAmount)
	profileService := service.NewProfileService(userRepo)
	seedService := service.NewSeedService(userRepo, jobRepo, contractRepo, paymentRepo, withdrawalRepo, disputeRepo, tokenManager)

	var reportCache service.ReportCache
	if rdb != nil {
		reportCache = service.NewRedisReportCache(rdb)
	} else {
		reportCache = service.NewMemoryReportCache(service.NewCacheService())
	}
	reportService := service.NewReportService(reportRepo, escrowService, reportCache)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run(ctx)
	notificationService.SetHub(hub)

	// HTTP хэндлеры.
	jobHandler := httpHandlers.NewJobHandler(jobService)
	contractHandler := httpHandlers.NewContractHandler(contractService, escrowService)
	paymentHandler := httpHandlers.NewPaymentHandler(escrowService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService, proofStorage)
	reportHandler := httpHandlers.NewReportHandler(reportService, proofStorage)
	profileHandler := httpHandlers.NewProfileHandler(profileService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	webhookHandler := httpHandlers.NewWebhookHandler(escrowService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, rdb)
	seedHandler := httpHandlers.NewSeedHandler(seedService)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, jobHandler, contractHandler, paymentHandler, withdrawalHandler, disputeHandler, reportHandler, profileHandler, notificationHandler, webhookHandler, wsHandler, healthHandler, seedHandler, tokenManager, rdb)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
