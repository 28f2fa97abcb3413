package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking/config"
	deliveryHttp "clinic-booking/internal/delivery/http"
	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"
	domainRepo "clinic-booking/internal/domain/repository"
	"clinic-booking/internal/infrastructure/cache"
	"clinic-booking/internal/infrastructure/catalog"
	"clinic-booking/internal/infrastructure/database"
	"clinic-booking/internal/infrastructure/messaging"
	"clinic-booking/internal/infrastructure/storage"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/service"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/jwt"
	"clinic-booking/pkg/validator"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	RabbitConn  *amqp091.Connection
	Server      *http.Server

	mirror    *service.DirectoryMirrorService
	locks     *service.KeyedMutex
	closeFeed func() error
	publisher *messaging.NotificationPublisher
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	log := setupLogger(cfg.App.LogLevel)
	app.Log = log
	log.Info("Configuration loaded successfully")

	location, err := time.LoadLocation(cfg.App.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.App.TimeZone, err)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	log.Info("Database connected successfully")

	if cfg.DB.AutoMigrate {
		if err := database.RunMigrations(database.MigrationURL(cfg.DB), log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	log.Info("Redis connected successfully")

	// Initialize object storage
	minioClient, err := storage.NewMinioClient(cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	if err := storage.EnsureBucket(ctx, minioClient, cfg.Minio.Bucket); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket %s: %w", cfg.Minio.Bucket, err)
	}
	blobStorage := storage.NewMinioStorage(minioClient, cfg.Minio)

	// Change feed and notifications. Without RabbitMQ both stay in-process.
	var changeFeed domainRepo.ChangeFeed
	notifier := service.MultiNotifier{service.NewLogNotifier(log)}
	if cfg.RabbitMQ.Enabled {
		conn, err := messaging.NewRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		app.RabbitConn = conn

		feed, err := messaging.NewRabbitChangeFeed(conn, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, fmt.Errorf("failed to declare change feed: %w", err)
		}
		changeFeed = feed
		app.closeFeed = feed.Close

		publisher, err := messaging.NewNotificationPublisher(conn, log)
		if err != nil {
			return nil, fmt.Errorf("failed to declare notification queue: %w", err)
		}
		app.publisher = publisher
		notifier = append(notifier, publisher)
		log.Info("RabbitMQ connected successfully")
	} else {
		changeFeed = service.NewLocalChangeFeed(log)
		log.Info("RabbitMQ disabled, using in-process change feed")
	}

	bundled, err := catalog.Load(cfg.Directory.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor catalog: %w", err)
	}
	if bundled.Skipped > 0 {
		log.Warnf("Skipped %d malformed bundled doctor entries", bundled.Skipped)
	}

	deps := dependencies{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		blobStorage: blobStorage,
		changeFeed:  changeFeed,
		notifier:    notifier,
		bundled:     bundled,
		location:    location,
	}

	// Initialize all layers
	server := app.initializeServer(ctx, deps)
	app.Server = server

	return app, nil
}

type dependencies struct {
	cfg         *config.Config
	log         *logrus.Logger
	db          *gorm.DB
	redisClient *redis.Client
	blobStorage domainRepo.BlobStorage
	changeFeed  domainRepo.ChangeFeed
	notifier    domainRepo.NotificationSink
	bundled     *catalog.Catalog
	location    *time.Location
}

// setupLogger configures the logrus logger
func setupLogger(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer(ctx context.Context, d dependencies) *http.Server {
	cfg, log, db := d.cfg, d.log, d.db

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT, cfg.Invite)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	transactor := repository.NewTransactor(db)
	profileRepo := repository.NewProfileRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	familyRepo := repository.NewFamilyMemberRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	clinicRepo := repository.NewClinicRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize Redis-backed stores
	tokenStore := service.NewRedisTokenStore(d.redisClient)
	profileCache := service.NewRedisProfileCache(d.redisClient, cfg.Redis.ProfileTTL)
	slotGuard := service.NewRedisSlotGuard(d.redisClient, log)
	invitationStore := service.NewRedisInvitationStore(d.redisClient)

	// Initialize services
	auditService := service.NewAuditService(log, auditLogRepo)
	app.locks = service.NewKeyedMutex(log)
	app.mirror = service.NewDirectoryMirrorService(
		profileRepo,
		doctorRepo,
		service.NewRedisMirrorQueue(d.redisClient),
		app.locks,
		log,
		cfg.Directory.MirrorRetryInterval,
	)
	if err := app.mirror.SyncOnStartup(ctx); err != nil {
		log.Warnf("Failed to replay deferred directory writes: %+v", err)
	}
	app.mirror.Start()

	// Initialize usecases
	fetchTimeout := cfg.Scheduler.FetchTimeout
	directoryUsecase := usecase.NewDirectoryUsecase(log, d.bundled, doctorRepo, clinicRepo, favoriteRepo, fetchTimeout)
	verificationUsecase := usecase.NewVerificationUsecase(
		log, transactor, profileRepo, invitationStore, app.mirror, auditService, d.notifier, d.changeFeed, jwtService,
	)
	sessionSyncUsecase := usecase.NewSessionSyncUsecase(
		log, transactor, profileRepo, favoriteRepo, familyRepo, appointmentRepo, profileCache,
		directoryUsecase, app.mirror, auditService, d.blobStorage, d.changeFeed, slotGuard, app.locks, time.Now, fetchTimeout,
	)
	authUsecase := usecase.NewAuthUsecase(
		log, transactor, profileRepo, tokenStore, sessionSyncUsecase, app.mirror, auditService, jwtService,
	)
	appointmentUsecase := usecase.NewAppointmentUsecase(
		log, transactor, appointmentRepo, profileRepo, familyRepo, directoryUsecase, verificationUsecase,
		slotGuard, auditService, d.changeFeed, d.notifier, d.location, time.Now, fetchTimeout,
	)
	familyMemberUsecase := usecase.NewFamilyMemberUsecase(log, transactor, familyRepo, auditService, d.blobStorage, d.changeFeed)
	auditLogUsecase := usecase.NewAuditLogUsecase(log, auditLogRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUsecase, customValidator, jwtService)
	profileHandler := handler.NewProfileHandler(sessionSyncUsecase, directoryUsecase, authUsecase, customValidator)
	directoryHandler := handler.NewDirectoryHandler(directoryUsecase)
	appointmentHandler := handler.NewAppointmentHandler(log, appointmentUsecase, customValidator)
	familyMemberHandler := handler.NewFamilyMemberHandler(familyMemberUsecase, customValidator)
	verificationHandler := handler.NewVerificationHandler(verificationUsecase, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(log, jwtService, tokenStore)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.App.CORSOrigins)

	// Initialize router
	router := deliveryHttp.NewRouter(
		authHandler,
		profileHandler,
		directoryHandler,
		appointmentHandler,
		familyMemberHandler,
		verificationHandler,
		auditLogHandler,
		authMiddleware,
		corsMiddleware,
	)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	return &http.Server{
		Addr:              serverAddr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	app.Log.Info("Server shutdown complete")
}

// Close stops background workers and closes all connections
func (app *App) Close() {
	if app.mirror != nil {
		app.mirror.Stop()
	}
	if app.locks != nil {
		app.locks.Stop()
	}

	if app.closeFeed != nil {
		if err := app.closeFeed(); err != nil {
			app.Log.Warnf("Failed to close change feed: %v", err)
		}
	}
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.RabbitConn != nil {
		app.RabbitConn.Close()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
