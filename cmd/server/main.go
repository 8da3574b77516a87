package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"

	_ "github.com/dat-nglt/cusc-schedule/api/swagger"
	"github.com/dat-nglt/cusc-schedule/internal/handler"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	"github.com/dat-nglt/cusc-schedule/internal/router"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/cache"
	"github.com/dat-nglt/cusc-schedule/pkg/config"
	"github.com/dat-nglt/cusc-schedule/pkg/database"
	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
	"github.com/dat-nglt/cusc-schedule/pkg/logger"
	"github.com/dat-nglt/cusc-schedule/pkg/mail"
)

// @title CUSC Schedule API
// @version 1.0.0
// @description University timetable backend: accounts, academic structure, class schedules, change requests and notifications.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	if cfg.Log.RollbarToken != "" {
		defer rollbar.Close()
	}

	if err := run(cfg, logr); err != nil {
		logr.Error("server exited", zap.Error(err))
		_ = logr.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logr.Warn("close database", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.CreateSchema(ctx, db); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		logr.Info("schema ensured")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// the blacklist falls back to the database
		logr.Warn("redis unavailable, blacklist cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	app, err := build(cfg, logr, db, redisClient)
	if err != nil {
		return err
	}

	app.queue.Start(ctx)
	defer app.queue.Stop()
	if cfg.Janitor.Enabled {
		go app.janitor.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type application struct {
	engine  http.Handler
	queue   *jobs.Queue
	janitor *service.JanitorService
}

// build wires repositories, services and handlers around the given handles.
func build(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	accountRepo := repository.NewAccountRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	scheduleRepo := repository.NewClassScheduleRepository(db)

	var blacklistCache *service.CacheService
	if redisClient != nil {
		blacklistCache = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, logr, true)
	}

	authSvc := service.NewAuthService(accountRepo, tokenRepo, blacklistCache, service.NewGoogleVerifier(cfg.Google.ClientID), validate, logr, metrics, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	accountSvc := service.NewAccountService(accountRepo, authSvc, validate, logr)

	mailer, err := mail.New(cfg.Mail, logr)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	mux := jobs.NewMux()
	queue := jobs.NewQueue("background", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.Janitor.Workers,
		MaxRetries: cfg.Janitor.Retries,
		Logger:     logr,
	})

	notificationSvc := service.NewNotificationService(notificationRepo, queue, validate, logr, metrics)
	mux.Handle(service.JobNotificationEmail, service.NewNotificationMailer(notificationRepo, mailer, logr, metrics).Handle)

	changeRequestSvc := service.NewChangeRequestService(changeRequestRepo, scheduleRepo, validate, logr, metrics)
	janitor := service.NewJanitorService(authSvc, changeRequestSvc, queue, metrics, logr, cfg.Janitor.Interval)
	janitor.Register(mux)

	metricsHandler := handler.NewMetricsHandler(metrics, db)
	if redisClient != nil {
		metricsHandler.WithCache(repository.NewCacheRepository(redisClient, logr))
	}

	engine := router.New(cfg, logr, authSvc, metrics, router.Handlers{
		Auth:           handler.NewAuthHandler(authSvc),
		Accounts:       handler.NewAccountHandler(accountSvc, authSvc),
		Notifications:  handler.NewNotificationHandler(notificationSvc),
		ChangeRequests: handler.NewChangeRequestHandler(changeRequestSvc),
		Programs:       handler.NewProgramHandler(service.NewProgramService(repository.NewProgramRepository(db), validate, logr)),
		Semesters:      handler.NewSemesterHandler(service.NewSemesterService(repository.NewSemesterRepository(db), validate, logr)),
		Subjects:       handler.NewSubjectHandler(service.NewSubjectService(repository.NewSubjectRepository(db), validate, logr)),
		Classes:        handler.NewClassHandler(service.NewClassService(repository.NewClassRepository(db), validate, logr)),
		Rooms:          handler.NewRoomHandler(service.NewRoomService(repository.NewRoomRepository(db), validate, logr)),
		Schedules:      handler.NewClassScheduleHandler(service.NewClassScheduleService(scheduleRepo, validate, logr)),
		Lecturers: handler.NewLecturerHandler(service.NewLecturerService(accountRepo,
			repository.NewLecturerAssignmentRepository(db), repository.NewBusySlotRepository(db), validate, logr)),
		Export:  handler.NewExportHandler(service.NewExportService(scheduleRepo, validate, logr)),
		Metrics: metricsHandler,
	})

	return &application{engine: engine, queue: queue, janitor: janitor}, nil
}
