// Command admin runs one-off maintenance tasks against the schedule database.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/repository"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/config"
	"github.com/dat-nglt/cusc-schedule/pkg/database"
	"github.com/dat-nglt/cusc-schedule/pkg/logger"
)

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

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect database", zap.Error(err))
	}

	validate := validator.New()
	accountRepo := repository.NewAccountRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	authSvc := service.NewAuthService(accountRepo, tokenRepo, nil, nil, validate, logr, nil, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	changeRequests := service.NewChangeRequestService(repository.NewChangeRequestRepository(db), repository.NewClassScheduleRepository(db), validate, logr, nil)

	cli := commandLine{
		migrate:  func(ctx context.Context) error { return database.CreateSchema(ctx, db) },
		accounts: service.NewAccountService(accountRepo, authSvc, validate, logr),
		janitor:  service.NewJanitorService(authSvc, changeRequests, nil, nil, logr, cfg.Janitor.Interval),
		logger:   logr,
	}
	runErr := cli.run(ctx, os.Args)

	// os.Exit skips deferred calls
	if err := db.Close(); err != nil {
		logr.Warn("close database", zap.Error(err))
	}
	if runErr != nil {
		if !errors.Is(runErr, errHelp) {
			logr.Error("command failed", zap.Error(runErr))
		}
		_ = logr.Sync()
		os.Exit(1)
	}
}
