package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/database"
	"github.com/noah-isme/ada-judge-api/internal/handler"
	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/repository"
	"github.com/noah-isme/ada-judge-api/internal/router"
	"github.com/noah-isme/ada-judge-api/internal/service"
	"github.com/noah-isme/ada-judge-api/internal/utils"
	"github.com/noah-isme/ada-judge-api/pkg/githost"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	gitHelper, err := githost.NewCommandHelper(githost.Config{
		Path:    cfg.Git.HelperPath,
		Timeout: cfg.Git.HelperTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure git helper")
	}

	dispatcher, err := service.NewJudgeDispatcher(cfg.JudgeDispatch, cfg.JudgeChannel, redisClient, natsConn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure judge dispatch")
	}

	validate := utils.NewValidator()

	userRepo := repository.NewUserRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	ledger := service.NewQuotaLedger(quotaRepo, problemRepo, cfg.JudgeTimeZone, logger)
	registry := service.NewSubmissionRegistry(submissionRepo, logger)
	gateway := service.NewIntakeGateway(service.IntakeDeps{
		Users:       userRepo,
		Problems:    problemRepo,
		Keys:        service.NewKeyStore(userRepo, logger),
		Provisioner: service.NewRepoProvisioner(cfg.Git, gitHelper, logger),
		Ledger:      ledger,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Validator:   validate,
	}, logger)
	catalog := service.NewProblemCatalog(problemRepo, ledger, redisClient, cfg.ProblemCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		UserHandler:       handler.NewUserHandler(gateway, logger),
		ProblemHandler:    handler.NewProblemHandler(catalog, logger),
		SubmissionHandler: handler.NewSubmissionHandler(registry, gateway, validate, logger),
		DB:                db,
		Cache:             redisClient,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Str("judge_dispatch", dispatcher.Transport()).Msg("judge api started")
	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
