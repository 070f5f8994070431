package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/database"
	"github.com/example/marketplace/internal/handlers"
	"github.com/example/marketplace/internal/logging"
	"github.com/example/marketplace/internal/middleware"
	"github.com/example/marketplace/internal/routes"
	"github.com/example/marketplace/internal/services"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Marketplace Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(logging.RequestLogger(logging.Component("http"), middleware.CurrentUserID))

	svc := routes.NewServices(db, cfg, clock.WallClock, services.NewMetrics())
	routes.Register(app, svc)

	var sweeper *services.SessionSweeper
	if cfg.SessionSweepInterval > 0 {
		sweeper = services.StartSessionSweeper(svc.Auth, clock.WallClock, cfg.SessionSweepInterval)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logger.Info().Msg("shutting down")
		if sweeper != nil {
			if err := sweeper.Stop(); err != nil {
				logger.Error().Err(err).Msg("session sweeper stopped with error")
			}
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("fiber.Listen error")
	}
}
