package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"restrobook/api"
	"restrobook/config"
	"restrobook/pkg/bot"
	"restrobook/pkg/imagehost"
	"restrobook/pkg/logger"
	"restrobook/pkg/mailer"
	"restrobook/pkg/metrics"
	"restrobook/service"
	"restrobook/storage/postgres"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage (Postgres + change feed listener)
	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pgStore.Close()

	// 4. Services
	reg := metrics.NewRegistry()
	services := service.New(pgStore, cfg, log, service.Deps{
		Mailer:  mailer.New(cfg, log),
		Images:  imagehost.New(cfg, log),
		Metrics: reg,
	})
	if err := services.User().EnsureAdmin(ctx); err != nil {
		log.Error("Failed to bootstrap admin account", logger.Error(err))
		os.Exit(1)
	}

	// 5. Optional staff console bot
	if cfg.StaffBotToken != "" {
		staffBot, err := bot.New(cfg, services, log)
		if err != nil {
			log.Error("Failed to initialize staff bot", logger.Error(err))
			os.Exit(1)
		}
		go staffBot.Start()
		defer staffBot.Stop()
	}

	// 6. HTTP API until a shutdown signal arrives
	engine := api.New(services, pgStore, reg, cfg, log)
	if err := api.Run(ctx, engine, cfg.AppPort, log); err != nil {
		log.Error("HTTP server stopped", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Shutting down...")
}
