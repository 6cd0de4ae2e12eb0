package main

import (
	"context"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// Menu, users and settings are kept; only live state is wiped.
	if err := pg.Order().Truncate(context.Background()); err != nil {
		log.Error("Failed to truncate orders", logger.Error(err))
		return
	}
	log.Info("Successfully truncated orders and table leases.")
}
