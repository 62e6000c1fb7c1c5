package main

import (
	"time"

	"gorm.io/gorm"

	"github.com/alex-devdone/mission-control-sub000/internal/config"
	"github.com/alex-devdone/mission-control-sub000/internal/db"
)

// connectFromConfig loads the config file and opens the entity store.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func openStore(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DB.SQLitePath != "" {
		return db.ConnectSQLite(cfg.DB.SQLitePath)
	}
	return db.Connect(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Database)
}

func openclawTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Openclaw.TimeoutSec) * time.Second
}

func limitsTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Limits.TimeoutSec) * time.Second
}
