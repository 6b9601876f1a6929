package main

import (
	"database/sql"
	"fmt"

	"storefront/common/database"
	"storefront/internal/config"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// openStore DB_ENABLED=true 时必须连上 Postgres；内存 store 只在显式关闭 DB 时使用
func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, *sql.DB, error) {
	if !cfg.DBEnabled {
		log.Warn("DB disabled, using memory store: orders and webhook ledger are lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("DB enabled but connection failed: %w", err)
	}
	log.Info("DB enabled for storefront-api")
	return repository.NewPostgresStore(db), db, nil
}
