package database

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"memorialwall/internal/config"
)

// Schema creates the entries table. deleted_at implements soft delete.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	id CHAR(36) PRIMARY KEY,
	scope VARCHAR(191) NOT NULL,
	author VARCHAR(255) NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME(6) NOT NULL,
	deleted_at DATETIME(6) NULL,
	INDEX idx_entries_scope_created (scope, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

// DSN builds the MySQL data source name for cfg
func DSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}

// Init opens the database, checks the connection and ensures the schema
func Init(cfg config.Config, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Infof("✅ Database connection established (%s@%s:%s/%s)", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, nil
}
