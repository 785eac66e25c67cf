package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig holds connection settings for the MySQL store.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLStore persists consensus runs in MySQL. Each RecordRun call is one
// transaction, so concurrent runs never corrupt unrelated rows.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens the database and ensures the schema exists.
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

// Close releases the underlying database connection pool.
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun inserts a run and its stage rows in one transaction.
func (s *MySQLStore) RecordRun(ctx context.Context, record RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const runQuery = `INSERT INTO consensus_runs
(conversation_id, query, user, profile_name, success, total_cost, total_duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, runQuery,
		record.ConversationID,
		record.Query,
		record.User,
		record.ProfileName,
		record.Success,
		record.TotalCost,
		record.TotalDuration.Milliseconds(),
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", record.ConversationID, err)
	}

	const stageQuery = `INSERT INTO consensus_stages
(conversation_id, stage, model, content, tokens_input, tokens_output, cost, duration_ms, started_at, completed_at, retries)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, stage := range record.Stages {
		if _, err := tx.ExecContext(ctx, stageQuery,
			record.ConversationID,
			stage.Stage,
			stage.Model,
			stage.Content,
			stage.TokensInput,
			stage.TokensOutput,
			stage.Cost,
			stage.DurationMS,
			stage.StartedAt,
			stage.CompletedAt,
			stage.Retries,
		); err != nil {
			return fmt.Errorf("insert stage %s for run %s: %w", stage.Stage, record.ConversationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", record.ConversationID, err)
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS consensus_runs (
	conversation_id VARCHAR(64) NOT NULL PRIMARY KEY,
	query TEXT NOT NULL,
	user VARCHAR(128) NOT NULL DEFAULT '',
	profile_name VARCHAR(128) NOT NULL DEFAULT '',
	success TINYINT(1) NOT NULL,
	total_cost DOUBLE NOT NULL,
	total_duration_ms BIGINT NOT NULL,
	created_at DATETIME(6) NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS consensus_stages (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	conversation_id VARCHAR(64) NOT NULL,
	stage VARCHAR(32) NOT NULL,
	model VARCHAR(128) NOT NULL,
	content MEDIUMTEXT NOT NULL,
	tokens_input INT NOT NULL,
	tokens_output INT NOT NULL,
	cost DOUBLE NOT NULL,
	duration_ms BIGINT NOT NULL,
	started_at DATETIME(6) NOT NULL,
	completed_at DATETIME(6) NOT NULL,
	retries INT NOT NULL DEFAULT 0,
	INDEX idx_stages_conversation (conversation_id)
)`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
