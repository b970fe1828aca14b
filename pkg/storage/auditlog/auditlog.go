// Copyright 2025 Certen Protocol
//
// Package auditlog mirrors block-commit metadata into Postgres as a
// non-authoritative, operational-visibility side channel: the versioned
// JMT substores (pkg/storage) remain the system of record and the only
// source consulted for consensus or proof verification. Nothing here is
// read back into block execution.
package auditlog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// Sink records one block's commit metadata. NoopSink is used when the
// audit mirror is disabled (pkg/config's AuditEnabled).
type Sink interface {
	RecordCommit(ctx context.Context, rec CommitRecord) error
	Close() error
}

// CommitRecord is the non-authoritative metadata captured for one commit.
type CommitRecord struct {
	Height     int64
	AppHash    string
	BlockTime  time.Time
	TxCount    int
	EventCount int
}

// NoopSink discards every record; used when the audit mirror is disabled.
type NoopSink struct{}

func (NoopSink) RecordCommit(context.Context, CommitRecord) error { return nil }
func (NoopSink) Close() error                                     { return nil }

// PostgresSink mirrors commit records into a Postgres table via
// database/sql's lib/pq driver.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection pool against databaseURL and ensures
// the mirror table exists.
func NewPostgresSink(databaseURL string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &PostgresSink{db: db}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) createTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledgercore_block_commits (
			height      BIGINT PRIMARY KEY,
			app_hash    TEXT NOT NULL,
			block_time  TIMESTAMPTZ NOT NULL,
			tx_count    INTEGER NOT NULL,
			event_count INTEGER NOT NULL
		)
	`)
	return err
}

// RecordCommit inserts or replaces the metadata row for rec.Height. A
// re-finalized height (e.g. after a restart replaying the same block)
// overwrites rather than duplicates the row.
func (s *PostgresSink) RecordCommit(ctx context.Context, rec CommitRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledgercore_block_commits (height, app_hash, block_time, tx_count, event_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (height) DO UPDATE SET
			app_hash = EXCLUDED.app_hash,
			block_time = EXCLUDED.block_time,
			tx_count = EXCLUDED.tx_count,
			event_count = EXCLUDED.event_count
	`, rec.Height, rec.AppHash, rec.BlockTime, rec.TxCount, rec.EventCount)
	return err
}

func (s *PostgresSink) Close() error { return s.db.Close() }
