// Package store owns the relational schema and all persistence for the
// research workbench: sources, documents, segments, hypotheses and their
// version history, the hypothesis-segment evidence graph, questions, the
// reference cache, and the two job queues. Every multi-row write goes
// through a single transaction at REPEATABLE READ isolation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Store is typed access to the relational model described in the schema
// below. All exported methods are safe to call concurrently.
type Store struct {
	db *sql.DB
}

// Config controls the underlying connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the MySQL-compatible database at cfg.DSN, applies pool
// settings, and runs the schema migration.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already-open *sql.DB without running the schema
// migration.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database reachability; wired into the API's /readyz check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// schema is applied with IF NOT EXISTS semantics so Open is idempotent
// across restarts; there is no separate migration-tool step for this size
// of project, mirroring the teacher's own inline-DDL approach.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id           VARCHAR(36) PRIMARY KEY,
	name         VARCHAR(255) NOT NULL UNIQUE,
	type         VARCHAR(20) NOT NULL,
	feed_url     TEXT NOT NULL,
	is_active    TINYINT NOT NULL DEFAULT 1,
	poll_interval_seconds INT NOT NULL DEFAULT 300,
	created_at   DATETIME(6) NOT NULL,
	updated_at   DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS documents (
	id                  VARCHAR(36) PRIMARY KEY,
	source_id           VARCHAR(36) NOT NULL,
	external_id         VARCHAR(255) NOT NULL,
	title               TEXT,
	author              VARCHAR(255),
	published_at        DATETIME(6) NULL,
	original_url        TEXT,
	original_media_type VARCHAR(50),
	content_text        LONGTEXT,
	content_html        LONGTEXT,
	assets              JSON,
	transcript_status   VARCHAR(20) NOT NULL DEFAULT 'none',
	ingest_status       VARCHAR(20) NOT NULL DEFAULT 'pending',
	is_archived         TINYINT NOT NULL DEFAULT 0,
	created_at          DATETIME(6) NOT NULL,
	updated_at          DATETIME(6) NOT NULL,
	UNIQUE KEY uq_documents_source_external (source_id, external_id),
	CONSTRAINT fk_documents_source FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS segments (
	id             VARCHAR(36) PRIMARY KEY,
	document_id    VARCHAR(36) NOT NULL,
	text           LONGTEXT NOT NULL,
	content_html   LONGTEXT,
	start_offset   INT NULL,
	end_offset     INT NULL,
	offset_kind    VARCHAR(20) NOT NULL DEFAULT 'text',
	segment_status VARCHAR(20) NOT NULL DEFAULT 'raw',
	version        INT NOT NULL DEFAULT 1,
	labels         JSON,
	provenance     JSON,
	created_at     DATETIME(6) NOT NULL,
	updated_at     DATETIME(6) NOT NULL,
	KEY idx_segments_document (document_id),
	CONSTRAINT fk_segments_document FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS hypotheses (
	id              VARCHAR(36) PRIMARY KEY,
	hypothesis_text TEXT NOT NULL,
	description     TEXT,
	reference_url   TEXT,
	reference_type  VARCHAR(20) NOT NULL DEFAULT 'none',
	created_at      DATETIME(6) NOT NULL,
	updated_at      DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS hypothesis_versions (
	id              VARCHAR(36) PRIMARY KEY,
	hypothesis_id   VARCHAR(36) NOT NULL,
	hypothesis_text TEXT NOT NULL,
	description     TEXT,
	reference_url   TEXT,
	reference_type  VARCHAR(20) NOT NULL,
	recorded_at     DATETIME(6) NOT NULL,
	recorded_by     VARCHAR(255),
	KEY idx_hypothesis_versions_hypothesis (hypothesis_id),
	CONSTRAINT fk_versions_hypothesis FOREIGN KEY (hypothesis_id) REFERENCES hypotheses(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS hypothesis_segment_links (
	id             VARCHAR(36) PRIMARY KEY,
	hypothesis_id  VARCHAR(36) NOT NULL,
	segment_id     VARCHAR(36) NOT NULL,
	verdict        VARCHAR(20) NOT NULL DEFAULT '',
	analysis_text  LONGTEXT,
	authored_by    VARCHAR(20) NOT NULL DEFAULT 'human',
	updated_at     DATETIME(6) NOT NULL,
	UNIQUE KEY uq_link_pair (hypothesis_id, segment_id),
	CONSTRAINT fk_links_hypothesis FOREIGN KEY (hypothesis_id) REFERENCES hypotheses(id) ON DELETE CASCADE,
	CONSTRAINT fk_links_segment FOREIGN KEY (segment_id) REFERENCES segments(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS hypothesis_segment_link_runs (
	id                              VARCHAR(36) PRIMARY KEY,
	link_id                         VARCHAR(36) NOT NULL,
	hypothesis_id                   VARCHAR(36) NOT NULL,
	segment_id                      VARCHAR(36) NOT NULL,
	verdict                         VARCHAR(20) NOT NULL DEFAULT '',
	analysis_text                   LONGTEXT,
	authored_by                     VARCHAR(20) NOT NULL DEFAULT 'human',
	created_at                      DATETIME(6) NOT NULL,
	hypothesis_text_snapshot        TEXT NOT NULL,
	description_snapshot           TEXT,
	reference_url_snapshot          TEXT,
	reference_type_snapshot         VARCHAR(20) NOT NULL DEFAULT 'none',
	hypothesis_updated_at_snapshot  DATETIME(6) NOT NULL,
	KEY idx_runs_link (link_id),
	KEY idx_runs_pair (hypothesis_id, segment_id),
	CONSTRAINT fk_runs_link FOREIGN KEY (link_id) REFERENCES hypothesis_segment_links(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS questions (
	id            VARCHAR(36) PRIMARY KEY,
	question_text TEXT NOT NULL,
	created_at    DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS question_hypothesis_links (
	question_id   VARCHAR(36) NOT NULL,
	hypothesis_id VARCHAR(36) NOT NULL,
	PRIMARY KEY (question_id, hypothesis_id),
	CONSTRAINT fk_qhl_question FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE,
	CONSTRAINT fk_qhl_hypothesis FOREIGN KEY (hypothesis_id) REFERENCES hypotheses(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS hypothesis_reference_cache (
	hypothesis_id   VARCHAR(36) PRIMARY KEY,
	full_text       LONGTEXT NOT NULL,
	character_count INT NOT NULL,
	fetched_at      DATETIME(6) NOT NULL,
	CONSTRAINT fk_refcache_hypothesis FOREIGN KEY (hypothesis_id) REFERENCES hypotheses(id) ON DELETE CASCADE
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS ingestion_requests (
	id            VARCHAR(36) PRIMARY KEY,
	source_id     VARCHAR(36) NOT NULL,
	status        VARCHAR(20) NOT NULL DEFAULT 'queued',
	error_message TEXT,
	created_at    DATETIME(6) NOT NULL,
	updated_at    DATETIME(6) NOT NULL,
	queued_marker VARCHAR(36) AS (CASE WHEN status = 'queued' THEN source_id ELSE NULL END) STORED,
	UNIQUE KEY uq_ingestion_queued (queued_marker),
	KEY idx_ingestion_status (status)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS transcription_requests (
	id            VARCHAR(36) PRIMARY KEY,
	document_id   VARCHAR(36) NOT NULL,
	provider      VARCHAR(20) NOT NULL,
	model         VARCHAR(255),
	start_seconds DOUBLE NULL,
	end_seconds   DOUBLE NULL,
	status        VARCHAR(20) NOT NULL DEFAULT 'pending',
	result_text   LONGTEXT,
	metadata      JSON,
	error_message TEXT,
	created_at    DATETIME(6) NOT NULL,
	updated_at    DATETIME(6) NOT NULL,
	KEY idx_transcription_status (status)
) ENGINE=InnoDB;
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// WithTx runs fn inside a REPEATABLE READ transaction, committing on
// success and rolling back on any error (including a panic, which it
// re-raises after rollback).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = sql.ErrNoRows

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
