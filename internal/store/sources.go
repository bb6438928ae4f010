package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// CreateSource inserts a Source row. Sources are not seeded from the
// config file at process startup.
func (s *Store) CreateSource(ctx context.Context, name string, typ models.SourceType, feedURL string, isActive bool, pollInterval time.Duration) (*models.Source, error) {
	now := time.Now().UTC()
	src := &models.Source{
		ID:           uuid.New().String(),
		Name:         name,
		Type:         typ,
		FeedURL:      feedURL,
		IsActive:     isActive,
		PollInterval: pollInterval,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, type, feed_url, is_active, poll_interval_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, string(src.Type), src.FeedURL, boolToInt(src.IsActive),
		int(src.PollInterval.Seconds()), src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return src, nil
}

// GetSourceByName returns the source with the given name, or ErrNotFound.
func (s *Store) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	return s.scanSource(s.db.QueryRowContext(ctx, `SELECT id, name, type, feed_url, is_active, poll_interval_seconds, created_at, updated_at FROM sources WHERE name = ?`, name))
}

// GetSource returns the source with the given id, or ErrNotFound.
func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return s.scanSource(s.db.QueryRowContext(ctx, `SELECT id, name, type, feed_url, is_active, poll_interval_seconds, created_at, updated_at FROM sources WHERE id = ?`, id))
}

// ListSources returns every configured source, active or not.
func (s *Store) ListSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, feed_url, is_active, poll_interval_seconds, created_at, updated_at FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		src, err := s.scanSourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// ListActiveSources returns sources with is_active = true.
func (s *Store) ListActiveSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, feed_url, is_active, poll_interval_seconds, created_at, updated_at FROM sources WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		src, err := s.scanSourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) scanSource(row *sql.Row) (*models.Source, error) {
	src := &models.Source{}
	var typ string
	var isActive int
	var pollSeconds int
	if err := row.Scan(&src.ID, &src.Name, &typ, &src.FeedURL, &isActive, &pollSeconds, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Type = models.SourceType(typ)
	src.IsActive = isActive == 1
	src.PollInterval = time.Duration(pollSeconds) * time.Second
	return src, nil
}

func (s *Store) scanSourceRow(rows *sql.Rows) (*models.Source, error) {
	src := &models.Source{}
	var typ string
	var isActive int
	var pollSeconds int
	if err := rows.Scan(&src.ID, &src.Name, &typ, &src.FeedURL, &isActive, &pollSeconds, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Type = models.SourceType(typ)
	src.IsActive = isActive == 1
	src.PollInterval = time.Duration(pollSeconds) * time.Second
	return src, nil
}
