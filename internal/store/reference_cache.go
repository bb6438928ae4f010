package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// GetReferenceCacheEntry returns the cached reference text for a
// hypothesis, or ErrNotFound if nothing has been fetched yet.
func (s *Store) GetReferenceCacheEntry(ctx context.Context, hypothesisID string) (*models.ReferenceCacheEntry, error) {
	e := &models.ReferenceCacheEntry{}
	err := s.db.QueryRowContext(ctx, `
		SELECT hypothesis_id, full_text, character_count, fetched_at
		FROM hypothesis_reference_cache WHERE hypothesis_id = ?`, hypothesisID,
	).Scan(&e.HypothesisID, &e.FullText, &e.CharacterCount, &e.FetchedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// PutReferenceCacheEntry inserts or overwrites the cached reference text
// for a hypothesis, stamping the current fetch time.
func (s *Store) PutReferenceCacheEntry(ctx context.Context, hypothesisID, fullText string) (*models.ReferenceCacheEntry, error) {
	e := &models.ReferenceCacheEntry{
		HypothesisID:   hypothesisID,
		FullText:       fullText,
		CharacterCount: len([]rune(fullText)),
		FetchedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hypothesis_reference_cache (hypothesis_id, full_text, character_count, fetched_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE full_text = VALUES(full_text), character_count = VALUES(character_count), fetched_at = VALUES(fetched_at)`,
		e.HypothesisID, e.FullText, e.CharacterCount, e.FetchedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("put reference cache entry: %w", err)
	}
	return e, nil
}

// InvalidateReferenceCacheEntry removes a hypothesis's cached reference
// text, forcing the next read to re-fetch.
func (s *Store) InvalidateReferenceCacheEntry(ctx context.Context, hypothesisID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hypothesis_reference_cache WHERE hypothesis_id = ?`, hypothesisID)
	if err != nil {
		return fmt.Errorf("invalidate reference cache entry: %w", err)
	}
	return nil
}
