package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// CreateHypothesis inserts a new hypothesis.
func (s *Store) CreateHypothesis(ctx context.Context, h models.Hypothesis) (*models.Hypothesis, error) {
	now := time.Now().UTC()
	h.ID = uuid.New().String()
	h.CreatedAt = now
	h.UpdatedAt = now
	if h.ReferenceType == "" {
		h.ReferenceType = models.ReferenceTypeNone
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hypotheses (id, hypothesis_text, description, reference_url, reference_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.HypothesisText, h.Description, h.ReferenceURL, string(h.ReferenceType), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert hypothesis: %w", err)
	}
	return &h, nil
}

// createHypothesisTx is the same insert, run inside an existing transaction
// (used by the evidence engine's commit_evidence).
func (s *Store) createHypothesisTx(ctx context.Context, tx *sql.Tx, h models.Hypothesis) (*models.Hypothesis, error) {
	now := time.Now().UTC()
	h.ID = uuid.New().String()
	h.CreatedAt = now
	h.UpdatedAt = now
	if h.ReferenceType == "" {
		h.ReferenceType = models.ReferenceTypeNone
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO hypotheses (id, hypothesis_text, description, reference_url, reference_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.HypothesisText, h.Description, h.ReferenceURL, string(h.ReferenceType), h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert hypothesis: %w", err)
	}
	return &h, nil
}

// GetHypothesis returns a hypothesis by id, or ErrNotFound.
func (s *Store) GetHypothesis(ctx context.Context, id string) (*models.Hypothesis, error) {
	return s.getHypothesis(ctx, s.db, id)
}

func (s *Store) getHypothesisTx(ctx context.Context, tx *sql.Tx, id string) (*models.Hypothesis, error) {
	return s.getHypothesis(ctx, tx, id)
}

type queryRowCtx interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) getHypothesis(ctx context.Context, q queryRowCtx, id string) (*models.Hypothesis, error) {
	row := q.QueryRowContext(ctx, `SELECT id, hypothesis_text, description, reference_url, reference_type, created_at, updated_at FROM hypotheses WHERE id = ?`, id)
	h := &models.Hypothesis{}
	var refType string
	if err := row.Scan(&h.ID, &h.HypothesisText, &h.Description, &h.ReferenceURL, &refType, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.ReferenceType = models.ReferenceType(refType)
	return h, nil
}

// ListHypotheses returns every hypothesis with its evidence (link) count.
func (s *Store) ListHypotheses(ctx context.Context, limit, offset int) ([]*models.Hypothesis, []int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.hypothesis_text, h.description, h.reference_url, h.reference_type, h.created_at, h.updated_at, COUNT(l.id)
		FROM hypotheses h
		LEFT JOIN hypothesis_segment_links l ON l.hypothesis_id = h.id
		GROUP BY h.id
		ORDER BY h.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list hypotheses: %w", err)
	}
	defer rows.Close()

	var out []*models.Hypothesis
	var counts []int
	for rows.Next() {
		h := &models.Hypothesis{}
		var refType string
		var count int
		if err := rows.Scan(&h.ID, &h.HypothesisText, &h.Description, &h.ReferenceURL, &refType, &h.CreatedAt, &h.UpdatedAt, &count); err != nil {
			return nil, nil, err
		}
		h.ReferenceType = models.ReferenceType(refType)
		out = append(out, h)
		counts = append(counts, count)
	}
	return out, counts, rows.Err()
}

// UpdateHypothesis applies a partial update. Whenever any of the four
// content fields actually changes, the pre-image is snapshotted into
// hypothesis_versions in the same transaction (the trigger-equivalent
// guarantee), and updated_at is bumped.
func (s *Store) UpdateHypothesis(ctx context.Context, id string, patch HypothesisPatch) (*models.Hypothesis, error) {
	var result *models.Hypothesis
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getHypothesisTx(ctx, tx, id)
		if err != nil {
			return err
		}

		next := *current
		if patch.HypothesisText != nil {
			next.HypothesisText = *patch.HypothesisText
		}
		if patch.Description != nil {
			next.Description = *patch.Description
		}
		if patch.ReferenceURL != nil {
			next.ReferenceURL = *patch.ReferenceURL
		}
		if patch.ReferenceType != nil {
			next.ReferenceType = *patch.ReferenceType
		}

		changed := next.HypothesisText != current.HypothesisText ||
			next.Description != current.Description ||
			next.ReferenceURL != current.ReferenceURL ||
			next.ReferenceType != current.ReferenceType

		if changed {
			if err := s.snapshotVersionTx(ctx, tx, current, patch.RecordedBy); err != nil {
				return err
			}
		}

		next.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE hypotheses SET hypothesis_text=?, description=?, reference_url=?, reference_type=?, updated_at=?
			WHERE id=?`,
			next.HypothesisText, next.Description, next.ReferenceURL, string(next.ReferenceType), next.UpdatedAt, next.ID,
		)
		if err != nil {
			return fmt.Errorf("update hypothesis: %w", err)
		}
		result = &next
		return nil
	})
	return result, err
}

// updateHypothesisContentTx is the same logic used inline by commit_evidence
// when an existing hypothesis's content fields differ from the payload.
func (s *Store) updateHypothesisContentTx(ctx context.Context, tx *sql.Tx, current *models.Hypothesis, text, description string) (*models.Hypothesis, error) {
	if current.HypothesisText == text && current.Description == description {
		return current, nil
	}

	if err := s.snapshotVersionTx(ctx, tx, current, ""); err != nil {
		return nil, err
	}

	next := *current
	next.HypothesisText = text
	next.Description = description
	next.UpdatedAt = time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		UPDATE hypotheses SET hypothesis_text=?, description=?, updated_at=? WHERE id=?`,
		next.HypothesisText, next.Description, next.UpdatedAt, next.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update hypothesis content: %w", err)
	}
	return &next, nil
}

func (s *Store) snapshotVersionTx(ctx context.Context, tx *sql.Tx, preImage *models.Hypothesis, recordedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO hypothesis_versions (id, hypothesis_id, hypothesis_text, description, reference_url, reference_type, recorded_at, recorded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), preImage.ID, preImage.HypothesisText, preImage.Description,
		preImage.ReferenceURL, string(preImage.ReferenceType), time.Now().UTC(), recordedBy,
	)
	if err != nil {
		return fmt.Errorf("snapshot hypothesis version: %w", err)
	}
	return nil
}

// DeleteHypothesis removes a hypothesis; links, runs, versions, the
// reference cache row, and question links cascade via foreign keys.
func (s *Store) DeleteHypothesis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hypotheses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete hypothesis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HypothesisPatch carries the fields of a PATCH /hypotheses/{id} request;
// nil means "leave unchanged".
type HypothesisPatch struct {
	HypothesisText *string
	Description    *string
	ReferenceURL   *string
	ReferenceType  *models.ReferenceType
	RecordedBy     string
}

// ListHypothesisVersions returns the append-only history for a hypothesis,
// oldest first.
func (s *Store) ListHypothesisVersions(ctx context.Context, hypothesisID string) ([]*models.HypothesisVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, hypothesis_text, description, reference_url, reference_type, recorded_at, recorded_by
		FROM hypothesis_versions WHERE hypothesis_id = ? ORDER BY recorded_at`, hypothesisID)
	if err != nil {
		return nil, fmt.Errorf("list hypothesis versions: %w", err)
	}
	defer rows.Close()

	var out []*models.HypothesisVersion
	for rows.Next() {
		v := &models.HypothesisVersion{}
		var refType string
		if err := rows.Scan(&v.ID, &v.HypothesisID, &v.HypothesisText, &v.Description, &v.ReferenceURL, &refType, &v.RecordedAt, &v.RecordedBy); err != nil {
			return nil, err
		}
		v.ReferenceType = models.ReferenceType(refType)
		out = append(out, v)
	}
	return out, rows.Err()
}
