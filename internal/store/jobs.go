package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// ErrAlreadyQueued is returned by EnqueueIngestionRequest when a queued row
// already exists for the source (the queued_marker unique index tripped).
var ErrAlreadyQueued = errors.New("store: ingestion request already queued for source")

// EnqueueIngestionRequest inserts a queued ingestion request for a source.
// It relies on the queued_marker generated column's unique index to enforce
// at most one queued row per source; a collision is reported as
// ErrAlreadyQueued rather than a raw driver error.
func (s *Store) EnqueueIngestionRequest(ctx context.Context, sourceID string) (*models.IngestionRequest, error) {
	now := time.Now().UTC()
	req := &models.IngestionRequest{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		Status:    models.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_requests (id, source_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.SourceID, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if isDuplicateKeyErr(err) {
		return nil, ErrAlreadyQueued
	}
	if err != nil {
		return nil, fmt.Errorf("insert ingestion request: %w", err)
	}
	return req, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// IsSerializationConflict reports whether err is a MySQL deadlock (1213) or
// lock wait timeout (1205) — the two codes InnoDB returns when a transaction
// loses a concurrent write race and should simply be re-run against the
// now-current data.
func IsSerializationConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

// ClaimNextIngestionRequest atomically claims the oldest queued ingestion
// request, if any, marking it in_progress. Uses SELECT ... FOR UPDATE SKIP
// LOCKED so concurrent worker instances never claim the same row twice.
func (s *Store) ClaimNextIngestionRequest(ctx context.Context) (*models.IngestionRequest, error) {
	var claimed *models.IngestionRequest
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, source_id, status, error_message, created_at, updated_at
			FROM ingestion_requests WHERE status = 'queued'
			ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`)

		req := &models.IngestionRequest{}
		var status string
		var errMsg sql.NullString
		err := row.Scan(&req.ID, &req.SourceID, &status, &errMsg, &req.CreatedAt, &req.UpdatedAt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim ingestion request: %w", err)
		}

		req.Status = models.JobStatusInProgress
		req.UpdatedAt = time.Now().UTC()
		if errMsg.Valid {
			req.ErrorMessage = errMsg.String
		}
		_, err = tx.ExecContext(ctx, `UPDATE ingestion_requests SET status = ?, updated_at = ? WHERE id = ?`,
			string(req.Status), req.UpdatedAt, req.ID)
		if err != nil {
			return fmt.Errorf("mark ingestion request in_progress: %w", err)
		}
		claimed = req
		return nil
	})
	return claimed, err
}

// CompleteIngestionRequest marks an ingestion request completed.
func (s *Store) CompleteIngestionRequest(ctx context.Context, id string) error {
	return s.setIngestionRequestStatus(ctx, id, models.JobStatusCompleted, "")
}

// FailIngestionRequest marks an ingestion request failed with the given
// message.
func (s *Store) FailIngestionRequest(ctx context.Context, id, errMsg string) error {
	return s.setIngestionRequestStatus(ctx, id, models.JobStatusFailed, errMsg)
}

func (s *Store) setIngestionRequestStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingestion_requests SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update ingestion request status: %w", err)
	}
	return nil
}

// GetIngestionRequest returns an ingestion request by id, or ErrNotFound.
func (s *Store) GetIngestionRequest(ctx context.Context, id string) (*models.IngestionRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, source_id, status, error_message, created_at, updated_at FROM ingestion_requests WHERE id = ?`, id)
	return scanIngestionRequest(row)
}

// ListIngestionRequests returns ingestion requests, newest first.
func (s *Store) ListIngestionRequests(ctx context.Context, limit, offset int) ([]*models.IngestionRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, status, error_message, created_at, updated_at
		FROM ingestion_requests ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ingestion requests: %w", err)
	}
	defer rows.Close()

	var out []*models.IngestionRequest
	for rows.Next() {
		req := &models.IngestionRequest{}
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&req.ID, &req.SourceID, &status, &errMsg, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.Status = models.JobStatus(status)
		if errMsg.Valid {
			req.ErrorMessage = errMsg.String
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// IngestionQueueDepth returns the count of queued ingestion requests, used
// to populate the queue-depth gauge.
func (s *Store) IngestionQueueDepth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingestion_requests WHERE status = 'queued'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ingestion queue depth: %w", err)
	}
	return n, nil
}

func scanIngestionRequest(row *sql.Row) (*models.IngestionRequest, error) {
	req := &models.IngestionRequest{}
	var status string
	var errMsg sql.NullString
	if err := row.Scan(&req.ID, &req.SourceID, &status, &errMsg, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = models.JobStatus(status)
	if errMsg.Valid {
		req.ErrorMessage = errMsg.String
	}
	return req, nil
}

// EnqueueTranscriptionRequest inserts a pending transcription request.
func (s *Store) EnqueueTranscriptionRequest(ctx context.Context, documentID string, provider models.TranscriptionProvider, model string, startSeconds, endSeconds *float64) (*models.TranscriptionRequest, error) {
	now := time.Now().UTC()
	req := &models.TranscriptionRequest{
		ID:           uuid.New().String(),
		DocumentID:   documentID,
		Provider:     provider,
		Model:        model,
		StartSeconds: startSeconds,
		EndSeconds:   endSeconds,
		Status:       models.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcription_requests (id, document_id, provider, model, start_seconds, end_seconds, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.DocumentID, string(req.Provider), req.Model, nullFloat(req.StartSeconds), nullFloat(req.EndSeconds),
		string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transcription request: %w", err)
	}
	return req, nil
}

// ClaimNextTranscriptionRequest atomically claims the oldest pending
// transcription request, if any.
func (s *Store) ClaimNextTranscriptionRequest(ctx context.Context) (*models.TranscriptionRequest, error) {
	var claimed *models.TranscriptionRequest
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, document_id, provider, model, start_seconds, end_seconds, status, result_text, metadata, error_message, created_at, updated_at
			FROM transcription_requests WHERE status = 'pending'
			ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`)

		req, err := scanTranscriptionRequestRow(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim transcription request: %w", err)
		}

		req.Status = models.JobStatusInProgress
		req.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `UPDATE transcription_requests SET status = ?, updated_at = ? WHERE id = ?`,
			string(req.Status), req.UpdatedAt, req.ID)
		if err != nil {
			return fmt.Errorf("mark transcription request in_progress: %w", err)
		}
		claimed = req
		return nil
	})
	return claimed, err
}

// CompleteTranscriptionRequest marks a transcription request completed,
// recording the transcribed text and optional provider metadata.
func (s *Store) CompleteTranscriptionRequest(ctx context.Context, id, resultText string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal transcription metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE transcription_requests SET status = ?, result_text = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		string(models.JobStatusCompleted), resultText, string(metaJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete transcription request: %w", err)
	}
	return nil
}

// FailTranscriptionRequest marks a transcription request failed.
func (s *Store) FailTranscriptionRequest(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transcription_requests SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(models.JobStatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("fail transcription request: %w", err)
	}
	return nil
}

// GetTranscriptionRequest returns a transcription request by id, or
// ErrNotFound.
func (s *Store) GetTranscriptionRequest(ctx context.Context, id string) (*models.TranscriptionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, provider, model, start_seconds, end_seconds, status, result_text, metadata, error_message, created_at, updated_at
		FROM transcription_requests WHERE id = ?`, id)
	return scanTranscriptionRequestRow(row)
}

// TranscriptionQueueDepth returns the count of pending transcription
// requests.
func (s *Store) TranscriptionQueueDepth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcription_requests WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("transcription queue depth: %w", err)
	}
	return n, nil
}

func scanTranscriptionRequestRow(row *sql.Row) (*models.TranscriptionRequest, error) {
	req := &models.TranscriptionRequest{}
	var provider, status string
	var startSeconds, endSeconds sql.NullFloat64
	var resultText, errMsg sql.NullString
	var metaJSON sql.NullString

	err := row.Scan(&req.ID, &req.DocumentID, &provider, &req.Model, &startSeconds, &endSeconds, &status,
		&resultText, &metaJSON, &errMsg, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Provider = models.TranscriptionProvider(provider)
	req.Status = models.JobStatus(status)
	if startSeconds.Valid {
		v := startSeconds.Float64
		req.StartSeconds = &v
	}
	if endSeconds.Valid {
		v := endSeconds.Float64
		req.EndSeconds = &v
	}
	if resultText.Valid {
		req.ResultText = resultText.String
	}
	if errMsg.Valid {
		req.ErrorMessage = errMsg.String
	}
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &req.Metadata)
	}
	return req, nil
}
