package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// UpsertDocument inserts a new document or updates an existing one keyed by
// (source_id, external_id), as required by the ingestion worker's
// idempotency contract. Returns the resulting row.
func (s *Store) UpsertDocument(ctx context.Context, rec models.Document) (*models.Document, error) {
	now := time.Now().UTC()
	assetsJSON, err := json.Marshal(rec.Assets)
	if err != nil {
		return nil, fmt.Errorf("marshal assets: %w", err)
	}

	existing, err := s.getDocumentBySourceExternal(ctx, rec.SourceID, rec.ExternalID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if existing == nil {
		rec.ID = uuid.New().String()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (id, source_id, external_id, title, author, published_at,
				original_url, original_media_type, content_text, content_html, assets,
				transcript_status, ingest_status, is_archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.SourceID, rec.ExternalID, rec.Title, rec.Author, nullTime(rec.PublishedAt),
			rec.OriginalURL, rec.OriginalMediaType, rec.ContentText, rec.ContentHTML, string(assetsJSON),
			string(rec.TranscriptStatus), string(rec.IngestStatus), boolToInt(rec.IsArchived), rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
		return &rec, nil
	}

	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = now
	rec.IsArchived = existing.IsArchived
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET title=?, author=?, published_at=?, original_url=?, original_media_type=?,
			content_text=?, content_html=?, assets=?, transcript_status=?, ingest_status=?, updated_at=?
		WHERE id=?`,
		rec.Title, rec.Author, nullTime(rec.PublishedAt), rec.OriginalURL, rec.OriginalMediaType,
		rec.ContentText, rec.ContentHTML, string(assetsJSON), string(rec.TranscriptStatus), string(rec.IngestStatus),
		rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return &rec, nil
}

func (s *Store) getDocumentBySourceExternal(ctx context.Context, sourceID, externalID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE source_id = ? AND external_id = ?`, sourceID, externalID)
	return s.scanDocument(row)
}

// GetDocument returns a document by id, or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return s.scanDocument(row)
}

// ListActiveDocuments returns non-archived documents with each one's segment
// count, newest first.
func (s *Store) ListActiveDocuments(ctx context.Context, limit, offset int) ([]*models.Document, []int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumnsPrefixed+`, COUNT(seg.id)
		FROM documents d
		LEFT JOIN segments seg ON seg.document_id = d.id
		WHERE d.is_archived = 0
		GROUP BY d.id
		ORDER BY d.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	var counts []int
	for rows.Next() {
		doc, count, err := s.scanDocumentWithCount(rows)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, doc)
		counts = append(counts, count)
	}
	return docs, counts, rows.Err()
}

// ArchiveDocument soft-deletes a document by id.
func (s *Store) ArchiveDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET is_archived = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("archive document: %w", err)
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

// AppendTranscriptAsset appends an asset record and optionally overwrites
// content_text, per the transcription worker's contract.
func (s *Store) AppendTranscriptAsset(ctx context.Context, documentID string, asset models.Asset, overwriteContentText *string, transcriptStatus models.TranscriptStatus) error {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	doc.Assets = append(doc.Assets, asset)
	assetsJSON, err := json.Marshal(doc.Assets)
	if err != nil {
		return fmt.Errorf("marshal assets: %w", err)
	}

	if overwriteContentText != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE documents SET assets=?, content_text=?, transcript_status=?, updated_at=? WHERE id=?`,
			string(assetsJSON), *overwriteContentText, string(transcriptStatus), time.Now().UTC(), documentID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE documents SET assets=?, transcript_status=?, updated_at=? WHERE id=?`,
			string(assetsJSON), string(transcriptStatus), time.Now().UTC(), documentID)
	}
	if err != nil {
		return fmt.Errorf("append transcript asset: %w", err)
	}
	return nil
}

const documentColumns = `id, source_id, external_id, title, author, published_at, original_url,
	original_media_type, content_text, content_html, assets, transcript_status, ingest_status,
	is_archived, created_at, updated_at`

const documentColumnsPrefixed = `d.id, d.source_id, d.external_id, d.title, d.author, d.published_at, d.original_url,
	d.original_media_type, d.content_text, d.content_html, d.assets, d.transcript_status, d.ingest_status,
	d.is_archived, d.created_at, d.updated_at`

func (s *Store) scanDocument(row *sql.Row) (*models.Document, error) {
	doc := &models.Document{}
	var publishedAt sql.NullTime
	var transcriptStatus, ingestStatus string
	var isArchived int
	var assetsJSON sql.NullString

	err := row.Scan(&doc.ID, &doc.SourceID, &doc.ExternalID, &doc.Title, &doc.Author, &publishedAt,
		&doc.OriginalURL, &doc.OriginalMediaType, &doc.ContentText, &doc.ContentHTML, &assetsJSON,
		&transcriptStatus, &ingestStatus, &isArchived, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	applyDocumentScanFields(doc, publishedAt, transcriptStatus, ingestStatus, isArchived, assetsJSON)
	return doc, nil
}

func (s *Store) scanDocumentWithCount(rows *sql.Rows) (*models.Document, int, error) {
	doc := &models.Document{}
	var publishedAt sql.NullTime
	var transcriptStatus, ingestStatus string
	var isArchived int
	var assetsJSON sql.NullString
	var count int

	err := rows.Scan(&doc.ID, &doc.SourceID, &doc.ExternalID, &doc.Title, &doc.Author, &publishedAt,
		&doc.OriginalURL, &doc.OriginalMediaType, &doc.ContentText, &doc.ContentHTML, &assetsJSON,
		&transcriptStatus, &ingestStatus, &isArchived, &doc.CreatedAt, &doc.UpdatedAt, &count)
	if err != nil {
		return nil, 0, err
	}
	applyDocumentScanFields(doc, publishedAt, transcriptStatus, ingestStatus, isArchived, assetsJSON)
	return doc, count, nil
}

func applyDocumentScanFields(doc *models.Document, publishedAt sql.NullTime, transcriptStatus, ingestStatus string, isArchived int, assetsJSON sql.NullString) {
	if publishedAt.Valid {
		t := publishedAt.Time
		doc.PublishedAt = &t
	}
	doc.TranscriptStatus = models.TranscriptStatus(transcriptStatus)
	doc.IngestStatus = models.IngestStatus(ingestStatus)
	doc.IsArchived = isArchived == 1
	if assetsJSON.Valid && assetsJSON.String != "" {
		_ = json.Unmarshal([]byte(assetsJSON.String), &doc.Assets)
	}
}
