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

// CreateSegment inserts a new manual segment, used by POST /segments.
func (s *Store) CreateSegment(ctx context.Context, documentID, text, contentHTML string, startOffset, endOffset *int, offsetKind models.OffsetKind, labels []string) (*models.Segment, error) {
	if offsetKind == "" {
		offsetKind = models.OffsetKindText
	}
	now := time.Now().UTC()
	labelsJSON, _ := json.Marshal(labels)

	seg := &models.Segment{
		ID:            uuid.New().String(),
		DocumentID:    documentID,
		Text:          text,
		ContentHTML:   contentHTML,
		StartOffset:   startOffset,
		EndOffset:     endOffset,
		OffsetKind:    offsetKind,
		SegmentStatus: models.SegmentStatusRaw,
		Version:       1,
		Labels:        labels,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO segments (id, document_id, text, content_html, start_offset, end_offset,
			offset_kind, segment_status, version, labels, provenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.DocumentID, seg.Text, seg.ContentHTML, nullInt(seg.StartOffset), nullInt(seg.EndOffset),
		string(seg.OffsetKind), string(seg.SegmentStatus), seg.Version, string(labelsJSON), "{}",
		seg.CreatedAt, seg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert segment: %w", err)
	}
	return seg, nil
}

// GetSegment returns a segment by id, or ErrNotFound.
func (s *Store) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	return s.scanSegment(row)
}

// ListSegmentsForDocument returns every segment belonging to a document.
func (s *Store) ListSegmentsForDocument(ctx context.Context, documentID string) ([]*models.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE document_id = ? ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list segments for document: %w", err)
	}
	defer rows.Close()
	return s.scanSegmentRows(rows)
}

// ListSegments returns every segment with its linked-hypothesis count,
// newest first, for the flat workbench view.
func (s *Store) ListSegments(ctx context.Context, limit, offset int) ([]*models.Segment, []int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+segmentColumnsPrefixed+`, COUNT(l.id)
		FROM segments seg
		LEFT JOIN hypothesis_segment_links l ON l.segment_id = seg.id
		GROUP BY seg.id
		ORDER BY seg.created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segs []*models.Segment
	var counts []int
	for rows.Next() {
		seg, count, err := s.scanSegmentWithCount(rows)
		if err != nil {
			return nil, nil, err
		}
		segs = append(segs, seg)
		counts = append(counts, count)
	}
	return segs, counts, rows.Err()
}

// DeleteSegment removes a segment; links and runs cascade via the schema's
// foreign keys.
func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
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

const segmentColumns = `id, document_id, text, content_html, start_offset, end_offset,
	offset_kind, segment_status, version, labels, provenance, created_at, updated_at`

const segmentColumnsPrefixed = `seg.id, seg.document_id, seg.text, seg.content_html, seg.start_offset, seg.end_offset,
	seg.offset_kind, seg.segment_status, seg.version, seg.labels, seg.provenance, seg.created_at, seg.updated_at`

func (s *Store) scanSegment(row *sql.Row) (*models.Segment, error) {
	seg := &models.Segment{}
	var startOffset, endOffset sql.NullInt64
	var offsetKind, segmentStatus string
	var labelsJSON sql.NullString

	err := row.Scan(&seg.ID, &seg.DocumentID, &seg.Text, &seg.ContentHTML, &startOffset, &endOffset,
		&offsetKind, &segmentStatus, &seg.Version, &labelsJSON, new(sql.NullString), &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	applySegmentScanFields(seg, startOffset, endOffset, offsetKind, segmentStatus, labelsJSON)
	return seg, nil
}

func (s *Store) scanSegmentRows(rows *sql.Rows) ([]*models.Segment, error) {
	var out []*models.Segment
	for rows.Next() {
		seg := &models.Segment{}
		var startOffset, endOffset sql.NullInt64
		var offsetKind, segmentStatus string
		var labelsJSON sql.NullString

		err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Text, &seg.ContentHTML, &startOffset, &endOffset,
			&offsetKind, &segmentStatus, &seg.Version, &labelsJSON, new(sql.NullString), &seg.CreatedAt, &seg.UpdatedAt)
		if err != nil {
			return nil, err
		}
		applySegmentScanFields(seg, startOffset, endOffset, offsetKind, segmentStatus, labelsJSON)
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *Store) scanSegmentWithCount(rows *sql.Rows) (*models.Segment, int, error) {
	seg := &models.Segment{}
	var startOffset, endOffset sql.NullInt64
	var offsetKind, segmentStatus string
	var labelsJSON sql.NullString
	var count int

	err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Text, &seg.ContentHTML, &startOffset, &endOffset,
		&offsetKind, &segmentStatus, &seg.Version, &labelsJSON, new(sql.NullString), &seg.CreatedAt, &seg.UpdatedAt, &count)
	if err != nil {
		return nil, 0, err
	}
	applySegmentScanFields(seg, startOffset, endOffset, offsetKind, segmentStatus, labelsJSON)
	return seg, count, nil
}

func applySegmentScanFields(seg *models.Segment, startOffset, endOffset sql.NullInt64, offsetKind, segmentStatus string, labelsJSON sql.NullString) {
	if startOffset.Valid {
		v := int(startOffset.Int64)
		seg.StartOffset = &v
	}
	if endOffset.Valid {
		v := int(endOffset.Int64)
		seg.EndOffset = &v
	}
	seg.OffsetKind = models.OffsetKind(offsetKind)
	seg.SegmentStatus = models.SegmentStatus(segmentStatus)
	if labelsJSON.Valid && labelsJSON.String != "" {
		_ = json.Unmarshal([]byte(labelsJSON.String), &seg.Labels)
	}
}
