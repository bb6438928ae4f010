package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// UpsertHypothesisSegmentLinkAndRun records one analysis of a
// (hypothesis, segment) pair: it inserts exactly one new
// hypothesis_segment_link_runs row (the append-only history) and
// upserts the hypothesis_segment_links row (the latest-state view) to
// match it, all inside a single transaction. Both writes share the
// hypothesis's content snapshot taken at the start of the transaction.
func (s *Store) UpsertHypothesisSegmentLinkAndRun(ctx context.Context, hypothesisID, segmentID string, verdict models.Verdict, analysisText string, authoredBy models.AuthoredBy) (*models.HypothesisSegmentLink, *models.HypothesisSegmentLinkRun, error) {
	var link *models.HypothesisSegmentLink
	var run *models.HypothesisSegmentLinkRun

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		hyp, err := s.getHypothesisTx(ctx, tx, hypothesisID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		linkID, isNewLink, err := s.findOrCreateLinkIDTx(ctx, tx, hypothesisID, segmentID)
		if err != nil {
			return err
		}

		run = &models.HypothesisSegmentLinkRun{
			ID:                          uuid.New().String(),
			LinkID:                      linkID,
			HypothesisID:                hypothesisID,
			SegmentID:                   segmentID,
			Verdict:                     verdict,
			AnalysisText:                analysisText,
			AuthoredBy:                  authoredBy,
			CreatedAt:                   now,
			HypothesisTextSnapshot:      hyp.HypothesisText,
			DescriptionSnapshot:         hyp.Description,
			ReferenceURLSnapshot:        hyp.ReferenceURL,
			ReferenceTypeSnapshot:       hyp.ReferenceType,
			HypothesisUpdatedAtSnapshot: hyp.UpdatedAt,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO hypothesis_segment_link_runs (id, link_id, hypothesis_id, segment_id, verdict,
				analysis_text, authored_by, created_at, hypothesis_text_snapshot, description_snapshot,
				reference_url_snapshot, reference_type_snapshot, hypothesis_updated_at_snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.LinkID, run.HypothesisID, run.SegmentID, string(run.Verdict), run.AnalysisText,
			string(run.AuthoredBy), run.CreatedAt, run.HypothesisTextSnapshot, run.DescriptionSnapshot,
			run.ReferenceURLSnapshot, string(run.ReferenceTypeSnapshot), run.HypothesisUpdatedAtSnapshot,
		)
		if err != nil {
			return fmt.Errorf("insert link run: %w", err)
		}

		if isNewLink {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO hypothesis_segment_links (id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				linkID, hypothesisID, segmentID, string(verdict), analysisText, string(authoredBy), now,
			)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE hypothesis_segment_links SET verdict=?, analysis_text=?, authored_by=?, updated_at=? WHERE id=?`,
				string(verdict), analysisText, string(authoredBy), now, linkID,
			)
		}
		if err != nil {
			return fmt.Errorf("upsert link: %w", err)
		}

		link = &models.HypothesisSegmentLink{
			ID:           linkID,
			HypothesisID: hypothesisID,
			SegmentID:    segmentID,
			Verdict:      verdict,
			AnalysisText: analysisText,
			AuthoredBy:   authoredBy,
			UpdatedAt:    now,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return link, run, nil
}

// CommitEvidenceItem is one entry of a commit_evidence request.
// HypothesisID is empty when the item should create a new hypothesis from
// HypothesisText/Description.
type CommitEvidenceItem struct {
	HypothesisID   string
	HypothesisText string
	Description    string
	Verdict        models.Verdict
	AnalysisText   string
	AuthoredBy     models.AuthoredBy
}

// CommitEvidenceResult pairs the resolved hypothesis with the link/run
// produced for one input item, in the same order as the request.
type CommitEvidenceResult struct {
	Hypothesis *models.Hypothesis
	Link       *models.HypothesisSegmentLink
	Run        *models.HypothesisSegmentLinkRun
}

// CommitEvidence applies every item against segmentID inside a single
// transaction: for each item in order it resolves-or-creates the
// hypothesis, upserts the (hypothesis, segment) link, and appends a run
// snapshotting the hypothesis content as it stands immediately after that
// resolution. Any failure rolls back the entire batch.
func (s *Store) CommitEvidence(ctx context.Context, segmentID string, items []CommitEvidenceItem) ([]CommitEvidenceResult, error) {
	results := make([]CommitEvidenceResult, 0, len(items))

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			hyp, err := s.resolveHypothesisTx(ctx, tx, item)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			linkID, isNewLink, err := s.findOrCreateLinkIDTx(ctx, tx, hyp.ID, segmentID)
			if err != nil {
				return err
			}

			run := &models.HypothesisSegmentLinkRun{
				ID:                          uuid.New().String(),
				LinkID:                      linkID,
				HypothesisID:                hyp.ID,
				SegmentID:                   segmentID,
				Verdict:                     item.Verdict,
				AnalysisText:                item.AnalysisText,
				AuthoredBy:                  item.AuthoredBy,
				CreatedAt:                   now,
				HypothesisTextSnapshot:      hyp.HypothesisText,
				DescriptionSnapshot:         hyp.Description,
				ReferenceURLSnapshot:        hyp.ReferenceURL,
				ReferenceTypeSnapshot:       hyp.ReferenceType,
				HypothesisUpdatedAtSnapshot: hyp.UpdatedAt,
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO hypothesis_segment_link_runs (id, link_id, hypothesis_id, segment_id, verdict,
					analysis_text, authored_by, created_at, hypothesis_text_snapshot, description_snapshot,
					reference_url_snapshot, reference_type_snapshot, hypothesis_updated_at_snapshot)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, run.LinkID, run.HypothesisID, run.SegmentID, string(run.Verdict), run.AnalysisText,
				string(run.AuthoredBy), run.CreatedAt, run.HypothesisTextSnapshot, run.DescriptionSnapshot,
				run.ReferenceURLSnapshot, string(run.ReferenceTypeSnapshot), run.HypothesisUpdatedAtSnapshot,
			)
			if err != nil {
				return fmt.Errorf("insert link run: %w", err)
			}

			if isNewLink {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO hypothesis_segment_links (id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					linkID, hyp.ID, segmentID, string(item.Verdict), item.AnalysisText, string(item.AuthoredBy), now,
				)
			} else {
				_, err = tx.ExecContext(ctx, `
					UPDATE hypothesis_segment_links SET verdict=?, analysis_text=?, authored_by=?, updated_at=? WHERE id=?`,
					string(item.Verdict), item.AnalysisText, string(item.AuthoredBy), now, linkID,
				)
			}
			if err != nil {
				return fmt.Errorf("upsert link: %w", err)
			}

			results = append(results, CommitEvidenceResult{
				Hypothesis: hyp,
				Link: &models.HypothesisSegmentLink{
					ID: linkID, HypothesisID: hyp.ID, SegmentID: segmentID,
					Verdict: item.Verdict, AnalysisText: item.AnalysisText,
					AuthoredBy: item.AuthoredBy, UpdatedAt: now,
				},
				Run: run,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// resolveHypothesisTx implements step 1 of commit_evidence: create a new
// hypothesis when item.HypothesisID is empty, otherwise fetch the current
// row and update it (snapshotting the pre-image) if the payload's text or
// description differs.
func (s *Store) resolveHypothesisTx(ctx context.Context, tx *sql.Tx, item CommitEvidenceItem) (*models.Hypothesis, error) {
	if item.HypothesisID == "" {
		return s.createHypothesisTx(ctx, tx, models.Hypothesis{
			HypothesisText: item.HypothesisText,
			Description:    item.Description,
		})
	}

	current, err := s.getHypothesisTx(ctx, tx, item.HypothesisID)
	if err != nil {
		return nil, err
	}
	return s.updateHypothesisContentTx(ctx, tx, current, item.HypothesisText, item.Description)
}

func (s *Store) findOrCreateLinkIDTx(ctx context.Context, tx *sql.Tx, hypothesisID, segmentID string) (string, bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM hypothesis_segment_links WHERE hypothesis_id = ? AND segment_id = ?`, hypothesisID, segmentID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return "", false, fmt.Errorf("lookup link: %w", err)
	}
	return uuid.New().String(), true, nil
}

// GetLink returns the latest-state link for a (hypothesis, segment) pair,
// or ErrNotFound.
func (s *Store) GetLink(ctx context.Context, hypothesisID, segmentID string) (*models.HypothesisSegmentLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, updated_at
		FROM hypothesis_segment_links WHERE hypothesis_id = ? AND segment_id = ?`, hypothesisID, segmentID)
	return scanLink(row)
}

// ListEvidenceForHypothesis returns every link for a hypothesis, newest
// first. The hypothesis's own updated_at is not included.
func (s *Store) ListEvidenceForHypothesis(ctx context.Context, hypothesisID string) ([]*models.HypothesisSegmentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, updated_at
		FROM hypothesis_segment_links WHERE hypothesis_id = ? ORDER BY updated_at DESC`, hypothesisID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for hypothesis: %w", err)
	}
	defer rows.Close()

	var out []*models.HypothesisSegmentLink
	for rows.Next() {
		l, err := scanLinkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListHypothesesForSegment returns every hypothesis linked to a segment,
// with its current link.
func (s *Store) ListHypothesesForSegment(ctx context.Context, segmentID string) ([]*models.HypothesisSegmentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, updated_at
		FROM hypothesis_segment_links WHERE segment_id = ? ORDER BY updated_at DESC`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("list hypotheses for segment: %w", err)
	}
	defer rows.Close()

	var out []*models.HypothesisSegmentLink
	for rows.Next() {
		l, err := scanLinkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListRunsForLink returns the append-only analysis history for one link,
// newest first.
func (s *Store) ListRunsForLink(ctx context.Context, linkID string) ([]*models.HypothesisSegmentLinkRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, link_id, hypothesis_id, segment_id, verdict, analysis_text, authored_by, created_at,
			hypothesis_text_snapshot, description_snapshot, reference_url_snapshot, reference_type_snapshot,
			hypothesis_updated_at_snapshot
		FROM hypothesis_segment_link_runs WHERE link_id = ? ORDER BY created_at DESC`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list runs for link: %w", err)
	}
	defer rows.Close()

	var out []*models.HypothesisSegmentLinkRun
	for rows.Next() {
		r := &models.HypothesisSegmentLinkRun{}
		var verdict, authoredBy, refType string
		if err := rows.Scan(&r.ID, &r.LinkID, &r.HypothesisID, &r.SegmentID, &verdict, &r.AnalysisText, &authoredBy,
			&r.CreatedAt, &r.HypothesisTextSnapshot, &r.DescriptionSnapshot, &r.ReferenceURLSnapshot, &refType,
			&r.HypothesisUpdatedAtSnapshot); err != nil {
			return nil, err
		}
		r.Verdict = models.Verdict(verdict)
		r.AuthoredBy = models.AuthoredBy(authoredBy)
		r.ReferenceTypeSnapshot = models.ReferenceType(refType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanLink(row *sql.Row) (*models.HypothesisSegmentLink, error) {
	l := &models.HypothesisSegmentLink{}
	var verdict, authoredBy string
	if err := row.Scan(&l.ID, &l.HypothesisID, &l.SegmentID, &verdict, &l.AnalysisText, &authoredBy, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Verdict = models.Verdict(verdict)
	l.AuthoredBy = models.AuthoredBy(authoredBy)
	return l, nil
}

func scanLinkRow(rows *sql.Rows) (*models.HypothesisSegmentLink, error) {
	l := &models.HypothesisSegmentLink{}
	var verdict, authoredBy string
	if err := rows.Scan(&l.ID, &l.HypothesisID, &l.SegmentID, &verdict, &l.AnalysisText, &authoredBy, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Verdict = models.Verdict(verdict)
	l.AuthoredBy = models.AuthoredBy(authoredBy)
	return l, nil
}
