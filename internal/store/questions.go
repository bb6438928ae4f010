package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// CreateQuestion inserts a new navigation question.
func (s *Store) CreateQuestion(ctx context.Context, text string) (*models.Question, error) {
	q := &models.Question{
		ID:           uuid.New().String(),
		QuestionText: text,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions (id, question_text, created_at) VALUES (?, ?, ?)`, q.ID, q.QuestionText, q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// GetQuestion returns a question by id, or ErrNotFound.
func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q := &models.Question{}
	err := s.db.QueryRowContext(ctx, `SELECT id, question_text, created_at FROM questions WHERE id = ?`, id).Scan(&q.ID, &q.QuestionText, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListQuestions returns every question, newest first.
func (s *Store) ListQuestions(ctx context.Context) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question_text, created_at FROM questions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q := &models.Question{}
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// DeleteQuestion removes a question; its hypothesis links cascade.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
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

// LinkHypothesisToQuestion associates a hypothesis with a question,
// ignoring the call if the pair is already linked.
func (s *Store) LinkHypothesisToQuestion(ctx context.Context, questionID, hypothesisID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO question_hypothesis_links (question_id, hypothesis_id) VALUES (?, ?)`,
		questionID, hypothesisID)
	if err != nil {
		return fmt.Errorf("link hypothesis to question: %w", err)
	}
	return nil
}

// UnlinkHypothesisFromQuestion removes a single association.
func (s *Store) UnlinkHypothesisFromQuestion(ctx context.Context, questionID, hypothesisID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM question_hypothesis_links WHERE question_id = ? AND hypothesis_id = ?`, questionID, hypothesisID)
	if err != nil {
		return fmt.Errorf("unlink hypothesis from question: %w", err)
	}
	return nil
}

// ListHypothesesForQuestion returns every hypothesis linked to a question.
func (s *Store) ListHypothesesForQuestion(ctx context.Context, questionID string) ([]*models.Hypothesis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.hypothesis_text, h.description, h.reference_url, h.reference_type, h.created_at, h.updated_at
		FROM hypotheses h
		JOIN question_hypothesis_links l ON l.hypothesis_id = h.id
		WHERE l.question_id = ?
		ORDER BY h.created_at DESC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list hypotheses for question: %w", err)
	}
	defer rows.Close()

	var out []*models.Hypothesis
	for rows.Next() {
		h := &models.Hypothesis{}
		var refType string
		if err := rows.Scan(&h.ID, &h.HypothesisText, &h.Description, &h.ReferenceURL, &refType, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.ReferenceType = models.ReferenceType(refType)
		out = append(out, h)
	}
	return out, rows.Err()
}
