package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

// AddQuestion posts a question on the event's Q&A board.
func (s *SQLiteStore) AddQuestion(ctx context.Context, eventID string, q *store.Question) (*store.Question, error) {
	if err := s.eventExists(ctx, eventID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := store.Question{
		ID:         uuid.NewString(),
		Text:       q.Text,
		AuthorID:   q.AuthorID,
		AuthorName: q.AuthorName,
		Answers:    []store.Answer{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	query := `
		INSERT INTO questions (id, event_id, text, author_id, author_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		created.ID, eventID, created.Text, created.AuthorID, created.AuthorName, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return &created, nil
}

// AddAnswer appends an answer to a question of the event.
func (s *SQLiteStore) AddAnswer(ctx context.Context, eventID, questionID string, a *store.Answer) (*store.Question, error) {
	q, err := s.getQuestion(ctx, eventID, questionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO answers (id, question_id, text, author_id, author_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), questionID, a.Text, a.AuthorID, a.AuthorName, now)
	if err != nil {
		return nil, fmt.Errorf("insert answer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE questions SET updated_at = ? WHERE id = ?`, now, questionID); err != nil {
		return nil, fmt.Errorf("touch question: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit answer: %w", err)
	}

	q.UpdatedAt = now
	answers, err := s.listAnswers(ctx, questionID)
	if err != nil {
		return nil, err
	}
	q.Answers = answers
	return q, nil
}

func (s *SQLiteStore) getQuestion(ctx context.Context, eventID, questionID string) (*store.Question, error) {
	query := `
		SELECT id, text, author_id, author_name, created_at, updated_at
		FROM questions WHERE id = ? AND event_id = ?
	`
	var q store.Question
	err := s.db.QueryRowContext(ctx, query, questionID, eventID).
		Scan(&q.ID, &q.Text, &q.AuthorID, &q.AuthorName, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query question: %w", err)
	}
	return &q, nil
}

func (s *SQLiteStore) listQuestions(ctx context.Context, eventID string) ([]store.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, author_id, author_name, created_at, updated_at
		FROM questions WHERE event_id = ? ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	questions := make([]store.Question, 0)
	for rows.Next() {
		var q store.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.AuthorID, &q.AuthorName, &q.CreatedAt, &q.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	rows.Close()

	for i := range questions {
		answers, err := s.listAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

func (s *SQLiteStore) listAnswers(ctx context.Context, questionID string) ([]store.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, author_id, author_name, created_at
		FROM answers WHERE question_id = ? ORDER BY created_at
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := make([]store.Answer, 0)
	for rows.Next() {
		var a store.Answer
		if err := rows.Scan(&a.ID, &a.Text, &a.AuthorID, &a.AuthorName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
