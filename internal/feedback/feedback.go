// Package feedback persists caregiver feedback on generated answers.
// The store is append-only; feedback is reviewed by clinic staff out of band.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedira/pedira/internal/log"
)

// maxTextRunes caps the free-form feedback text.
const maxTextRunes = 2000

// ErrInvalid marks feedback rejected during validation.
var ErrInvalid = errors.New("invalid feedback")

// Entry is one piece of feedback on a generated answer.
type Entry struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Helpful    bool      `json:"helpful"`
	Text       string    `json:"feedback_text,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes feedback entries to PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a feedback store on the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{db: pool, logger: logger}, nil
}

// Record validates and persists one feedback entry, returning it with the
// assigned ID and timestamp.
func (s *Store) Record(ctx context.Context, question, answer string, helpful bool, text string) (*Entry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrInvalid)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxTextRunes {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrInvalid, maxTextRunes)
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		Question:   question,
		Answer:     answer,
		Helpful:    helpful,
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO feedback (id, question, answer, helpful, feedback_text, received_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Question, entry.Answer, entry.Helpful, entry.Text, entry.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}

	s.logger.Info("feedback recorded", "id", entry.ID, "helpful", entry.Helpful)
	return entry, nil
}

// Recent returns the newest entries, capped at limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
SELECT id, question, answer, helpful, feedback_text, received_at
FROM feedback
ORDER BY received_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Helpful, &e.Text, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading feedback: %w", err)
	}
	return entries, nil
}
