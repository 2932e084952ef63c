package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// QuizStore keeps quizzes as JSONB documents in Postgres. The unique
// constraint on subsection_id enforces one quiz per subsection.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, subsection_id, time_limit, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.SubSectionID, quiz.TimeLimit, data, quiz.CreatedAt, quiz.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrQuizExists
	}
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET time_limit = $2, data = $3, updated_at = $4 WHERE id = $1`,
		quiz.ID, quiz.TimeLimit, data, quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.loadOne(ctx, `SELECT data FROM quizzes WHERE id = $1`, quizID)
}

func (s *QuizStore) LoadQuizBySubSection(ctx context.Context, subSectionID string) (domain.Quiz, error) {
	return s.loadOne(ctx, `SELECT data FROM quizzes WHERE subsection_id = $1`, subSectionID)
}

func (s *QuizStore) loadOne(ctx context.Context, query, arg string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}
