package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type progressRow struct {
	bun.BaseModel `bun:"table:course_progress"`

	UserID    string                `bun:"user_id,pk"`
	CourseID  string                `bun:"course_id,pk"`
	Data      domain.CourseProgress `bun:"data,type:jsonb"`
	Version   int64                 `bun:"version"`
	UpdatedAt time.Time             `bun:"updated_at"`
}

// ProgressStore persists CourseProgress as a JSONB document with a version
// column. Writes are compare-and-swap on that version; creation is an insert
// that loses cleanly to a concurrent creator.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) Get(ctx context.Context, userID, courseID string) (domain.CourseProgress, error) {
	row, err := s.load(ctx, userID, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	return row.Data, nil
}

func (s *ProgressStore) Update(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	row, err := s.load(ctx, userID, courseID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return s.create(ctx, userID, courseID, mutate)
	}
	if err != nil {
		return domain.CourseProgress{}, err
	}

	if err := mutate(&row.Data); err != nil {
		return domain.CourseProgress{}, err
	}
	expected := row.Version
	row.Version++
	row.UpdatedAt = time.Now().UTC()

	res, err := s.db.NewUpdate().
		Model(row).
		Column("data", "version", "updated_at").
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("update progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.CourseProgress{}, domain.ErrConflict
	}
	return row.Data, nil
}

func (s *ProgressStore) create(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	row := &progressRow{
		UserID:    userID,
		CourseID:  courseID,
		Data:      domain.NewCourseProgress(userID, courseID),
		UpdatedAt: time.Now().UTC(),
	}
	if err := mutate(&row.Data); err != nil {
		return domain.CourseProgress{}, err
	}

	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id, course_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("insert progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.CourseProgress{}, domain.ErrConflict
	}
	return row.Data, nil
}

func (s *ProgressStore) load(ctx context.Context, userID, courseID string) (*progressRow, error) {
	row := new(progressRow)
	err := s.db.NewSelect().
		Model(row).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return row, nil
}
