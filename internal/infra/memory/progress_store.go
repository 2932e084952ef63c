package memory

import (
	"context"
	"slices"
	"sync"

	"assessment-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore. A single
// mutex makes every Update atomic, so it never reports a conflict.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[progressKey]domain.CourseProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[progressKey]domain.CourseProgress)}
}

func (s *ProgressStore) Get(_ context.Context, userID, courseID string) (domain.CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{userID, courseID}]
	if !ok {
		return domain.CourseProgress{}, domain.ErrProgressNotFound
	}
	return clone(p), nil
}

func (s *ProgressStore) Update(_ context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := progressKey{userID, courseID}
	current, ok := s.progress[k]
	if !ok {
		current = domain.NewCourseProgress(userID, courseID)
	}
	working := clone(current)
	if err := mutate(&working); err != nil {
		return domain.CourseProgress{}, err
	}
	s.progress[k] = working
	return clone(working), nil
}

type progressKey struct {
	userID, courseID string
}

func clone(p domain.CourseProgress) domain.CourseProgress {
	p.CompletedVideos = slices.Clone(p.CompletedVideos)
	p.CompletedQuizzes = slices.Clone(p.CompletedQuizzes)
	p.PassedQuizzes = slices.Clone(p.PassedQuizzes)
	p.QuizResults = slices.Clone(p.QuizResults)
	return p
}
