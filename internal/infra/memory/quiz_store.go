package memory

import (
	"context"
	"slices"
	"sync"

	"assessment-service/internal/domain"
)

// QuizStore keeps quiz definitions in a map (useful for tests/demos).
type QuizStore struct {
	mu           sync.RWMutex
	quizzes      map[string]domain.Quiz
	bySubSection map[string]string
}

func NewQuizStore(seed ...domain.Quiz) *QuizStore {
	s := &QuizStore{
		quizzes:      make(map[string]domain.Quiz),
		bySubSection: make(map[string]string),
	}
	for _, quiz := range seed {
		s.quizzes[quiz.ID] = quiz
		s.bySubSection[quiz.SubSectionID] = quiz.ID
	}
	return s
}

func (s *QuizStore) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySubSection[quiz.SubSectionID]; taken {
		return domain.ErrQuizExists
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	s.bySubSection[quiz.SubSectionID] = quiz.ID
	return nil
}

func (s *QuizStore) UpdateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *QuizStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) LoadQuizBySubSection(ctx context.Context, subSectionID string) (domain.Quiz, error) {
	s.mu.RLock()
	quizID, ok := s.bySubSection[subSectionID]
	s.mu.RUnlock()
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return s.LoadQuiz(ctx, quizID)
}

// QuizIDForSubSection lets the in-memory catalog flag quiz-bearing subsections.
func (s *QuizStore) QuizIDForSubSection(subSectionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySubSection[subSectionID]
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	q.Questions = slices.Clone(q.Questions)
	return q
}
