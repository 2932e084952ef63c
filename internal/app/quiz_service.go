package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
	"github.com/google/uuid"
)

// QuizStore persists quiz definitions (in-memory, Postgres, etc).
type QuizStore interface {
	// CreateQuiz fails with domain.ErrQuizExists when the subsection already owns a quiz.
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizBySubSection(ctx context.Context, subSectionID string) (domain.Quiz, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string)
}

// Catalog reads the course structure owned by the course-authoring side.
type Catalog interface {
	GetSubSection(ctx context.Context, subSectionID string) (domain.SubSection, error)
	// ListSectionSubSections returns the section's subsections in creation order.
	ListSectionSubSections(ctx context.Context, sectionID string) ([]domain.SubSection, error)
	ListCourseSubSections(ctx context.Context, courseID string) ([]domain.SubSection, error)
}

// QuizDraft is the authoring payload. A nil TimeLimit means "use the default"
// on create and "keep the current one" on update.
type QuizDraft struct {
	SubSectionID string
	Questions    []domain.Question
	TimeLimit    *int
}

// QuizService owns quiz authoring and lookups.
type QuizService struct {
	store            QuizStore
	quizzes          QuizRepository
	catalog          Catalog
	defaultTimeLimit int
	now              func() time.Time
}

func NewQuizService(store QuizStore, quizzes QuizRepository, catalog Catalog, defaultTimeLimit int) *QuizService {
	return &QuizService{
		store:            store,
		quizzes:          quizzes,
		catalog:          catalog,
		defaultTimeLimit: defaultTimeLimit,
		now:              time.Now,
	}
}

// CreateQuiz attaches a new quiz to a subsection.
func (s *QuizService) CreateQuiz(ctx context.Context, draft QuizDraft) (domain.Quiz, error) {
	if draft.SubSectionID == "" {
		return domain.Quiz{}, domain.Invalid("subSectionId", "is required")
	}
	timeLimit := s.defaultTimeLimit
	if draft.TimeLimit != nil {
		timeLimit = *draft.TimeLimit
	}
	questions, err := prepareQuestions(draft.Questions, timeLimit)
	if err != nil {
		return domain.Quiz{}, err
	}
	if _, err := s.catalog.GetSubSection(ctx, draft.SubSectionID); err != nil {
		return domain.Quiz{}, err
	}

	now := s.now().UTC()
	quiz := domain.Quiz{
		ID:           uuid.NewString(),
		SubSectionID: draft.SubSectionID,
		Questions:    questions,
		TimeLimit:    timeLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// UpdateQuiz replaces the whole question list; there is no merge.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID string, draft QuizDraft) (domain.Quiz, error) {
	quiz, err := s.store.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	timeLimit := quiz.TimeLimit
	if draft.TimeLimit != nil {
		timeLimit = *draft.TimeLimit
	}
	questions, err := prepareQuestions(draft.Questions, timeLimit)
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz.Questions = questions
	quiz.TimeLimit = timeLimit
	quiz.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	s.quizzes.Invalidate(ctx, quizID)
	return quiz, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

func (s *QuizService) GetQuizBySubSection(ctx context.Context, subSectionID string) (domain.Quiz, error) {
	return s.store.LoadQuizBySubSection(ctx, subSectionID)
}

// prepareQuestions validates the draft and assigns ids to new questions.
func prepareQuestions(questions []domain.Question, timeLimit int) ([]domain.Question, error) {
	if err := domain.ValidateTimeLimit(timeLimit); err != nil {
		return nil, err
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return nil, err
	}
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		out[i] = q
	}
	return out, nil
}
