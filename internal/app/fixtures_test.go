package app_test

import (
	"context"
	"io"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"github.com/sirupsen/logrus"
)

type fixture struct {
	quizStore   *memory.QuizStore
	progress    app.ProgressStore
	quizzes     *app.QuizService
	submissions *app.SubmissionService
	tracker     *app.ProgressService
	feed        *app.ProgressFeed
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, memory.NewProgressStore())
}

func newFixtureWithStore(t *testing.T, progress app.ProgressStore) *fixture {
	t.Helper()
	quizStore := memory.NewQuizStore()
	catalog := memory.NewCatalog(
		[]domain.Section{
			{ID: "s1", CourseID: "course-1", Position: 1},
			{ID: "s2", CourseID: "course-1", Position: 2},
		},
		[]domain.SubSection{
			{ID: "intro", SectionID: "s1", Position: 1, HasVideo: true},
			{ID: "A", SectionID: "s1", Position: 2},
			{ID: "B", SectionID: "s1", Position: 3},
			{ID: "C", SectionID: "s1", Position: 4},
			{ID: "outro", SectionID: "s2", Position: 1, HasVideo: true},
		},
		quizStore,
	)
	cache := memory.NewQuizRepository(quizStore, time.Minute)
	feed := app.NewProgressFeed()
	log := logrus.New()
	log.SetOutput(io.Discard)

	return &fixture{
		quizStore:   quizStore,
		progress:    progress,
		quizzes:     app.NewQuizService(quizStore, cache, catalog, 1800),
		submissions: app.NewSubmissionService(cache, catalog, progress, feed, log, 3),
		tracker:     app.NewProgressService(catalog, progress, feed, log, 3),
		feed:        feed,
	}
}

// mixedQuiz has a singleAnswer and a shortAnswer question worth 5 marks each.
func (f *fixture) mixedQuiz(t *testing.T, subSectionID string) domain.Quiz {
	t.Helper()
	single := domain.NewQuestion("q-single", "What is 2 + 2?", domain.SingleAnswerBody{Options: []string{"3", "4"}, CorrectAnswer: 1})
	single.Marks = 5
	short := domain.NewQuestion("q-short", "Explain addition", domain.FreeTextBody{})
	short.Marks = 5

	quiz, err := f.quizzes.CreateQuiz(context.Background(), app.QuizDraft{
		SubSectionID: subSectionID,
		Questions:    []domain.Question{single, short},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return quiz
}

func learner(id string) domain.Learner {
	return domain.Learner{UserID: id, Now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}
