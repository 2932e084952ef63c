package cli

import (
	"context"
	"errors"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"assessment-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads the demo course and its first quiz into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo course and quiz into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := runMigrations(ctx, db, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalog := postgres.NewCatalog(db)
			sections, subs := demoCourse()
			for _, section := range sections {
				var children []domain.SubSection
				for _, sub := range subs {
					if sub.SectionID == section.ID {
						children = append(children, sub)
					}
				}
				if err := catalog.SeedSection(ctx, section, children); err != nil {
					return err
				}
			}

			store := postgres.NewQuizStore(pool)
			quizzes := app.NewQuizService(store, memory.NewQuizRepository(store, 0), catalog, cfg.Quiz.DefaultTimeLimit)
			return seedDemoQuizzes(ctx, quizzes, log)
		},
	}
}

const demoCourseID = "course-go-101"

// demoCourse is a two-section course. The memory backend serves it as-is.
func demoCourse() ([]domain.Section, []domain.SubSection) {
	sections := []domain.Section{
		{ID: "go101-basics", CourseID: demoCourseID, Title: "Basics", Position: 1},
		{ID: "go101-concurrency", CourseID: demoCourseID, Title: "Concurrency", Position: 2},
	}
	subs := []domain.SubSection{
		{ID: "go101-welcome", SectionID: "go101-basics", Title: "Welcome", Position: 1, HasVideo: true},
		{ID: "go101-types", SectionID: "go101-basics", Title: "Types", Position: 2, HasVideo: true},
		{ID: "go101-types-quiz", SectionID: "go101-basics", Title: "Types check", Position: 3},
		{ID: "go101-funcs-quiz", SectionID: "go101-basics", Title: "Functions check", Position: 4},
		{ID: "go101-goroutines", SectionID: "go101-concurrency", Title: "Goroutines", Position: 1, HasVideo: true},
		{ID: "go101-channels-quiz", SectionID: "go101-concurrency", Title: "Channels check", Position: 2},
	}
	return sections, subs
}

func demoQuizzes() []app.QuizDraft {
	zeroValues := domain.NewQuestion("", "Which of these are zero values in Go?", domain.MultipleChoiceBody{
		Options:        []string{"0", "\"\"", "nil", "1"},
		CorrectAnswers: []int{0, 1, 2},
	})
	zeroValues.Marks = 2
	intSize := domain.NewQuestion("", "How many bits does an int32 hold?", domain.SingleAnswerBody{
		Options:       []string{"16", "32", "64"},
		CorrectAnswer: 1,
	})
	match := domain.NewQuestion("", "Match each literal with its type", domain.MatchBody{
		Options: []string{"'a'", "1.5", "true"},
	})
	match.Marks = 3
	explain := domain.NewQuestion("", "When would you pick a slice over an array?", domain.FreeTextBody{})
	explain.Required = false

	closures := domain.NewQuestion("", "Describe what a closure captures.", domain.FreeTextBody{Long: true})
	variadic := domain.NewQuestion("", "A variadic parameter arrives as a", domain.SingleAnswerBody{
		Options:       []string{"array", "slice", "map"},
		CorrectAnswer: 1,
	})

	unbuffered := domain.NewQuestion("", "A send on an unbuffered channel blocks until", domain.SingleAnswerBody{
		Options:       []string{"the buffer drains", "a receiver is ready", "the goroutine exits"},
		CorrectAnswer: 1,
	})

	return []app.QuizDraft{
		{SubSectionID: "go101-types-quiz", Questions: []domain.Question{zeroValues, intSize, match, explain}},
		{SubSectionID: "go101-funcs-quiz", Questions: []domain.Question{closures, variadic}},
		{SubSectionID: "go101-channels-quiz", Questions: []domain.Question{unbuffered}},
	}
}

// seedDemoQuizzes creates the demo quizzes, skipping any that already exist.
func seedDemoQuizzes(ctx context.Context, quizzes *app.QuizService, log logrus.FieldLogger) error {
	for _, draft := range demoQuizzes() {
		quiz, err := quizzes.CreateQuiz(ctx, draft)
		if errors.Is(err, domain.ErrQuizExists) {
			log.WithField("subSectionId", draft.SubSectionID).Debug("demo quiz already present")
			continue
		}
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"quizId": quiz.ID, "subSectionId": quiz.SubSectionID}).Info("demo quiz created")
	}
	return nil
}
