package domain

import (
	"fmt"
	"time"
)

const (
	MinQuestions = 1
	MaxQuestions = 25

	MinTimeLimit = 60
	MaxTimeLimit = 10800

	// PassingPercentage is inclusive: exactly 60 passes.
	PassingPercentage = 60.0
)

// Quiz is the assessment owned by exactly one subsection.
type Quiz struct {
	ID           string     `json:"id"`
	SubSectionID string     `json:"subSectionId"`
	Questions    []Question `json:"questions"`
	TimeLimit    int        `json:"timeLimit"` // seconds
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TotalMarks sums the marks of every question.
func (q Quiz) TotalMarks() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Marks
	}
	return total
}

// ValidateQuestions enforces the authoring invariants on a question list.
func ValidateQuestions(questions []Question) error {
	if len(questions) < MinQuestions || len(questions) > MaxQuestions {
		return Invalid("questions", "a quiz needs between %d and %d questions, got %d", MinQuestions, MaxQuestions, len(questions))
	}
	ids := make(map[string]struct{}, len(questions))
	total := 0
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if q.ID != "" {
			if _, dup := ids[q.ID]; dup {
				return Invalid("questions", "duplicate question id %q", q.ID)
			}
			ids[q.ID] = struct{}{}
		}
		total += q.Marks
	}
	// Every question must own distinct keys in a submission's answers map.
	owners := make(map[string]string)
	for _, q := range questions {
		if q.ID == "" {
			continue
		}
		for _, key := range answerKeys(q) {
			if owner, taken := owners[key]; taken {
				return Invalid("questions", "question id %q collides with answer key %q of question %q", q.ID, key, owner)
			}
			owners[key] = q.ID
		}
	}
	if total <= 0 {
		return Invalid("questions", "total marks must be greater than zero")
	}
	return nil
}

func answerKeys(q Question) []string {
	body, ok := q.Body.(MatchBody)
	if !ok {
		return []string{q.ID}
	}
	keys := make([]string, len(body.Options))
	for i := range body.Options {
		keys[i] = MatchAnswerKey(q.ID, i)
	}
	return keys
}

// ValidateTimeLimit checks a supplied time limit in seconds.
func ValidateTimeLimit(seconds int) error {
	if seconds < MinTimeLimit || seconds > MaxTimeLimit {
		return Invalid("timeLimit", "must be between %d and %d seconds", MinTimeLimit, MaxTimeLimit)
	}
	return nil
}

// Learner is the explicit per-request identity handed to the services.
type Learner struct {
	UserID string
	Now    time.Time
}

// Section and SubSection are owned by the course-authoring side; this service only reads them.
type Section struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type SubSection struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	CourseID  string `json:"courseId"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	HasVideo  bool   `json:"hasVideo"`
	QuizID    string `json:"quizId,omitempty"`
}

// HasQuiz reports whether a quiz is attached to the subsection.
func (s SubSection) HasQuiz() bool {
	return s.QuizID != ""
}
