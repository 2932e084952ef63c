package http

import (
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
)

type quizDraftRequest struct {
	SubSectionID string            `json:"subSectionId"`
	Questions    []domain.Question `json:"questions" validate:"min=1,max=25"`
	TimeLimit    *int              `json:"timeLimit" validate:"omitempty,min=60,max=10800"`
}

type submitRequest struct {
	CourseID     string         `json:"courseId" validate:"required"`
	SubSectionID string         `json:"subSectionId"`
	Answers      map[string]any `json:"answers"`
	TimerExpired bool           `json:"timerExpired"`
}

type submitResponse struct {
	Score              int                       `json:"score"`
	TotalMarks         int                       `json:"totalMarks"`
	Percentage         float64                   `json:"percentage"`
	Passed             bool                      `json:"passed"`
	RequiredPercentage float64                   `json:"requiredPercentage"`
	Attempts           int                       `json:"attempts"`
	Questions          []scoring.QuestionOutcome `json:"questions"`
}

func newSubmitResponse(res app.SubmissionResult) submitResponse {
	return submitResponse{
		Score:              res.Grade.Score,
		TotalMarks:         res.Grade.TotalMarks,
		Percentage:         scoring.Round1(res.Grade.Percentage),
		Passed:             res.Grade.Passed,
		RequiredPercentage: domain.PassingPercentage,
		Attempts:           res.Attempts,
		Questions:          res.Grade.Questions,
	}
}

type quizResultView struct {
	QuizID       string    `json:"quizId"`
	SubSectionID string    `json:"subSectionId"`
	Score        int       `json:"score"`
	TotalMarks   int       `json:"totalMarks"`
	Percentage   float64   `json:"percentage"`
	Passed       bool      `json:"passed"`
	Attempts     int       `json:"attempts"`
	CompletedAt  time.Time `json:"completedAt"`
}

func newQuizResultView(r domain.QuizResult) quizResultView {
	return quizResultView{
		QuizID:       r.QuizID,
		SubSectionID: r.SubSectionID,
		Score:        r.Score,
		TotalMarks:   r.TotalMarks,
		Percentage:   scoring.Round1(r.Percentage),
		Passed:       r.Passed,
		Attempts:     r.Attempts,
		CompletedAt:  r.CompletedAt,
	}
}

type lastAttemptView struct {
	Score       int       `json:"score"`
	TotalMarks  int       `json:"totalMarks"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completedAt"`
}

type statusResponse struct {
	Attempts    int              `json:"attempts"`
	Passed      bool             `json:"passed"`
	LastAttempt *lastAttemptView `json:"lastAttempt,omitempty"`
}

func newStatusResponse(s app.QuizStatus) statusResponse {
	out := statusResponse{Attempts: s.Attempts, Passed: s.Passed}
	if s.LastAttempt != nil {
		out.LastAttempt = &lastAttemptView{
			Score:       s.LastAttempt.Score,
			TotalMarks:  s.LastAttempt.TotalMarks,
			Percentage:  scoring.Round1(s.LastAttempt.Percentage),
			CompletedAt: s.LastAttempt.CompletedAt,
		}
	}
	return out
}

type accessResponse struct {
	CanAccess bool   `json:"canAccess"`
	Message   string `json:"message,omitempty"`
}

type courseProgressResponse struct {
	CourseID        string  `json:"courseId"`
	Percentage      float64 `json:"percentage"`
	CompletedVideos int     `json:"completedVideos"`
	PassedQuizzes   int     `json:"passedQuizzes"`
	TotalUnits      int     `json:"totalUnits"`
}

// learnerQuestion is what a learner sees: no answer keys.
type learnerQuestion struct {
	ID       string              `json:"id"`
	Type     domain.QuestionType `json:"questionType"`
	Text     string              `json:"questionText"`
	Marks    int                 `json:"marks"`
	Required bool                `json:"required"`
	Options  []string            `json:"options,omitempty"`
}

type learnerQuiz struct {
	ID           string            `json:"id"`
	SubSectionID string            `json:"subSectionId"`
	TimeLimit    int               `json:"timeLimit"`
	TotalMarks   int               `json:"totalMarks"`
	Questions    []learnerQuestion `json:"questions"`
}

func newLearnerQuiz(q domain.Quiz) learnerQuiz {
	out := learnerQuiz{
		ID:           q.ID,
		SubSectionID: q.SubSectionID,
		TimeLimit:    q.TimeLimit,
		TotalMarks:   q.TotalMarks(),
		Questions:    make([]learnerQuestion, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		view := learnerQuestion{
			ID:       question.ID,
			Type:     question.Type(),
			Text:     question.Text,
			Marks:    question.Marks,
			Required: question.Required,
		}
		switch b := question.Body.(type) {
		case domain.MultipleChoiceBody:
			view.Options = b.Options
		case domain.SingleAnswerBody:
			view.Options = b.Options
		case domain.MatchBody:
			view.Options = b.Options
		}
		out.Questions = append(out.Questions, view)
	}
	return out
}
