// Package scoring grades quiz submissions. It is pure: no I/O and no shared
// state, so it is safe to call from any number of goroutines.
package scoring

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"assessment-service/internal/domain"
)

// Answers maps a question id (or "{questionId}_{i}" for matching questions)
// to the submitted value as decoded from JSON.
type Answers map[string]any

// QuestionOutcome is the grading of a single question.
type QuestionOutcome struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
}

// Result is the aggregate grading of a submission.
type Result struct {
	Score      int               `json:"score"`
	TotalMarks int               `json:"totalMarks"`
	Percentage float64           `json:"percentage"`
	Passed     bool              `json:"passed"`
	Questions  []QuestionOutcome `json:"questions"`
}

// Unanswered returns the 1-based ordinals of required questions without an answer.
func Unanswered(quiz domain.Quiz, answers Answers) []int {
	var missing []int
	for i, q := range quiz.Questions {
		if q.Required && !isAnswered(q, answers) {
			missing = append(missing, i+1)
		}
	}
	return missing
}

// Gate is the pre-scoring completeness check. An expired timer skips it and
// blank answers are then simply graded as wrong.
func Gate(quiz domain.Quiz, answers Answers, timerExpired bool) error {
	if timerExpired {
		return nil
	}
	if missing := Unanswered(quiz, answers); len(missing) > 0 {
		return domain.UnansweredError(missing)
	}
	return nil
}

// Score grades every question. There is no partial credit inside a question.
func Score(quiz domain.Quiz, answers Answers) Result {
	res := Result{Questions: make([]QuestionOutcome, 0, len(quiz.Questions))}
	for _, q := range quiz.Questions {
		res.TotalMarks += q.Marks

		outcome := QuestionOutcome{QuestionID: q.ID, Answered: isAnswered(q, answers)}
		if outcome.Answered && isCorrect(q, answers) {
			outcome.Correct = true
			outcome.Awarded = q.Marks
			res.Score += q.Marks
		}
		res.Questions = append(res.Questions, outcome)
	}
	if res.TotalMarks > 0 {
		res.Percentage = float64(res.Score) / float64(res.TotalMarks) * 100
	}
	res.Passed = Passed(res.Percentage)
	return res
}

// Passed applies the pass mark to an unrounded percentage.
func Passed(percentage float64) bool {
	return percentage >= domain.PassingPercentage
}

// Round1 rounds a percentage to one decimal for display only.
func Round1(percentage float64) float64 {
	return math.Round(percentage*10) / 10
}

func isAnswered(q domain.Question, answers Answers) bool {
	switch b := q.Body.(type) {
	case domain.MultipleChoiceBody:
		_, ok := indexSet(answers[q.ID])
		return ok
	case domain.SingleAnswerBody:
		_, ok := number(answers[q.ID])
		return ok
	case domain.FreeTextBody:
		s, ok := answers[q.ID].(string)
		return ok && strings.TrimSpace(s) != ""
	case domain.MatchBody:
		for i := range b.Options {
			if !present(answers[domain.MatchAnswerKey(q.ID, i)]) {
				return false
			}
		}
		return true
	}
	return false
}

func isCorrect(q domain.Question, answers Answers) bool {
	switch b := q.Body.(type) {
	case domain.MultipleChoiceBody:
		got, ok := indexSet(answers[q.ID])
		if !ok {
			return false
		}
		want := make([]float64, len(b.CorrectAnswers))
		for i, idx := range b.CorrectAnswers {
			want[i] = float64(idx)
		}
		slices.Sort(want)
		slices.Sort(got)
		return slices.Equal(got, want)
	case domain.SingleAnswerBody:
		n, ok := number(answers[q.ID])
		return ok && n == float64(b.CorrectAnswer)
	case domain.FreeTextBody:
		return true
	case domain.MatchBody:
		for i := range b.Options {
			n, ok := number(answers[domain.MatchAnswerKey(q.ID, i)])
			if !ok || n != float64(i) {
				return false
			}
		}
		return true
	}
	return false
}

// number coerces a submitted value to a float. Blank strings, booleans and
// nil are treated as no answer; 0 is a valid answer.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// indexSet reads a multiple-choice selection. A non-numeric entry spoils the
// set (ok=false); non-integral numbers are kept so they never equal a key.
func indexSet(v any) ([]float64, bool) {
	var raw []any
	switch list := v.(type) {
	case []any:
		raw = list
	case []int:
		for _, n := range list {
			raw = append(raw, n)
		}
	case []float64:
		for _, n := range list {
			raw = append(raw, n)
		}
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	default:
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		n, ok := number(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// present is the matching-question notion of "a selection was made".
func present(v any) bool {
	switch s := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(s) != ""
	}
	_, ok := number(v)
	return ok
}
