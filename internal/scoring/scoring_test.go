package scoring

import (
	"errors"
	"testing"

	"assessment-service/internal/domain"
)

func q(id string, marks int, body domain.QuestionBody) domain.Question {
	question := domain.NewQuestion(id, "Question "+id, body)
	question.Marks = marks
	return question
}

func TestMultipleChoiceOrderIndependent(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("mc", 1, domain.MultipleChoiceBody{Options: []string{"a", "b", "c"}, CorrectAnswers: []int{0, 2}}),
	}}

	cases := []struct {
		name    string
		answer  any
		correct bool
	}{
		{"reversed", []any{float64(2), float64(0)}, true},
		{"sorted", []any{float64(0), float64(2)}, true},
		{"ints", []int{2, 0}, true},
		{"numeric strings", []any{"0", "2"}, true},
		{"subset", []any{float64(0)}, false},
		{"superset", []any{float64(0), float64(1), float64(2)}, false},
		{"duplicates", []any{float64(0), float64(0), float64(2)}, false},
		{"fractional", []any{float64(0), 2.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(quiz, Answers{"mc": tc.answer})
			if res.Questions[0].Correct != tc.correct {
				t.Fatalf("expected correct=%v, got %+v", tc.correct, res.Questions[0])
			}
		})
	}
}

func TestMultipleChoiceEmptySelectionIsUnanswered(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("mc", 1, domain.MultipleChoiceBody{Options: []string{"a", "b"}, CorrectAnswers: []int{1}}),
	}}
	if got := Unanswered(quiz, Answers{"mc": []any{}}); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected question 1 unanswered, got %v", got)
	}
}

func TestSingleAnswerZeroIsAnAnswer(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("s", 2, domain.SingleAnswerBody{Options: []string{"yes", "no"}, CorrectAnswer: 0}),
	}}

	cases := []struct {
		name     string
		answer   any
		answered bool
		correct  bool
	}{
		{"zero float", float64(0), true, true},
		{"zero string", "0", true, true},
		{"wrong", float64(1), true, false},
		{"blank string", "  ", false, false},
		{"not a number", "abc", false, false},
		{"missing", nil, false, false},
		{"boolean", true, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answers := Answers{}
			if tc.answer != nil {
				answers["s"] = tc.answer
			}
			out := Score(quiz, answers).Questions[0]
			if out.Answered != tc.answered || out.Correct != tc.correct {
				t.Fatalf("expected answered=%v correct=%v, got %+v", tc.answered, tc.correct, out)
			}
		})
	}
}

func TestMatchTheFollowingAllOrNothing(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("m", 4, domain.MatchBody{Options: []string{"cat", "dog", "cow", "hen"}}),
	}}

	allRight := Answers{"m_0": "0", "m_1": "1", "m_2": "2", "m_3": "3"}
	if res := Score(quiz, allRight); res.Score != 4 {
		t.Fatalf("expected full marks, got %+v", res)
	}

	oneWrong := Answers{"m_0": "0", "m_1": "1", "m_2": "3", "m_3": "3"}
	res := Score(quiz, oneWrong)
	if res.Score != 0 || res.Questions[0].Correct {
		t.Fatalf("expected zero marks for a single wrong pair, got %+v", res)
	}
	if !res.Questions[0].Answered {
		t.Fatalf("expected question to count as answered")
	}

	partial := Answers{"m_0": "0", "m_1": "1", "m_2": "2"}
	if got := Unanswered(quiz, partial); len(got) != 1 {
		t.Fatalf("expected incomplete matching to be unanswered, got %v", got)
	}
}

func TestFreeTextCreditedWhenNonBlank(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("short", 3, domain.FreeTextBody{}),
		q("long", 2, domain.FreeTextBody{Long: true}),
	}}
	res := Score(quiz, Answers{"short": "anything", "long": "   "})
	if res.Score != 3 || res.TotalMarks != 5 {
		t.Fatalf("expected score 3/5, got %d/%d", res.Score, res.TotalMarks)
	}
	if res.Questions[1].Answered {
		t.Fatalf("blank long answer must not count as answered")
	}
}

func TestTotalMarksIgnoresAnsweredState(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("a", 3, domain.FreeTextBody{}),
		q("b", 4, domain.FreeTextBody{}),
		q("c", 5, domain.SingleAnswerBody{Options: []string{"x"}, CorrectAnswer: 0}),
	}}
	for _, answers := range []Answers{{}, {"a": "x"}, {"a": "x", "b": "y", "c": float64(0)}} {
		if res := Score(quiz, answers); res.TotalMarks != 12 {
			t.Fatalf("expected total 12, got %d", res.TotalMarks)
		}
	}
}

func TestPassBoundary(t *testing.T) {
	cases := []struct {
		percentage float64
		passed     bool
	}{
		{59.999, false},
		{60, true},
		{60.001, true},
		{100, true},
		{0, false},
	}
	for _, tc := range cases {
		if got := Passed(tc.percentage); got != tc.passed {
			t.Fatalf("Passed(%v) = %v, want %v", tc.percentage, got, tc.passed)
		}
	}

	// 3 of 5 marks is exactly 60%.
	quiz := domain.Quiz{Questions: []domain.Question{
		q("a", 3, domain.FreeTextBody{}),
		q("b", 2, domain.FreeTextBody{}),
	}}
	res := Score(quiz, Answers{"a": "x"})
	if res.Percentage != 60 || !res.Passed {
		t.Fatalf("expected 60%% to pass, got %+v", res)
	}
}

func TestMixedQuizScenario(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		q("single", 5, domain.SingleAnswerBody{Options: []string{"3", "4"}, CorrectAnswer: 1}),
		q("short", 5, domain.FreeTextBody{}),
	}}

	res := Score(quiz, Answers{"single": float64(1), "short": "four"})
	if res.Score != 10 || res.Percentage != 100 || !res.Passed {
		t.Fatalf("expected 10/100%%/passed, got %+v", res)
	}

	res = Score(quiz, Answers{"short": "four"})
	if res.Score != 5 || res.Percentage != 50 || res.Passed {
		t.Fatalf("expected 5/50%%/failed, got %+v", res)
	}
}

func TestGate(t *testing.T) {
	questions := make([]domain.Question, 0, 10)
	for i := 0; i < 10; i++ {
		questions = append(questions, q(string(rune('a'+i)), 1, domain.FreeTextBody{}))
	}
	quiz := domain.Quiz{Questions: questions}
	answers := Answers{"a": "x", "d": "y", "j": "z"}

	err := Gate(quiz, answers, false)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Unanswered) != 7 || verr.Unanswered[0] != 2 || verr.Unanswered[6] != 9 {
		t.Fatalf("unexpected ordinals %v", verr.Unanswered)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation in chain")
	}

	if err := Gate(quiz, answers, true); err != nil {
		t.Fatalf("expired timer must skip the gate, got %v", err)
	}
	res := Score(quiz, answers)
	if res.Score != 3 || res.TotalMarks != 10 {
		t.Fatalf("expected 3/10, got %d/%d", res.Score, res.TotalMarks)
	}
}

func TestGateIgnoresOptionalQuestions(t *testing.T) {
	optional := q("opt", 1, domain.FreeTextBody{})
	optional.Required = false
	quiz := domain.Quiz{Questions: []domain.Question{optional, q("req", 1, domain.FreeTextBody{})}}

	if err := Gate(quiz, Answers{"req": "done"}, false); err != nil {
		t.Fatalf("optional question should not block submission: %v", err)
	}
}

func TestRound1(t *testing.T) {
	if got := Round1(66.66666); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
	if Passed(Round1(59.96)) == Passed(59.96) {
		t.Fatalf("rounded value would flip the decision; pass checks must use the raw value")
	}
}
