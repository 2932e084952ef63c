package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType discriminates the question variants.
type QuestionType string

const (
	MultipleChoice    QuestionType = "multipleChoice"
	SingleAnswer      QuestionType = "singleAnswer"
	ShortAnswer       QuestionType = "shortAnswer"
	LongAnswer        QuestionType = "longAnswer"
	MatchTheFollowing QuestionType = "matchTheFollowing"
)

// QuestionBody is the variant-specific part of a question.
type QuestionBody interface {
	Type() QuestionType
	validate() error
}

// MultipleChoiceBody is correct only when the selected index set equals CorrectAnswers.
type MultipleChoiceBody struct {
	Options        []string
	CorrectAnswers []int
}

// SingleAnswerBody has exactly one correct option index.
type SingleAnswerBody struct {
	Options       []string
	CorrectAnswer int
}

// FreeTextBody covers short and long answers. Any non-blank text earns full marks.
type FreeTextBody struct {
	Long bool
}

// MatchBody lists left-hand items; item i matches right-hand choice i.
type MatchBody struct {
	Options []string
}

func (MultipleChoiceBody) Type() QuestionType { return MultipleChoice }
func (SingleAnswerBody) Type() QuestionType   { return SingleAnswer }
func (MatchBody) Type() QuestionType          { return MatchTheFollowing }

func (b FreeTextBody) Type() QuestionType {
	if b.Long {
		return LongAnswer
	}
	return ShortAnswer
}

func (b MultipleChoiceBody) validate() error {
	if err := validateOptions(b.Options); err != nil {
		return err
	}
	if len(b.CorrectAnswers) == 0 {
		return Invalid("correctAnswers", "at least one correct answer is required")
	}
	seen := make(map[int]struct{}, len(b.CorrectAnswers))
	for _, idx := range b.CorrectAnswers {
		if idx < 0 || idx >= len(b.Options) {
			return Invalid("correctAnswers", "index %d is out of range", idx)
		}
		if _, dup := seen[idx]; dup {
			return Invalid("correctAnswers", "index %d listed twice", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func (b SingleAnswerBody) validate() error {
	if err := validateOptions(b.Options); err != nil {
		return err
	}
	if b.CorrectAnswer < 0 || b.CorrectAnswer >= len(b.Options) {
		return Invalid("correctAnswer", "index %d is out of range", b.CorrectAnswer)
	}
	return nil
}

func (FreeTextBody) validate() error { return nil }

func (b MatchBody) validate() error {
	return validateOptions(b.Options)
}

func validateOptions(options []string) error {
	if len(options) == 0 {
		return Invalid("options", "at least one option is required")
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return Invalid("options", "option %d is empty", i)
		}
	}
	return nil
}

// Question is a single quiz question. Body decides how it is scored.
type Question struct {
	ID       string
	Text     string
	Marks    int
	Required bool
	Body     QuestionBody
}

// NewQuestion returns a question with the default marks (1) and required flag (true).
func NewQuestion(id, text string, body QuestionBody) Question {
	return Question{ID: id, Text: text, Marks: 1, Required: true, Body: body}
}

// Type returns the variant discriminator, or "" when the body is missing.
func (q Question) Type() QuestionType {
	if q.Body == nil {
		return ""
	}
	return q.Body.Type()
}

// Validate checks the common fields and the variant's own fields.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return Invalid("questionText", "must not be empty")
	}
	if q.Marks <= 0 {
		return Invalid("marks", "must be a positive integer")
	}
	if q.Body == nil {
		return Invalid("questionType", "is required")
	}
	return q.Body.validate()
}

type questionJSON struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"questionType"`
	Text           string       `json:"questionText"`
	Marks          *int         `json:"marks,omitempty"`
	Required       *bool        `json:"required,omitempty"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswers []int        `json:"correctAnswers,omitempty"`
	CorrectAnswer  *int         `json:"correctAnswer,omitempty"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	marks, required := q.Marks, q.Required
	out := questionJSON{
		ID:       q.ID,
		Type:     q.Type(),
		Text:     q.Text,
		Marks:    &marks,
		Required: &required,
	}
	switch b := q.Body.(type) {
	case MultipleChoiceBody:
		out.Options = b.Options
		out.CorrectAnswers = b.CorrectAnswers
	case SingleAnswerBody:
		correct := b.CorrectAnswer
		out.Options = b.Options
		out.CorrectAnswer = &correct
	case MatchBody:
		out.Options = b.Options
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the flat wire shape into the matching variant. A
// variant missing its answer key is rejected here, not at scoring time.
func (q *Question) UnmarshalJSON(data []byte) error {
	var in questionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	decoded := Question{ID: in.ID, Text: in.Text, Marks: 1, Required: true}
	if in.Marks != nil {
		decoded.Marks = *in.Marks
	}
	if in.Required != nil {
		decoded.Required = *in.Required
	}

	switch in.Type {
	case MultipleChoice:
		decoded.Body = MultipleChoiceBody{Options: in.Options, CorrectAnswers: in.CorrectAnswers}
	case SingleAnswer:
		if in.CorrectAnswer == nil {
			return Invalid("correctAnswer", "is required for %s questions", SingleAnswer)
		}
		decoded.Body = SingleAnswerBody{Options: in.Options, CorrectAnswer: *in.CorrectAnswer}
	case ShortAnswer, LongAnswer:
		decoded.Body = FreeTextBody{Long: in.Type == LongAnswer}
	case MatchTheFollowing:
		decoded.Body = MatchBody{Options: in.Options}
	default:
		return Invalid("questionType", "unknown question type %q", in.Type)
	}

	*q = decoded
	return nil
}

// MatchAnswerKey is the answers-map key for option index i of a matching question.
func MatchAnswerKey(questionID string, i int) string {
	return fmt.Sprintf("%s_%d", questionID, i)
}
