package domain

import (
	"slices"
	"time"
)

// QuizResult is one learner's standing on one quiz. Once Passed is true it never changes.
type QuizResult struct {
	QuizID       string    `json:"quizId" bson:"quizId"`
	SubSectionID string    `json:"subSectionId" bson:"subSectionId"`
	Score        int       `json:"score" bson:"score"`
	TotalMarks   int       `json:"totalMarks" bson:"totalMarks"`
	Percentage   float64   `json:"percentage" bson:"percentage"`
	Passed       bool      `json:"passed" bson:"passed"`
	Attempts     int       `json:"attempts" bson:"attempts"`
	CompletedAt  time.Time `json:"completedAt" bson:"completedAt"`
}

// CourseProgress is the per-(user, course) aggregate.
type CourseProgress struct {
	UserID           string       `json:"userId" bson:"userId"`
	CourseID         string       `json:"courseId" bson:"courseId"`
	CompletedVideos  []string     `json:"completedVideos" bson:"completedVideos"`
	CompletedQuizzes []string     `json:"completedQuizzes" bson:"completedQuizzes"`
	PassedQuizzes    []string     `json:"passedQuizzes" bson:"passedQuizzes"`
	QuizResults      []QuizResult `json:"quizResults" bson:"quizResults"`
	UpdatedAt        time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// NewCourseProgress returns an empty aggregate with non-nil collections.
func NewCourseProgress(userID, courseID string) CourseProgress {
	return CourseProgress{
		UserID:           userID,
		CourseID:         courseID,
		CompletedVideos:  []string{},
		CompletedQuizzes: []string{},
		PassedQuizzes:    []string{},
		QuizResults:      []QuizResult{},
	}
}

// Attempt is a scored submission ready to be recorded.
type Attempt struct {
	QuizID       string
	SubSectionID string
	Score        int
	TotalMarks   int
	Percentage   float64
	Passed       bool
	At           time.Time
}

// Result returns the stored result for quizID.
func (p CourseProgress) Result(quizID string) (QuizResult, bool) {
	for _, r := range p.QuizResults {
		if r.QuizID == quizID {
			return r, true
		}
	}
	return QuizResult{}, false
}

// HasPassed reports whether the quiz on subSectionID has been passed.
func (p CourseProgress) HasPassed(subSectionID string) bool {
	return slices.Contains(p.PassedQuizzes, subSectionID)
}

// RecordAttempt applies a scored attempt to the aggregate. A passed result is
// terminal: the call fails with *AlreadyPassedError and leaves p untouched.
// Otherwise the single result entry for the quiz is replaced in place (or
// appended on first attempt) with attempts incremented, and on a pass the
// subsection joins both the completed and passed sets.
func (p *CourseProgress) RecordAttempt(a Attempt) (QuizResult, error) {
	idx := slices.IndexFunc(p.QuizResults, func(r QuizResult) bool { return r.QuizID == a.QuizID })

	prior := 0
	if idx >= 0 {
		existing := p.QuizResults[idx]
		if existing.Passed {
			return existing, &AlreadyPassedError{Result: existing}
		}
		prior = existing.Attempts
	}

	result := QuizResult{
		QuizID:       a.QuizID,
		SubSectionID: a.SubSectionID,
		Score:        a.Score,
		TotalMarks:   a.TotalMarks,
		Percentage:   a.Percentage,
		Passed:       a.Passed,
		Attempts:     prior + 1,
		CompletedAt:  a.At,
	}
	if idx >= 0 {
		p.QuizResults[idx] = result
	} else {
		p.QuizResults = append(p.QuizResults, result)
	}

	if result.Passed {
		p.CompletedQuizzes = addToSet(p.CompletedQuizzes, a.SubSectionID)
		p.PassedQuizzes = addToSet(p.PassedQuizzes, a.SubSectionID)
	}
	p.UpdatedAt = a.At
	return result, nil
}

// CompleteLecture marks the lecture of subSectionID as watched. It reports
// whether the set changed.
func (p *CourseProgress) CompleteLecture(subSectionID string, at time.Time) bool {
	if slices.Contains(p.CompletedVideos, subSectionID) {
		return false
	}
	p.CompletedVideos = append(p.CompletedVideos, subSectionID)
	p.UpdatedAt = at
	return true
}

func addToSet(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}
