package gating

import "assessment-service/internal/domain"

// ReasonPreviousQuizzes is returned when an earlier quiz is still unpassed.
const ReasonPreviousQuizzes = "pass previous quizzes"

// Decision is the outcome of an access check.
type Decision struct {
	CanAccess bool   `json:"canAccess"`
	Reason    string `json:"reason,omitempty"`
}

// Decide applies the sequential-unlock rule. ordered is the section's
// subsections in creation order; passed is the learner's passed-quiz set
// (nil when the learner has no progress yet, which leaves only the content up
// to the first quiz open). target must be one of ordered.
func Decide(ordered []domain.SubSection, passed map[string]struct{}, targetID string) Decision {
	for _, sub := range ordered {
		if sub.ID == targetID {
			return Decision{CanAccess: true}
		}
		if !sub.HasQuiz() {
			continue
		}
		if _, ok := passed[sub.ID]; !ok {
			return Decision{CanAccess: false, Reason: ReasonPreviousQuizzes}
		}
	}
	// Target not in the section: nothing gates it here.
	return Decision{CanAccess: true}
}

// PassedSet converts a passed-quiz list into a lookup set.
func PassedSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
