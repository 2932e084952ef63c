package app

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
	"github.com/sirupsen/logrus"
)

// ProgressStore abstracts how CourseProgress aggregates are stored.
type ProgressStore interface {
	// Get returns domain.ErrProgressNotFound when the learner has no record for the course.
	Get(ctx context.Context, userID, courseID string) (domain.CourseProgress, error)
	// Update runs mutate against the current aggregate (an empty one when
	// absent) and persists the result as one atomic create-or-update. An error
	// from mutate aborts without writing. A lost race is reported as
	// domain.ErrConflict and nothing is written.
	Update(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error)
}

// ProgressPublisher is notified after every successful progress write.
type ProgressPublisher interface {
	Publish(progress domain.CourseProgress)
}

// Submission is a learner's answer sheet for one quiz.
type Submission struct {
	QuizID       string
	CourseID     string
	SubSectionID string
	Answers      scoring.Answers
	TimerExpired bool
}

// SubmissionResult is what the learner sees after grading.
type SubmissionResult struct {
	Grade    scoring.Result
	Attempts int
	Stored   domain.QuizResult
}

// QuizStatus is the learner's current standing on a quiz.
type QuizStatus struct {
	Attempts    int
	Passed      bool
	LastAttempt *domain.QuizResult
}

// SubmissionService coordinates grading and the progress write.
type SubmissionService struct {
	quizzes    QuizRepository
	catalog    Catalog
	progress   ProgressStore
	publisher  ProgressPublisher
	log        logrus.FieldLogger
	maxRetries int
	backoff    time.Duration
}

func NewSubmissionService(quizzes QuizRepository, catalog Catalog, progress ProgressStore, publisher ProgressPublisher, log logrus.FieldLogger, maxRetries int) *SubmissionService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &SubmissionService{
		quizzes:    quizzes,
		catalog:    catalog,
		progress:   progress,
		publisher:  publisher,
		log:        log,
		maxRetries: maxRetries,
		backoff:    20 * time.Millisecond,
	}
}

// Submit grades a submission and records it. A quiz already passed is
// terminal: the stored result comes back inside *domain.AlreadyPassedError
// and nothing is rescored or written.
func (s *SubmissionService) Submit(ctx context.Context, learner domain.Learner, sub Submission) (SubmissionResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := s.checkOwnership(ctx, quiz, sub.CourseID, sub.SubSectionID); err != nil {
		return SubmissionResult{}, err
	}

	current, err := s.progress.Get(ctx, learner.UserID, sub.CourseID)
	switch {
	case errors.Is(err, domain.ErrProgressNotFound):
	case err != nil:
		return SubmissionResult{}, err
	default:
		if prior, ok := current.Result(quiz.ID); ok && prior.Passed {
			return SubmissionResult{}, &domain.AlreadyPassedError{Result: prior}
		}
	}

	if err := scoring.Gate(quiz, sub.Answers, sub.TimerExpired); err != nil {
		return SubmissionResult{}, err
	}
	grade := scoring.Score(quiz, sub.Answers)

	attempt := domain.Attempt{
		QuizID:       quiz.ID,
		SubSectionID: quiz.SubSectionID,
		Score:        grade.Score,
		TotalMarks:   grade.TotalMarks,
		Percentage:   grade.Percentage,
		Passed:       grade.Passed,
		At:           learner.Now.UTC(),
	}

	var stored domain.QuizResult
	updated, err := s.updateWithRetry(ctx, learner.UserID, sub.CourseID, func(p *domain.CourseProgress) error {
		r, err := p.RecordAttempt(attempt)
		stored = r
		return err
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	s.publish(updated)
	return SubmissionResult{Grade: grade, Attempts: stored.Attempts, Stored: stored}, nil
}

// Status reports attempts and the latest stored result for a quiz.
func (s *SubmissionService) Status(ctx context.Context, learner domain.Learner, quizID string) (QuizStatus, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizStatus{}, err
	}
	sub, err := s.catalog.GetSubSection(ctx, quiz.SubSectionID)
	if err != nil {
		return QuizStatus{}, err
	}

	progress, err := s.progress.Get(ctx, learner.UserID, sub.CourseID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return QuizStatus{}, nil
	}
	if err != nil {
		return QuizStatus{}, err
	}
	result, ok := progress.Result(quizID)
	if !ok {
		return QuizStatus{}, nil
	}
	return QuizStatus{Attempts: result.Attempts, Passed: result.Passed, LastAttempt: &result}, nil
}

func (s *SubmissionService) checkOwnership(ctx context.Context, quiz domain.Quiz, courseID, subSectionID string) error {
	if courseID == "" {
		return domain.Invalid("courseId", "is required")
	}
	if subSectionID != "" && subSectionID != quiz.SubSectionID {
		return domain.Invalid("subSectionId", "quiz %s does not belong to subsection %s", quiz.ID, subSectionID)
	}
	sub, err := s.catalog.GetSubSection(ctx, quiz.SubSectionID)
	if err != nil {
		return err
	}
	if sub.CourseID != courseID {
		return domain.Invalid("courseId", "subsection %s is not part of course %s", sub.ID, courseID)
	}
	return nil
}

// updateWithRetry re-runs the whole atomic update when a store reports a lost race.
func (s *SubmissionService) updateWithRetry(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	return retryOnConflict(ctx, s.log, s.maxRetries, s.backoff, func() (domain.CourseProgress, error) {
		return s.progress.Update(ctx, userID, courseID, mutate)
	})
}

func (s *SubmissionService) publish(progress domain.CourseProgress) {
	if s.publisher != nil {
		s.publisher.Publish(progress)
	}
}

func retryOnConflict(ctx context.Context, log logrus.FieldLogger, maxRetries int, backoff time.Duration, op func() (domain.CourseProgress, error)) (domain.CourseProgress, error) {
	var (
		progress domain.CourseProgress
		err      error
	)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		progress, err = op()
		if !errors.Is(err, domain.ErrConflict) {
			return progress, err
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "max": maxRetries}).Debug("progress update conflict, retrying")

		if attempt == maxRetries {
			break
		}
		wait := backoff + time.Duration(rand.Int63n(int64(backoff)+1))
		select {
		case <-ctx.Done():
			return domain.CourseProgress{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return domain.CourseProgress{}, err
}
