package app

import (
	"context"
	"errors"

	"assessment-service/internal/domain"
	"assessment-service/internal/gating"
	"github.com/sirupsen/logrus"
)

// CourseCompletion summarises how far a learner is through a course.
type CourseCompletion struct {
	CourseID        string
	Percentage      float64
	CompletedVideos int
	PassedQuizzes   int
	TotalUnits      int
}

// ProgressService covers lecture completion, course percentage and access checks.
type ProgressService struct {
	catalog    Catalog
	progress   ProgressStore
	publisher  ProgressPublisher
	log        logrus.FieldLogger
	maxRetries int
}

func NewProgressService(catalog Catalog, progress ProgressStore, publisher ProgressPublisher, log logrus.FieldLogger, maxRetries int) *ProgressService {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ProgressService{
		catalog:    catalog,
		progress:   progress,
		publisher:  publisher,
		log:        log,
		maxRetries: maxRetries,
	}
}

// Snapshot returns the learner's aggregate, or an empty one when none exists yet.
func (s *ProgressService) Snapshot(ctx context.Context, learner domain.Learner, courseID string) (domain.CourseProgress, error) {
	progress, err := s.progress.Get(ctx, learner.UserID, courseID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return domain.NewCourseProgress(learner.UserID, courseID), nil
	}
	return progress, err
}

// CompleteLecture records a watched lecture, creating the aggregate if needed.
func (s *ProgressService) CompleteLecture(ctx context.Context, learner domain.Learner, courseID, subSectionID string) (domain.CourseProgress, error) {
	sub, err := s.catalog.GetSubSection(ctx, subSectionID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	if sub.CourseID != courseID {
		return domain.CourseProgress{}, domain.Invalid("courseId", "subsection %s is not part of course %s", sub.ID, courseID)
	}
	if !sub.HasVideo {
		return domain.CourseProgress{}, domain.Invalid("subSectionId", "subsection %s has no lecture", sub.ID)
	}

	at := learner.Now.UTC()
	updated, err := retryOnConflict(ctx, s.log, s.maxRetries, 0, func() (domain.CourseProgress, error) {
		return s.progress.Update(ctx, learner.UserID, courseID, func(p *domain.CourseProgress) error {
			p.CompleteLecture(sub.ID, at)
			return nil
		})
	})
	if err != nil {
		return domain.CourseProgress{}, err
	}
	if s.publisher != nil {
		s.publisher.Publish(updated)
	}
	return updated, nil
}

// CoursePercentage is (completed lectures + passed quizzes) over all content
// units of the course, where a unit is a lecture or a quiz.
func (s *ProgressService) CoursePercentage(ctx context.Context, learner domain.Learner, courseID string) (CourseCompletion, error) {
	subs, err := s.catalog.ListCourseSubSections(ctx, courseID)
	if err != nil {
		return CourseCompletion{}, err
	}

	progress, err := s.progress.Get(ctx, learner.UserID, courseID)
	if err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
		return CourseCompletion{}, err
	}
	videos := gating.PassedSet(progress.CompletedVideos)
	passed := gating.PassedSet(progress.PassedQuizzes)

	out := CourseCompletion{CourseID: courseID}
	for _, sub := range subs {
		if sub.HasVideo {
			out.TotalUnits++
			if _, ok := videos[sub.ID]; ok {
				out.CompletedVideos++
			}
		}
		if sub.HasQuiz() {
			out.TotalUnits++
			if _, ok := passed[sub.ID]; ok {
				out.PassedQuizzes++
			}
		}
	}
	if out.TotalUnits > 0 {
		out.Percentage = float64(out.CompletedVideos+out.PassedQuizzes) / float64(out.TotalUnits) * 100
	}
	return out, nil
}

// CheckAccess decides whether the learner may enter a subsection.
func (s *ProgressService) CheckAccess(ctx context.Context, learner domain.Learner, subSectionID string) (gating.Decision, error) {
	target, err := s.catalog.GetSubSection(ctx, subSectionID)
	if err != nil {
		return gating.Decision{}, err
	}
	ordered, err := s.catalog.ListSectionSubSections(ctx, target.SectionID)
	if err != nil {
		return gating.Decision{}, err
	}

	progress, err := s.progress.Get(ctx, learner.UserID, target.CourseID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return gating.Decide(ordered, nil, target.ID), nil
	}
	if err != nil {
		return gating.Decision{}, err
	}
	return gating.Decide(ordered, gating.PassedSet(progress.PassedQuizzes), target.ID), nil
}
