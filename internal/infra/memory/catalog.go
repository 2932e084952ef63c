package memory

import (
	"context"
	"sort"

	"assessment-service/internal/domain"
)

// QuizIndex tells which quiz (if any) a subsection owns.
type QuizIndex interface {
	QuizIDForSubSection(subSectionID string) string
}

// Catalog is a static course structure. Subsections are ordered by Position
// inside their section; quiz ownership comes from the QuizIndex so that quizzes
// created at runtime are picked up.
type Catalog struct {
	sections    map[string]domain.Section
	subsections map[string]domain.SubSection
	bySection   map[string][]string
	byCourse    map[string][]string
	quizzes     QuizIndex
}

func NewCatalog(sections []domain.Section, subsections []domain.SubSection, quizzes QuizIndex) *Catalog {
	c := &Catalog{
		sections:    make(map[string]domain.Section, len(sections)),
		subsections: make(map[string]domain.SubSection, len(subsections)),
		bySection:   make(map[string][]string),
		byCourse:    make(map[string][]string),
		quizzes:     quizzes,
	}
	for _, s := range sections {
		c.sections[s.ID] = s
	}

	ordered := append([]domain.SubSection(nil), subsections...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := c.sections[ordered[i].SectionID], c.sections[ordered[j].SectionID]
		if si.Position != sj.Position {
			return si.Position < sj.Position
		}
		return ordered[i].Position < ordered[j].Position
	})
	for _, sub := range ordered {
		if sub.CourseID == "" {
			sub.CourseID = c.sections[sub.SectionID].CourseID
		}
		c.subsections[sub.ID] = sub
		c.bySection[sub.SectionID] = append(c.bySection[sub.SectionID], sub.ID)
		c.byCourse[sub.CourseID] = append(c.byCourse[sub.CourseID], sub.ID)
	}
	return c
}

func (c *Catalog) GetSubSection(_ context.Context, subSectionID string) (domain.SubSection, error) {
	sub, ok := c.subsections[subSectionID]
	if !ok {
		return domain.SubSection{}, domain.ErrSubSectionNotFound
	}
	return c.withQuiz(sub), nil
}

func (c *Catalog) ListSectionSubSections(_ context.Context, sectionID string) ([]domain.SubSection, error) {
	if _, ok := c.sections[sectionID]; !ok {
		return nil, domain.ErrSectionNotFound
	}
	return c.collect(c.bySection[sectionID]), nil
}

func (c *Catalog) ListCourseSubSections(_ context.Context, courseID string) ([]domain.SubSection, error) {
	return c.collect(c.byCourse[courseID]), nil
}

func (c *Catalog) collect(ids []string) []domain.SubSection {
	out := make([]domain.SubSection, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.withQuiz(c.subsections[id]))
	}
	return out
}

func (c *Catalog) withQuiz(sub domain.SubSection) domain.SubSection {
	if c.quizzes != nil {
		if quizID := c.quizzes.QuizIDForSubSection(sub.ID); quizID != "" {
			sub.QuizID = quizID
		}
	}
	return sub
}
