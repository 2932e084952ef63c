package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

// Catalog reads sections and subsections written by the course-authoring
// service. Quiz ownership is joined in from the quizzes table.
type Catalog struct {
	db *bun.DB
}

func NewCatalog(db *bun.DB) *Catalog {
	return &Catalog{db: db}
}

type subSectionRow struct {
	ID        string `bun:"id"`
	SectionID string `bun:"section_id"`
	CourseID  string `bun:"course_id"`
	Title     string `bun:"title"`
	Position  int    `bun:"position"`
	HasVideo  bool   `bun:"has_video"`
	QuizID    string `bun:"quiz_id"`
}

func (r subSectionRow) toDomain() domain.SubSection {
	return domain.SubSection{
		ID:        r.ID,
		SectionID: r.SectionID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Position:  r.Position,
		HasVideo:  r.HasVideo,
		QuizID:    r.QuizID,
	}
}

func (c *Catalog) subSections() *bun.SelectQuery {
	return c.db.NewSelect().
		TableExpr("course_subsections AS ss").
		Join("JOIN course_sections AS s ON s.id = ss.section_id").
		Join("LEFT JOIN quizzes AS q ON q.subsection_id = ss.id").
		ColumnExpr("ss.id, ss.section_id, s.course_id, ss.title, ss.position, ss.has_video").
		ColumnExpr("COALESCE(q.id, '') AS quiz_id")
}

func (c *Catalog) GetSubSection(ctx context.Context, subSectionID string) (domain.SubSection, error) {
	var row subSectionRow
	err := c.subSections().Where("ss.id = ?", subSectionID).Limit(1).Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubSection{}, domain.ErrSubSectionNotFound
	}
	if err != nil {
		return domain.SubSection{}, fmt.Errorf("load subsection: %w", err)
	}
	return row.toDomain(), nil
}

func (c *Catalog) ListSectionSubSections(ctx context.Context, sectionID string) ([]domain.SubSection, error) {
	exists, err := c.db.NewSelect().Table("course_sections").Where("id = ?", sectionID).Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("load section: %w", err)
	}
	if !exists {
		return nil, domain.ErrSectionNotFound
	}

	var rows []subSectionRow
	err = c.subSections().
		Where("ss.section_id = ?", sectionID).
		OrderExpr("ss.position ASC, ss.created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list subsections: %w", err)
	}
	return toDomain(rows), nil
}

func (c *Catalog) ListCourseSubSections(ctx context.Context, courseID string) ([]domain.SubSection, error) {
	var rows []subSectionRow
	err := c.subSections().
		Where("s.course_id = ?", courseID).
		OrderExpr("s.position ASC, ss.position ASC, ss.created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list course subsections: %w", err)
	}
	return toDomain(rows), nil
}

// SeedSection inserts or refreshes a section and its subsections. It backs
// the seed command; production data comes from the authoring service.
func (c *Catalog) SeedSection(ctx context.Context, section domain.Section, subs []domain.SubSection) error {
	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewRaw(`INSERT INTO course_sections (id, course_id, title, position) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, title = EXCLUDED.title, position = EXCLUDED.position`,
			section.ID, section.CourseID, section.Title, section.Position).Exec(ctx)
		if err != nil {
			return fmt.Errorf("seed section: %w", err)
		}
		for _, sub := range subs {
			_, err := tx.NewRaw(`INSERT INTO course_subsections (id, section_id, title, position, has_video) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET section_id = EXCLUDED.section_id, title = EXCLUDED.title, position = EXCLUDED.position, has_video = EXCLUDED.has_video`,
				sub.ID, section.ID, sub.Title, sub.Position, sub.HasVideo).Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed subsection %s: %w", sub.ID, err)
			}
		}
		return nil
	})
}

func toDomain(rows []subSectionRow) []domain.SubSection {
	out := make([]domain.SubSection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
