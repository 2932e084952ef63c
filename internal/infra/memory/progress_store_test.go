package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-service/internal/domain"
)

func TestProgressStoreLazyCreate(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "u1", "c1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	p, err := store.Update(ctx, "u1", "c1", func(p *domain.CourseProgress) error {
		p.CompleteLecture("sub-1", time.Now())
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.UserID != "u1" || p.CourseID != "c1" || len(p.CompletedVideos) != 1 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestProgressStoreMutateErrorDoesNotWrite(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.Update(ctx, "u1", "c1", func(p *domain.CourseProgress) error {
		p.CompleteLecture("sub-1", time.Now())
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	if _, err := store.Get(ctx, "u1", "c1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}

func TestProgressStoreConcurrentAttempts(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, "u1", "c1", func(p *domain.CourseProgress) error {
				_, err := p.RecordAttempt(domain.Attempt{QuizID: "quiz-1", SubSectionID: "sub-1", TotalMarks: 10, At: time.Now()})
				return err
			})
		}()
	}
	wg.Wait()

	p, err := store.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.QuizResults) != 1 || p.QuizResults[0].Attempts != workers {
		t.Fatalf("expected one result with %d attempts, got %+v", workers, p.QuizResults)
	}
}

func TestProgressStoreKeepsPairsApart(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice|x", "c"}, {"alice:x", "c"}} {
		_, err := store.Update(ctx, pair[0], pair[1], func(p *domain.CourseProgress) error {
			_, err := p.RecordAttempt(domain.Attempt{QuizID: "quiz-a", SubSectionID: "A", Score: 1, TotalMarks: 1, Percentage: 100, Passed: true, At: time.Now()})
			return err
		})
		if err != nil {
			t.Fatalf("update %v: %v", pair, err)
		}
	}

	for _, courseID := range []string{"x|c", "x:c"} {
		if _, err := store.Get(ctx, "alice", courseID); !errors.Is(err, domain.ErrProgressNotFound) {
			t.Fatalf("expected no progress for (alice, %s), got %v", courseID, err)
		}
	}
}
