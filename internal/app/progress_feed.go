package app

import (
	"sync"

	"assessment-service/internal/domain"
)

// ProgressFeed fans progress snapshots out to live subscribers of one
// (user, course) pair. It lives in-process; each replica only notifies its
// own websocket clients.
type ProgressFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.CourseProgress]struct{}
}

func NewProgressFeed() *ProgressFeed {
	return &ProgressFeed{subscribers: make(map[string]map[chan domain.CourseProgress]struct{})}
}

// Subscribe returns a channel of snapshots for the learner's course.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ProgressFeed) Subscribe(userID, courseID string) (<-chan domain.CourseProgress, func()) {
	key := feedKey(userID, courseID)
	ch := make(chan domain.CourseProgress, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[key]
	if !ok {
		subs = make(map[chan domain.CourseProgress]struct{})
		f.subscribers[key] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[key]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, key)
		}
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending snapshot.
func (f *ProgressFeed) Publish(progress domain.CourseProgress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[feedKey(progress.UserID, progress.CourseID)] {
		select {
		case ch <- progress:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- progress
		}
	}
}

// Subscribers reports how many channels watch the pair.
func (f *ProgressFeed) Subscribers(userID, courseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[feedKey(userID, courseID)])
}

func feedKey(userID, courseID string) string {
	return userID + "|" + courseID
}
