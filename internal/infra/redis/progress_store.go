package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps each CourseProgress as one JSON document:
//
//	SET progress:{len(userID)}:{userID}:{courseID} {json}
//
// The length prefix keeps IDs that contain ':' from aliasing another pair.
//
// Updates are optimistic WATCH/MULTI transactions; if the key changes between
// the read and EXEC the transaction is discarded and domain.ErrConflict returned.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) Get(ctx context.Context, userID, courseID string) (domain.CourseProgress, error) {
	return load(ctx, s.client, progressKey(userID, courseID))
}

func (s *ProgressStore) Update(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	key := progressKey(userID, courseID)

	var updated domain.CourseProgress
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if errors.Is(err, domain.ErrProgressNotFound) {
			current = domain.NewCourseProgress(userID, courseID)
		} else if err != nil {
			return err
		}

		if err := mutate(&current); err != nil {
			return err
		}
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("marshal progress: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = current
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.CourseProgress{}, domain.ErrConflict
	}
	if err != nil {
		return domain.CourseProgress{}, err
	}
	return updated, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (domain.CourseProgress, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CourseProgress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("load progress: %w", err)
	}
	var progress domain.CourseProgress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return domain.CourseProgress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return progress, nil
}

func progressKey(userID, courseID string) string {
	return fmt.Sprintf("progress:%d:%s:%s", len(userID), userID, courseID)
}
