package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds one document per (user, course).
const CollectionName = "course_progress"

type progressDocument struct {
	domain.CourseProgress `bson:",inline"`
	Version               int64 `bson:"version"`
}

// ProgressStore keeps CourseProgress documents in MongoDB, addressed by their
// userId and courseId fields. The unique index on that pair makes a second
// concurrent insert fail with a duplicate key; updates replace the document
// only if its version is unchanged.
type ProgressStore struct {
	coll *mongo.Collection
}

func NewProgressStore(db *mongo.Database) *ProgressStore {
	return &ProgressStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique (courseId, userId) index that Update relies
// on to reject a second first-write for the same learner and course.
func (s *ProgressStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "courseId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *ProgressStore) Get(ctx context.Context, userID, courseID string) (domain.CourseProgress, error) {
	doc, err := s.load(ctx, userID, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	return doc.CourseProgress, nil
}

func (s *ProgressStore) Update(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	doc, err := s.load(ctx, userID, courseID)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return s.create(ctx, userID, courseID, mutate)
	}
	if err != nil {
		return domain.CourseProgress{}, err
	}

	if err := mutate(&doc.CourseProgress); err != nil {
		return domain.CourseProgress{}, err
	}
	expected := doc.Version
	doc.Version++

	filter := pairFilter(userID, courseID)
	filter["version"] = expected
	res, err := s.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("replace progress: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.CourseProgress{}, domain.ErrConflict
	}
	return doc.CourseProgress, nil
}

func (s *ProgressStore) create(ctx context.Context, userID, courseID string, mutate func(*domain.CourseProgress) error) (domain.CourseProgress, error) {
	doc := progressDocument{
		CourseProgress: domain.NewCourseProgress(userID, courseID),
	}
	if err := mutate(&doc.CourseProgress); err != nil {
		return domain.CourseProgress{}, err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.CourseProgress{}, domain.ErrConflict
	}
	if err != nil {
		return domain.CourseProgress{}, fmt.Errorf("insert progress: %w", err)
	}
	return doc.CourseProgress, nil
}

func (s *ProgressStore) load(ctx context.Context, userID, courseID string) (progressDocument, error) {
	var doc progressDocument
	err := s.coll.FindOne(ctx, pairFilter(userID, courseID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return progressDocument{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return progressDocument{}, fmt.Errorf("load progress: %w", err)
	}
	return doc, nil
}

func pairFilter(userID, courseID string) bson.M {
	return bson.M{"userId": userID, "courseId": courseID}
}
