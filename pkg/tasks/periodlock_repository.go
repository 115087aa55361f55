package tasks

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PeriodLockRepositoryInterface is an interface for a *MongoDBPeriodLockRepository
type PeriodLockRepositoryInterface interface {
	Add(ctx context.Context, lock *WorkPeriodLock) error
	FindByID(ctx context.Context, lockID string, projectID primitive.ObjectID) (*WorkPeriodLock, error)
	FindAllByProject(ctx context.Context, projectID primitive.ObjectID) ([]WorkPeriodLock, error)
	SetLocked(ctx context.Context, lock *WorkPeriodLock) error
}

// MongoDBPeriodLockRepository stores work period lock windows
type MongoDBPeriodLockRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add adds a lock window
func (s *MongoDBPeriodLockRepository) Add(ctx context.Context, lock *WorkPeriodLock) error {
	lock.ID = primitive.NewObjectID()
	lock.CreatedAt = time.Now()

	_, err := s.DB.InsertOne(ctx, lock)
	return err
}

// FindByID finds a lock window scoped to its project
func (s *MongoDBPeriodLockRepository) FindByID(ctx context.Context, lockID string, projectID primitive.ObjectID) (*WorkPeriodLock, error) {
	lockObjectID, err := primitive.ObjectIDFromHex(lockID)
	if err != nil {
		return nil, errors.Wrap(err, "malformed lock id")
	}

	lock := WorkPeriodLock{}
	err = s.DB.FindOne(ctx, bson.M{"_id": lockObjectID, "projectId": projectID}).Decode(&lock)
	if err != nil {
		return nil, err
	}

	return &lock, nil
}

// FindAllByProject lists all lock windows of a project, earliest first
func (s *MongoDBPeriodLockRepository) FindAllByProject(ctx context.Context, projectID primitive.ObjectID) ([]WorkPeriodLock, error) {
	locks := []WorkPeriodLock{}

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"period.start": 1})

	cursor, err := s.DB.Find(ctx, bson.M{"projectId": projectID}, findOptions)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &locks)
	if err != nil {
		return nil, err
	}

	return locks, nil
}

// SetLocked persists the locked flag and its audit fields
func (s *MongoDBPeriodLockRepository) SetLocked(ctx context.Context, lock *WorkPeriodLock) error {
	result, err := s.DB.UpdateOne(ctx, bson.M{"_id": lock.ID, "projectId": lock.ProjectID}, bson.M{
		"$set": bson.M{
			"locked":   lock.Locked,
			"lockedAt": lock.LockedAt,
			"lockedBy": lock.LockedBy,
		},
	})
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return errors.New("updated count != 1")
	}

	return nil
}
