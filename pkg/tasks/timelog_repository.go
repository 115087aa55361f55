package tasks

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TimeLogRepositoryInterface is an interface for a *MongoDBTimeLogRepository
type TimeLogRepositoryInterface interface {
	Add(ctx context.Context, entry *TimeLog) error
	FindByID(ctx context.Context, timeLogID string, organizationID primitive.ObjectID) (*TimeLog, error)
	FindAllByTask(ctx context.Context, taskID primitive.ObjectID) ([]TimeLog, error)
	Update(ctx context.Context, entry *TimeLog) error
	Delete(ctx context.Context, timeLogID string, organizationID primitive.ObjectID) error
	SumsForTask(ctx context.Context, taskID primitive.ObjectID) (*TimeLogSums, error)
}

// MongoDBTimeLogRepository stores and aggregates time log entries
type MongoDBTimeLogRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add adds a time log entry
func (s *MongoDBTimeLogRepository) Add(ctx context.Context, entry *TimeLog) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	entry.LastModifiedAt = time.Now()

	_, err := s.DB.InsertOne(ctx, entry)
	return err
}

// FindByID finds an entry scoped to an organization
func (s *MongoDBTimeLogRepository) FindByID(ctx context.Context, timeLogID string, organizationID primitive.ObjectID) (*TimeLog, error) {
	timeLogObjectID, err := primitive.ObjectIDFromHex(timeLogID)
	if err != nil {
		return nil, errors.Wrap(err, "malformed time log id")
	}

	entry := TimeLog{}
	err = s.DB.FindOne(ctx, bson.M{"_id": timeLogObjectID, "organizationId": organizationID}).Decode(&entry)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// FindAllByTask lists all entries of one task, oldest first
func (s *MongoDBTimeLogRepository) FindAllByTask(ctx context.Context, taskID primitive.ObjectID) ([]TimeLog, error) {
	entries := []TimeLog{}

	cursor, err := s.DB.Find(ctx, bson.M{"taskId": taskID})
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &entries)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Update persists a changed entry
func (s *MongoDBTimeLogRepository) Update(ctx context.Context, entry *TimeLog) error {
	entry.LastModifiedAt = time.Now()

	result, err := s.DB.ReplaceOne(ctx, bson.M{"_id": entry.ID, "organizationId": entry.OrganizationID}, entry)
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return errors.New("updated count != 1")
	}

	return nil
}

// Delete removes an entry
func (s *MongoDBTimeLogRepository) Delete(ctx context.Context, timeLogID string, organizationID primitive.ObjectID) error {
	timeLogObjectID, err := primitive.ObjectIDFromHex(timeLogID)
	if err != nil {
		return errors.Wrap(err, "malformed time log id")
	}

	result, err := s.DB.DeleteOne(ctx, bson.M{"_id": timeLogObjectID, "organizationId": organizationID})
	if err != nil {
		return err
	}

	if result.DeletedCount != 1 {
		return errors.New("deleted count != 1")
	}

	return nil
}

// SumsForTask groups the minutes of all entries of a task by their target
func (s *MongoDBTimeLogRepository) SumsForTask(ctx context.Context, taskID primitive.ObjectID) (*TimeLogSums, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"taskId": taskID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":     "$subtaskId",
			"minutes": bson.M{"$sum": "$minutes"},
		}}},
	}

	cursor, err := s.DB.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		SubtaskID *primitive.ObjectID `bson:"_id"`
		Minutes   int                 `bson:"minutes"`
	}
	err = cursor.All(ctx, &groups)
	if err != nil {
		return nil, err
	}

	sums := TimeLogSums{BySubtask: map[primitive.ObjectID]int{}}
	for _, group := range groups {
		sums.Total += group.Minutes
		if group.SubtaskID == nil {
			sums.Direct += group.Minutes
			continue
		}
		sums.BySubtask[*group.SubtaskID] = group.Minutes
	}

	return &sums, nil
}
