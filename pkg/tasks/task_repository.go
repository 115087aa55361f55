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

// ErrVersionMismatch is returned when a versioned write matched no document;
// under the per-task lock the document exists, so the version moved on
var ErrVersionMismatch = errors.New("task version mismatch")

// TaskRepositoryInterface is an interface for a *MongoDBTaskRepository
type TaskRepositoryInterface interface {
	Add(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, taskID string, organizationID primitive.ObjectID, includeDeleted bool) (*Task, error)
	FindAllByProject(ctx context.Context, projectID primitive.ObjectID, page int, pageSize int) ([]Task, int, error)
	Update(ctx context.Context, task *Task, expectedVersion int64) error
	Delete(ctx context.Context, task *Task, expectedVersion int64) error
	DeleteFinally(ctx context.Context, taskID string, organizationID primitive.ObjectID) error
}

// MongoDBTaskRepository does everything related to storing and finding tasks
type MongoDBTaskRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// Add adds a task
func (s *MongoDBTaskRepository) Add(ctx context.Context, task *Task) error {
	task.CreatedAt = time.Now()
	task.LastModifiedAt = time.Now()
	task.ID = primitive.NewObjectID()
	task.Version = 0

	for index := range task.Subtasks {
		if task.Subtasks[index].ID.IsZero() {
			task.Subtasks[index].ID = primitive.NewObjectID()
		}
	}

	_, err := s.DB.InsertOne(ctx, task)
	return err
}

// FindByID finds a task scoped to an organization
func (s *MongoDBTaskRepository) FindByID(ctx context.Context, taskID string, organizationID primitive.ObjectID, includeDeleted bool) (*Task, error) {
	taskObjectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, errors.Wrap(err, "malformed task id")
	}

	filter := bson.M{"_id": taskObjectID, "organizationId": organizationID}
	if !includeDeleted {
		filter["deleted"] = false
	}

	task := Task{}
	err = s.DB.FindOne(ctx, filter).Decode(&task)
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// FindAllByProject finds all tasks of a project paginated
func (s *MongoDBTaskRepository) FindAllByProject(ctx context.Context, projectID primitive.ObjectID, page int, pageSize int) ([]Task, int, error) {
	t := []Task{}

	offset := page * pageSize

	findOptions := options.Find()
	findOptions.SetSort(bson.M{"dueAt": 1})
	findOptions.SetSkip(int64(offset))
	findOptions.SetLimit(int64(pageSize))

	filter := bson.M{"projectId": projectID, "deleted": false}

	cursor, err := s.DB.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.DB.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	err = cursor.All(ctx, &t)
	if err != nil {
		return nil, 0, err
	}

	return t, int(count), nil
}

// Update applies all writable fields of a task in one write that also pins the
// expected version and bumps it by exactly one; a concurrent writer that got
// there first makes the filter match nothing
func (s *MongoDBTaskRepository) Update(ctx context.Context, task *Task, expectedVersion int64) error {
	task.LastModifiedAt = time.Now()

	for index := range task.Subtasks {
		if task.Subtasks[index].ID.IsZero() {
			task.Subtasks[index].ID = primitive.NewObjectID()
		}
	}

	update := task.UpdateView()

	result, err := s.DB.UpdateOne(ctx, bson.M{
		"_id":            task.ID,
		"organizationId": task.OrganizationID,
		"version":        expectedVersion,
	}, bson.M{
		"$set": &update,
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}

	if result.MatchedCount != 1 {
		return ErrVersionMismatch
	}

	task.Version = expectedVersion + 1

	return nil
}

// Delete moves a task into the recycle bin; the record stays for the external
// recycle collaborator, only the deleted flag flips
func (s *MongoDBTaskRepository) Delete(ctx context.Context, task *Task, expectedVersion int64) error {
	task.Deleted = true
	return s.Update(ctx, task, expectedVersion)
}

// DeleteFinally removes a task for good
func (s *MongoDBTaskRepository) DeleteFinally(ctx context.Context, taskID string, organizationID primitive.ObjectID) error {
	taskObjectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return errors.Wrap(err, "malformed task id")
	}

	result, err := s.DB.DeleteOne(ctx, bson.M{"_id": taskObjectID, "organizationId": organizationID})
	if err != nil {
		return err
	}

	if result.DeletedCount != 1 {
		return errors.New("deleted count != 1")
	}

	return nil
}
