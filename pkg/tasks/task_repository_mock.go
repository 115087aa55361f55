package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockTaskRepository is a task repository for testing; its versioned update is
// an atomic compare-and-swap like the real one
type MockTaskRepository struct {
	mutex sync.Mutex
	Tasks []*Task
}

// Add adds a task
func (m *MockTaskRepository) Add(_ context.Context, task *Task) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task.CreatedAt = time.Now()
	task.LastModifiedAt = time.Now()
	task.ID = primitive.NewObjectID()
	task.Version = 0

	for index := range task.Subtasks {
		if task.Subtasks[index].ID.IsZero() {
			task.Subtasks[index].ID = primitive.NewObjectID()
		}
	}

	stored := copyTask(task)
	m.Tasks = append(m.Tasks, stored)
	return nil
}

// FindByID finds a task scoped to an organization
func (m *MockTaskRepository) FindByID(_ context.Context, taskID string, organizationID primitive.ObjectID, includeDeleted bool) (*Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, t := range m.Tasks {
		if t.ID.Hex() == taskID && t.OrganizationID == organizationID {
			if t.Deleted && !includeDeleted {
				break
			}
			return copyTask(t), nil
		}
	}

	return nil, errors.New("task not found")
}

// FindAllByProject finds all tasks of a project; pagination is not implemented
func (m *MockTaskRepository) FindAllByProject(_ context.Context, projectID primitive.ObjectID, _ int, _ int) ([]Task, int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var tasks []Task
	for _, t := range m.Tasks {
		if t.ProjectID == projectID && !t.Deleted {
			tasks = append(tasks, *copyTask(t))
		}
	}

	return tasks, len(tasks), nil
}

// Update replaces the stored task if the expected version still matches
func (m *MockTaskRepository) Update(_ context.Context, task *Task, expectedVersion int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for index, t := range m.Tasks {
		if t.ID == task.ID && t.OrganizationID == task.OrganizationID {
			if t.Version != expectedVersion {
				return ErrVersionMismatch
			}

			task.LastModifiedAt = time.Now()
			task.Version = expectedVersion + 1
			m.Tasks[index] = copyTask(task)
			return nil
		}
	}

	return ErrVersionMismatch
}

// Delete flips the deleted flag through the versioned update
func (m *MockTaskRepository) Delete(ctx context.Context, task *Task, expectedVersion int64) error {
	task.Deleted = true
	return m.Update(ctx, task, expectedVersion)
}

// DeleteFinally removes a task for good
func (m *MockTaskRepository) DeleteFinally(_ context.Context, taskID string, organizationID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for index, t := range m.Tasks {
		if t.ID.Hex() == taskID && t.OrganizationID == organizationID {
			m.Tasks = append(m.Tasks[:index], m.Tasks[index+1:]...)
			return nil
		}
	}

	return errors.New("task not found")
}

func copyTask(task *Task) *Task {
	clone := *task
	clone.Subtasks = append([]Subtask(nil), task.Subtasks...)
	clone.Assignees = append([]primitive.ObjectID(nil), task.Assignees...)
	clone.Tags = append([]primitive.ObjectID(nil), task.Tags...)
	return &clone
}
