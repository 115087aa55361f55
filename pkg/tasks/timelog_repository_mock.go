package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockTimeLogRepository is a time log repository for testing
type MockTimeLogRepository struct {
	mutex   sync.Mutex
	Entries []*TimeLog
}

// Add adds an entry
func (m *MockTimeLogRepository) Add(_ context.Context, entry *TimeLog) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()
	entry.LastModifiedAt = time.Now()

	clone := *entry
	m.Entries = append(m.Entries, &clone)
	return nil
}

// FindByID finds an entry scoped to an organization
func (m *MockTimeLogRepository) FindByID(_ context.Context, timeLogID string, organizationID primitive.ObjectID) (*TimeLog, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, entry := range m.Entries {
		if entry.ID.Hex() == timeLogID && entry.OrganizationID == organizationID {
			clone := *entry
			return &clone, nil
		}
	}

	return nil, errors.New("time log entry not found")
}

// FindAllByTask lists all entries of one task
func (m *MockTimeLogRepository) FindAllByTask(_ context.Context, taskID primitive.ObjectID) ([]TimeLog, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var entries []TimeLog
	for _, entry := range m.Entries {
		if entry.TaskID == taskID {
			entries = append(entries, *entry)
		}
	}

	return entries, nil
}

// Update persists a changed entry
func (m *MockTimeLogRepository) Update(_ context.Context, entry *TimeLog) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for index, stored := range m.Entries {
		if stored.ID == entry.ID && stored.OrganizationID == entry.OrganizationID {
			entry.LastModifiedAt = time.Now()
			clone := *entry
			m.Entries[index] = &clone
			return nil
		}
	}

	return errors.New("time log entry not found")
}

// Delete removes an entry
func (m *MockTimeLogRepository) Delete(_ context.Context, timeLogID string, organizationID primitive.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for index, entry := range m.Entries {
		if entry.ID.Hex() == timeLogID && entry.OrganizationID == organizationID {
			m.Entries = append(m.Entries[:index], m.Entries[index+1:]...)
			return nil
		}
	}

	return errors.New("time log entry not found")
}

// SumsForTask groups the minutes of all entries of a task by their target
func (m *MockTimeLogRepository) SumsForTask(_ context.Context, taskID primitive.ObjectID) (*TimeLogSums, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sums := TimeLogSums{BySubtask: map[primitive.ObjectID]int{}}
	for _, entry := range m.Entries {
		if entry.TaskID != taskID {
			continue
		}

		sums.Total += entry.Minutes
		if entry.SubtaskID == nil {
			sums.Direct += entry.Minutes
			continue
		}
		sums.BySubtask[*entry.SubtaskID] += entry.Minutes
	}

	return &sums, nil
}
