package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockPeriodLockRepository is a period lock repository for testing
type MockPeriodLockRepository struct {
	mutex sync.Mutex
	Locks []*WorkPeriodLock
}

// Add adds a lock window
func (m *MockPeriodLockRepository) Add(_ context.Context, lock *WorkPeriodLock) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	lock.ID = primitive.NewObjectID()
	lock.CreatedAt = time.Now()

	clone := *lock
	m.Locks = append(m.Locks, &clone)
	return nil
}

// FindByID finds a lock window scoped to its project
func (m *MockPeriodLockRepository) FindByID(_ context.Context, lockID string, projectID primitive.ObjectID) (*WorkPeriodLock, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, lock := range m.Locks {
		if lock.ID.Hex() == lockID && lock.ProjectID == projectID {
			clone := *lock
			return &clone, nil
		}
	}

	return nil, errors.New("lock window not found")
}

// FindAllByProject lists all lock windows of a project
func (m *MockPeriodLockRepository) FindAllByProject(_ context.Context, projectID primitive.ObjectID) ([]WorkPeriodLock, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var locks []WorkPeriodLock
	for _, lock := range m.Locks {
		if lock.ProjectID == projectID {
			locks = append(locks, *lock)
		}
	}

	return locks, nil
}

// SetLocked persists the locked flag and its audit fields
func (m *MockPeriodLockRepository) SetLocked(_ context.Context, lock *WorkPeriodLock) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for index, stored := range m.Locks {
		if stored.ID == lock.ID && stored.ProjectID == lock.ProjectID {
			clone := *lock
			m.Locks[index] = &clone
			return nil
		}
	}

	return errors.New("lock window not found")
}
