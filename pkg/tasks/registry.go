package tasks

import (
	"context"
	"time"

	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PeriodLockRegistry tracks closed accounting periods per project and answers
// whether a work-date falls inside a locked window. Permission checks on its
// mutating operations live in the engine, not here.
type PeriodLockRegistry struct {
	Locks  PeriodLockRepositoryInterface
	Logger logger.Interface
}

// FindLock returns the locked window containing the work-date, or nil
func (r *PeriodLockRegistry) FindLock(ctx context.Context, projectID primitive.ObjectID, workDate time.Time) (*WorkPeriodLock, error) {
	locks, err := r.Locks.FindAllByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	for index := range locks {
		if locks[index].Locked && locks[index].Period.ContainsDay(workDate) {
			return &locks[index], nil
		}
	}

	return nil, nil
}

// IsLocked reports whether a work-date falls inside any locked window of the project
func (r *PeriodLockRegistry) IsLocked(ctx context.Context, projectID primitive.ObjectID, workDate time.Time) (bool, error) {
	lock, err := r.FindLock(ctx, projectID, workDate)
	if err != nil {
		return false, err
	}
	return lock != nil, nil
}

// FindAll lists all lock windows of a project
func (r *PeriodLockRegistry) FindAll(ctx context.Context, projectID primitive.ObjectID) ([]WorkPeriodLock, error) {
	return r.Locks.FindAllByProject(ctx, projectID)
}

// SetLock creates a new lock window. Overlapping windows are rejected at
// creation so a containment check can never match more than one window.
func (r *PeriodLockRegistry) SetLock(ctx context.Context, lock *WorkPeriodLock) error {
	if !lock.Period.IsValid() {
		return apperrors.NewValidation("period end %s is before period start %s",
			lock.Period.End.Format("2006-01-02"), lock.Period.Start.Format("2006-01-02"))
	}

	existing, err := r.Locks.FindAllByProject(ctx, lock.ProjectID)
	if err != nil {
		return err
	}

	for index := range existing {
		if existing[index].Period.Overlaps(lock.Period) {
			return apperrors.NewValidation("period overlaps the existing window %s", existing[index].Period.String())
		}
	}

	return r.Locks.Add(ctx, lock)
}

// Toggle switches an existing window between locked and open
func (r *PeriodLockRegistry) Toggle(ctx context.Context, projectID primitive.ObjectID, lockID string, locked bool, by primitive.ObjectID) (*WorkPeriodLock, error) {
	lock, err := r.Locks.FindByID(ctx, lockID, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, "lock window does not exist")
	}

	lock.Locked = locked
	lock.LockedAt = time.Now()
	lock.LockedBy = by

	err = r.Locks.SetLocked(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}
