package tasks

import (
	"context"
	"time"

	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimeAccountant applies the recording eligibility rules for time log entries.
// The checks run in a fixed order so a request failing several rules always
// reports the same one: target, structural, completion, period lock, quantity.
type TimeAccountant struct {
	Registry *PeriodLockRegistry
	TimeLogs TimeLogRepositoryInterface
	Logger   logger.Interface
}

// CheckRecord runs the full check sequence for a new entry against the given
// task and returns the resolved target subtask, or nil for a direct entry
func (a *TimeAccountant) CheckRecord(ctx context.Context, task *Task, subtaskID *primitive.ObjectID, workDate time.Time, minutes int) (*Subtask, error) {
	var subtask *Subtask
	if subtaskID != nil {
		subtask = task.FindSubtask(*subtaskID)
		if subtask == nil {
			return nil, apperrors.NewNotFound("subtask does not belong to this task")
		}
	}

	if subtask == nil && len(task.Subtasks) > 0 {
		return nil, apperrors.NewNotEligible("this task has subtasks, time must be logged against a specific subtask")
	}

	err := a.checkCompletion(task, subtask)
	if err != nil {
		return nil, err
	}

	err = a.checkPeriod(ctx, task.ProjectID, workDate)
	if err != nil {
		return nil, err
	}

	if minutes <= 0 {
		return nil, apperrors.NewValidation("minutes must be a positive number, got %d", minutes)
	}

	return subtask, nil
}

// CheckEdit re-runs the completion and period checks for an update or delete of
// an existing entry. The entry's own stored work-date is checked against the
// lock state at edit time, so a window closed after recording also freezes the
// entry; when the edit moves the work-date, the new date must be open too.
func (a *TimeAccountant) CheckEdit(ctx context.Context, task *Task, entry *TimeLog, newWorkDate *time.Time, newMinutes *int) error {
	var subtask *Subtask
	if entry.SubtaskID != nil {
		subtask = task.FindSubtask(*entry.SubtaskID)
		if subtask == nil {
			return apperrors.NewNotFound("subtask does not belong to this task")
		}
	}

	err := a.checkCompletion(task, subtask)
	if err != nil {
		return err
	}

	err = a.checkPeriod(ctx, task.ProjectID, entry.WorkDate)
	if err != nil {
		return err
	}

	if newWorkDate != nil && !newWorkDate.Equal(entry.WorkDate) {
		err = a.checkPeriod(ctx, task.ProjectID, *newWorkDate)
		if err != nil {
			return err
		}
	}

	if newMinutes != nil && *newMinutes <= 0 {
		return apperrors.NewValidation("minutes must be a positive number, got %d", *newMinutes)
	}

	return nil
}

func (a *TimeAccountant) checkCompletion(task *Task, subtask *Subtask) error {
	if subtask != nil {
		if subtask.Status != StatusDone {
			return apperrors.NewNotEligible("subtask is not done, time can only be logged against a completed subtask")
		}
		return nil
	}

	if task.Status != StatusDone {
		return apperrors.NewNotEligible("task is not done, time can only be logged against a completed task")
	}

	return nil
}

func (a *TimeAccountant) checkPeriod(ctx context.Context, projectID primitive.ObjectID, workDate time.Time) error {
	lock, err := a.Registry.FindLock(ctx, projectID, workDate)
	if err != nil {
		return err
	}

	if lock != nil {
		return apperrors.NewPeriodLocked("the accounting period %s is closed", lock.Period.String())
	}

	return nil
}

// Decorate fills the time log projections of a task: the task total and the
// per-subtask sums and has-logs flags. Nothing here is ever persisted.
func (a *TimeAccountant) Decorate(ctx context.Context, task *Task) error {
	sums, err := a.TimeLogs.SumsForTask(ctx, task.ID)
	if err != nil {
		return err
	}

	task.TotalLoggedMinutes = sums.Total
	for index := range task.Subtasks {
		minutes := sums.BySubtask[task.Subtasks[index].ID]
		task.Subtasks[index].LoggedMinutes = minutes
		task.Subtasks[index].HasLogs = minutes > 0
	}

	return nil
}
