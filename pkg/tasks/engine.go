package tasks

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/locking"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const taskLockTTL = 10 * time.Second

// TaskEngine orchestrates every mutating or time-logging command: it resolves
// the actor's capability, serializes the read-evaluate-write cycle per task,
// validates the version token and applies the change through the lifecycle and
// accounting rules. Commands either fully succeed or fail without side effects.
type TaskEngine struct {
	Tasks      TaskRepositoryInterface
	TimeLogs   TimeLogRepositoryInterface
	Registry   *PeriodLockRegistry
	Accountant *TimeAccountant
	Locker     locking.LockerInterface
	Logger     logger.Interface
}

// NewTaskEngine wires a TaskEngine from its collaborators
func NewTaskEngine(tasks TaskRepositoryInterface, timeLogs TimeLogRepositoryInterface, locks PeriodLockRepositoryInterface, locker locking.LockerInterface, log logger.Interface) *TaskEngine {
	registry := &PeriodLockRegistry{Locks: locks, Logger: log}

	return &TaskEngine{
		Tasks:      tasks,
		TimeLogs:   timeLogs,
		Registry:   registry,
		Accountant: &TimeAccountant{Registry: registry, TimeLogs: timeLogs, Logger: log},
		Locker:     locker,
		Logger:     log,
	}
}

// TaskPatch carries the fields a task update may change; absent fields stay
// untouched. Version is the token the client last observed, nil skips the check.
type TaskPatch struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *Status               `json:"status"`
	Priority    *int                  `json:"priority"`
	Type        *string               `json:"type"`
	StartDate   *time.Time            `json:"startDate"`
	DueAt       *time.Time            `json:"dueAt"`
	Assignees   *[]primitive.ObjectID `json:"assignees"`
	Tags        *[]primitive.ObjectID `json:"tags"`
	Version     *int64                `json:"version"`
}

// SubtaskCreate is the payload for adding a subtask
type SubtaskCreate struct {
	Name    string    `json:"name" validate:"required"`
	DueAt   time.Time `json:"dueAt"`
	Version *int64    `json:"version"`
}

// SubtaskPatch carries the fields a subtask update may change
type SubtaskPatch struct {
	Name    *string    `json:"name"`
	Status  *Status    `json:"status"`
	DueAt   *time.Time `json:"dueAt"`
	Version *int64     `json:"version"`
}

// TimeLogCreate is the payload for recording effort
type TimeLogCreate struct {
	SubtaskID *primitive.ObjectID `json:"subtaskId"`
	WorkDate  time.Time           `json:"workDate" validate:"required"`
	Minutes   int                 `json:"minutes"`
	Note      string              `json:"note"`
}

// TimeLogPatch carries the fields a time log edit may change
type TimeLogPatch struct {
	WorkDate *time.Time `json:"workDate"`
	Minutes  *int       `json:"minutes"`
	Note     *string    `json:"note"`
}

// TaskView is a task plus the capability computed for the requesting actor
type TaskView struct {
	Task
	Capability Capability `json:"capability"`
}

func (e *TaskEngine) lockTask(ctx context.Context, taskID string) (locking.LockInterface, error) {
	lock, err := e.Locker.Acquire(ctx, "task:"+taskID, taskLockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "could not acquire task lock")
	}
	return lock, nil
}

func (e *TaskEngine) releaseLock(ctx context.Context, lock locking.LockInterface) {
	err := lock.Release(ctx)
	if err != nil {
		e.Logger.Warning("could not release lock " + lock.Key() + ": " + err.Error())
	}
}

// loadTask reads the aggregate within the actor's tenant scope and fills the
// derived projections, so every rule check of the command sees one snapshot
func (e *TaskEngine) loadTask(ctx context.Context, actor actors.Actor, taskID string) (*Task, error) {
	task, err := e.Tasks.FindByID(ctx, taskID, actor.OrganizationID, false)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, "task does not exist")
	}

	err = e.decorate(ctx, task)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// decorate computes IsLocked and the time log roll-ups. A task counts as locked
// while its due date falls inside a locked accounting window of its project.
func (e *TaskEngine) decorate(ctx context.Context, task *Task) error {
	task.IsLocked = false
	if !task.DueAt.IsZero() {
		locked, err := e.Registry.IsLocked(ctx, task.ProjectID, task.DueAt)
		if err != nil {
			return err
		}
		task.IsLocked = locked
	}

	return e.Accountant.Decorate(ctx, task)
}

func (e *TaskEngine) checkVersion(task *Task, clientVersion *int64) error {
	if clientVersion != nil && *clientVersion != task.Version {
		return apperrors.NewConflict("task changed from version %d to %d, reload and resubmit", *clientVersion, task.Version)
	}
	return nil
}

func (e *TaskEngine) persist(ctx context.Context, task *Task) error {
	err := e.Tasks.Update(ctx, task, task.Version)
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return apperrors.Wrap(err, apperrors.KindConflict, "task was modified concurrently, reload and resubmit")
		}
		return err
	}
	return nil
}

// GetTask returns the decorated aggregate together with the actor's capability
func (e *TaskEngine) GetTask(ctx context.Context, actor actors.Actor, taskID string) (*TaskView, error) {
	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	task.SortSubtasks()

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// CreateTask creates a task owned by the actor
func (e *TaskEngine) CreateTask(ctx context.Context, actor actors.Actor, task *Task) error {
	if task.Status == "" {
		task.Status = StatusToDo
	}
	if !task.Status.IsValid() {
		return apperrors.NewValidation("%q is not a valid task status", task.Status)
	}

	task.OrganizationID = actor.OrganizationID
	task.CreatedBy = actor.ID
	task.Deleted = false

	for index := range task.Subtasks {
		if task.Subtasks[index].Status == "" {
			task.Subtasks[index].Status = StatusToDo
		}
		if !task.Subtasks[index].Status.IsValidForSubtask() {
			return apperrors.NewValidation("%q is not a valid subtask status", task.Subtasks[index].Status)
		}
		err := ValidateSubtaskDueDate(task.Subtasks[index].DueAt, task.DueAt)
		if err != nil {
			return err
		}
		task.Subtasks[index].CreatedBy = actor.ID
		task.Subtasks[index].CreatedAt = time.Now()
	}
	task.NormalizeSubtaskPositions()

	return e.Tasks.Add(ctx, task)
}

// UpdateTask applies a patch to the task aggregate under the capability, field,
// lifecycle and version rules, and returns the fresh aggregate
func (e *TaskEngine) UpdateTask(ctx context.Context, actor actors.Actor, taskID string, patch *TaskPatch) (*TaskView, error) {
	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	capability := ResolveCapability(actor, task)
	if !capability.CanUpdate {
		return nil, apperrors.NewPermissionDenied("you may not update this task")
	}

	changed := patch.changedFields(task)
	for _, field := range changed {
		if !capability.AllowedFields.Allows(field) {
			return nil, apperrors.NewPermissionDenied("the field %q is not writable for you", field)
		}
	}

	if patch.Status != nil && *patch.Status != task.Status {
		err = CheckStatusTransition(task.Status, *patch.Status, actor)
		if err != nil {
			return nil, err
		}
	}

	if patch.DueAt != nil {
		for index := range task.Subtasks {
			err = ValidateSubtaskDueDate(task.Subtasks[index].DueAt, *patch.DueAt)
			if err != nil {
				return nil, err
			}
		}
	}

	err = e.checkVersion(task, patch.Version)
	if err != nil {
		return nil, err
	}

	// a patch that changes nothing is a no-op success, the version stays put
	if len(changed) == 0 {
		task.SortSubtasks()
		return &TaskView{Task: *task, Capability: capability}, nil
	}

	patch.apply(task)

	err = e.persist(ctx, task)
	if err != nil {
		return nil, err
	}

	err = e.decorate(ctx, task)
	if err != nil {
		return nil, err
	}

	task.SortSubtasks()

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// DeleteTask soft-deletes the task into the recycle bin
func (e *TaskEngine) DeleteTask(ctx context.Context, actor actors.Actor, taskID string, clientVersion *int64) error {
	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return err
	}

	if task.IsLocked {
		return apperrors.NewPeriodLocked("the task belongs to a closed accounting period")
	}

	capability := ResolveCapability(actor, task)
	if !capability.CanDelete {
		return apperrors.NewPermissionDenied("you may not delete this task")
	}

	err = e.checkVersion(task, clientVersion)
	if err != nil {
		return err
	}

	err = e.Tasks.Delete(ctx, task, task.Version)
	if errors.Is(err, ErrVersionMismatch) {
		return apperrors.Wrap(err, apperrors.KindConflict, "task was modified concurrently, reload and resubmit")
	}

	return err
}

// AddSubtask appends a subtask at the end of the ordering
func (e *TaskEngine) AddSubtask(ctx context.Context, actor actors.Actor, taskID string, payload *SubtaskCreate) (*TaskView, error) {
	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	capability := ResolveCapability(actor, task)
	if !capability.CanUpdate {
		return nil, apperrors.NewPermissionDenied("you may not add subtasks to this task")
	}

	err = ValidateSubtaskDueDate(payload.DueAt, task.DueAt)
	if err != nil {
		return nil, err
	}

	err = e.checkVersion(task, payload.Version)
	if err != nil {
		return nil, err
	}

	task.Subtasks = append(task.Subtasks, Subtask{
		ID:        primitive.NewObjectID(),
		Name:      payload.Name,
		Status:    StatusToDo,
		CreatedBy: actor.ID,
		CreatedAt: time.Now(),
		DueAt:     payload.DueAt,
		Position:  len(task.Subtasks),
	})
	task.NormalizeSubtaskPositions()

	err = e.persist(ctx, task)
	if err != nil {
		return nil, err
	}

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// UpdateSubtask applies a patch to one subtask
func (e *TaskEngine) UpdateSubtask(ctx context.Context, actor actors.Actor, taskID string, subtaskID string, patch *SubtaskPatch) (*TaskView, error) {
	subtaskObjectID, err := primitive.ObjectIDFromHex(subtaskID)
	if err != nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsLocked {
		return nil, apperrors.NewPeriodLocked("the task belongs to a closed accounting period")
	}

	subtask := task.FindSubtask(subtaskObjectID)
	if subtask == nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	if !CanManageSubtask(actor, subtask) {
		return nil, apperrors.NewPermissionDenied("only the subtask creator or a project manager may edit it")
	}

	if patch.Status != nil && !patch.Status.IsValidForSubtask() {
		return nil, apperrors.NewValidation("%q is not a valid subtask status", *patch.Status)
	}

	if patch.DueAt != nil {
		err = ValidateSubtaskDueDate(*patch.DueAt, task.DueAt)
		if err != nil {
			return nil, err
		}
	}

	err = e.checkVersion(task, patch.Version)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		subtask.Name = *patch.Name
	}
	if patch.Status != nil {
		subtask.Status = *patch.Status
	}
	if patch.DueAt != nil {
		subtask.DueAt = *patch.DueAt
	}

	err = e.persist(ctx, task)
	if err != nil {
		return nil, err
	}

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// DeleteSubtask removes a subtask; a subtask that has time logged against it stays
func (e *TaskEngine) DeleteSubtask(ctx context.Context, actor actors.Actor, taskID string, subtaskID string, clientVersion *int64) (*TaskView, error) {
	subtaskObjectID, err := primitive.ObjectIDFromHex(subtaskID)
	if err != nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsLocked {
		return nil, apperrors.NewPeriodLocked("the task belongs to a closed accounting period")
	}

	subtask := task.FindSubtask(subtaskObjectID)
	if subtask == nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	if !CanManageSubtask(actor, subtask) {
		return nil, apperrors.NewPermissionDenied("only the subtask creator or a project manager may delete it")
	}

	if subtask.HasLogs {
		return nil, apperrors.NewValidation("subtask has time logged against it and cannot be deleted")
	}

	err = e.checkVersion(task, clientVersion)
	if err != nil {
		return nil, err
	}

	task.RemoveSubtask(subtaskObjectID)

	err = e.persist(ctx, task)
	if err != nil {
		return nil, err
	}

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// MoveSubtask reorders a subtask one step up or down among its siblings
func (e *TaskEngine) MoveSubtask(ctx context.Context, actor actors.Actor, taskID string, subtaskID string, direction ReorderDirection, clientVersion *int64) (*TaskView, error) {
	subtaskObjectID, err := primitive.ObjectIDFromHex(subtaskID)
	if err != nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsLocked {
		return nil, apperrors.NewPeriodLocked("the task belongs to a closed accounting period")
	}

	subtask := task.FindSubtask(subtaskObjectID)
	if subtask == nil {
		return nil, apperrors.NewNotFound("subtask does not exist")
	}

	if !CanManageSubtask(actor, subtask) {
		return nil, apperrors.NewPermissionDenied("only the subtask creator or a project manager may reorder it")
	}

	err = e.checkVersion(task, clientVersion)
	if err != nil {
		return nil, err
	}

	moved, err := task.ReorderSubtask(subtaskObjectID, direction)
	if err != nil {
		return nil, err
	}

	if moved {
		err = e.persist(ctx, task)
		if err != nil {
			return nil, err
		}
	}

	return &TaskView{Task: *task, Capability: ResolveCapability(actor, task)}, nil
}

// RecordTime runs the accounting check sequence and persists a new entry
func (e *TaskEngine) RecordTime(ctx context.Context, actor actors.Actor, taskID string, payload *TimeLogCreate) (*TimeLog, error) {
	lock, err := e.lockTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	subtask, err := e.Accountant.CheckRecord(ctx, task, payload.SubtaskID, payload.WorkDate, payload.Minutes)
	if err != nil {
		return nil, err
	}

	entry := &TimeLog{
		OrganizationID: task.OrganizationID,
		ProjectID:      task.ProjectID,
		TaskID:         task.ID,
		RecordedBy:     actor.ID,
		WorkDate:       payload.WorkDate,
		Minutes:        payload.Minutes,
		Note:           payload.Note,
		Status:         TimeLogStatusPending,
	}
	if subtask != nil {
		entry.SubtaskID = &subtask.ID
	}

	err = e.TimeLogs.Add(ctx, entry)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// UpdateTimeLog edits an existing entry under the same gates as recording
func (e *TaskEngine) UpdateTimeLog(ctx context.Context, actor actors.Actor, timeLogID string, patch *TimeLogPatch) (*TimeLog, error) {
	entry, err := e.TimeLogs.FindByID(ctx, timeLogID, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, "time log entry does not exist")
	}

	lock, err := e.lockTask(ctx, entry.TaskID.Hex())
	if err != nil {
		return nil, err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, entry.TaskID.Hex())
	if err != nil {
		return nil, err
	}

	if entry.RecordedBy != actor.ID && !actor.Role.IsManagerTier() {
		return nil, apperrors.NewPermissionDenied("only the recorder or a project manager may edit a time log entry")
	}

	err = e.Accountant.CheckEdit(ctx, task, entry, patch.WorkDate, patch.Minutes)
	if err != nil {
		return nil, err
	}

	if patch.WorkDate != nil {
		entry.WorkDate = *patch.WorkDate
	}
	if patch.Minutes != nil {
		entry.Minutes = *patch.Minutes
	}
	if patch.Note != nil {
		entry.Note = *patch.Note
	}

	err = e.TimeLogs.Update(ctx, entry)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// DeleteTimeLog removes an entry under the same gates as recording
func (e *TaskEngine) DeleteTimeLog(ctx context.Context, actor actors.Actor, timeLogID string) error {
	entry, err := e.TimeLogs.FindByID(ctx, timeLogID, actor.OrganizationID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindNotFound, "time log entry does not exist")
	}

	lock, err := e.lockTask(ctx, entry.TaskID.Hex())
	if err != nil {
		return err
	}
	defer e.releaseLock(ctx, lock)

	task, err := e.loadTask(ctx, actor, entry.TaskID.Hex())
	if err != nil {
		return err
	}

	if entry.RecordedBy != actor.ID && !actor.Role.IsManagerTier() {
		return apperrors.NewPermissionDenied("only the recorder or a project manager may delete a time log entry")
	}

	err = e.Accountant.CheckEdit(ctx, task, entry, nil, nil)
	if err != nil {
		return err
	}

	return e.TimeLogs.Delete(ctx, timeLogID, actor.OrganizationID)
}

// SetPeriodLock creates a lock window; manager tier only
func (e *TaskEngine) SetPeriodLock(ctx context.Context, actor actors.Actor, projectID string, period WorkPeriodLock) (*WorkPeriodLock, error) {
	if !actor.Role.IsManagerTier() {
		return nil, apperrors.NewPermissionDenied("only a project manager may manage period locks")
	}

	projectObjectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, apperrors.NewNotFound("project does not exist")
	}

	period.OrganizationID = actor.OrganizationID
	period.ProjectID = projectObjectID
	if period.Locked {
		period.LockedAt = time.Now()
		period.LockedBy = actor.ID
	}

	err = e.Registry.SetLock(ctx, &period)
	if err != nil {
		return nil, err
	}

	return &period, nil
}

// TogglePeriodLock flips an existing window between locked and open; manager tier only
func (e *TaskEngine) TogglePeriodLock(ctx context.Context, actor actors.Actor, projectID string, lockID string, locked bool) (*WorkPeriodLock, error) {
	if !actor.Role.IsManagerTier() {
		return nil, apperrors.NewPermissionDenied("only a project manager may manage period locks")
	}

	projectObjectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, apperrors.NewNotFound("project does not exist")
	}

	return e.Registry.Toggle(ctx, projectObjectID, lockID, locked, actor.ID)
}

// ListPeriodLocks lists the lock windows of a project
func (e *TaskEngine) ListPeriodLocks(ctx context.Context, actor actors.Actor, projectID string) ([]WorkPeriodLock, error) {
	projectObjectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, apperrors.NewNotFound("project does not exist")
	}

	return e.Registry.FindAll(ctx, projectObjectID)
}

// changedFields lists the patch fields that are present and differ from the task
func (p *TaskPatch) changedFields(task *Task) []string {
	var changed []string

	if p.Name != nil && *p.Name != task.Name {
		changed = append(changed, FieldName)
	}
	if p.Description != nil && *p.Description != task.Description {
		changed = append(changed, FieldDescription)
	}
	if p.Status != nil && *p.Status != task.Status {
		changed = append(changed, FieldStatus)
	}
	if p.Priority != nil && *p.Priority != task.Priority {
		changed = append(changed, FieldPriority)
	}
	if p.Type != nil && *p.Type != task.Type {
		changed = append(changed, FieldType)
	}
	if p.StartDate != nil && !p.StartDate.Equal(task.StartDate) {
		changed = append(changed, FieldStartDate)
	}
	if p.DueAt != nil && !p.DueAt.Equal(task.DueAt) {
		changed = append(changed, FieldDueAt)
	}
	if p.Assignees != nil && !objectIDsEqual(*p.Assignees, task.Assignees) {
		changed = append(changed, FieldAssignees)
	}
	if p.Tags != nil && !objectIDsEqual(*p.Tags, task.Tags) {
		changed = append(changed, FieldTags)
	}

	return changed
}

func (p *TaskPatch) apply(task *Task) {
	if p.Name != nil {
		task.Name = *p.Name
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Type != nil {
		task.Type = *p.Type
	}
	if p.StartDate != nil {
		task.StartDate = *p.StartDate
	}
	if p.DueAt != nil {
		task.DueAt = *p.DueAt
	}
	if p.Assignees != nil {
		task.Assignees = *p.Assignees
	}
	if p.Tags != nil {
		task.Tags = *p.Tags
	}
}

func objectIDsEqual(a []primitive.ObjectID, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	for index := range a {
		if a[index] != b[index] {
			return false
		}
	}
	return true
}
