package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/date"
	"github.com/worklane-app/worklane-backend/pkg/locking"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type engineFixture struct {
	engine   *TaskEngine
	tasks    *MockTaskRepository
	timeLogs *MockTimeLogRepository
	locks    *MockPeriodLockRepository

	org       primitive.ObjectID
	projectID primitive.ObjectID
	owner     actors.Actor
	member    actors.Actor
	manager   actors.Actor
}

func newEngineFixture() *engineFixture {
	fixture := &engineFixture{
		tasks:     &MockTaskRepository{},
		timeLogs:  &MockTimeLogRepository{},
		locks:     &MockPeriodLockRepository{},
		org:       primitive.NewObjectID(),
		projectID: primitive.NewObjectID(),
	}

	fixture.owner = actors.Actor{ID: primitive.NewObjectID(), OrganizationID: fixture.org, Role: actors.RoleMember}
	fixture.member = actors.Actor{ID: primitive.NewObjectID(), OrganizationID: fixture.org, Role: actors.RoleMember}
	fixture.manager = actors.Actor{ID: primitive.NewObjectID(), OrganizationID: fixture.org, Role: actors.RoleProjectManager}

	fixture.engine = NewTaskEngine(fixture.tasks, fixture.timeLogs, fixture.locks, locking.NewLockerMemory(), logger.Logger{})

	return fixture
}

func (f *engineFixture) seedTask(t *testing.T, mutate func(*Task)) *Task {
	t.Helper()

	task := &Task{
		OrganizationID: f.org,
		ProjectID:      f.projectID,
		Name:           "Ship the release",
		Status:         StatusToDo,
		CreatedBy:      f.owner.ID,
		DueAt:          time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(task)
	}

	require.NoError(t, f.tasks.Add(context.Background(), task))
	return task
}

func (f *engineFixture) lockPeriod(t *testing.T, start time.Time, end time.Time) {
	t.Helper()

	require.NoError(t, f.locks.Add(context.Background(), &WorkPeriodLock{
		OrganizationID: f.org,
		ProjectID:      f.projectID,
		Period:         date.NewSpan(start, end),
		Locked:         true,
	}))
}

func versionPtr(v int64) *int64    { return &v }
func statusPtr(s Status) *Status   { return &s }
func stringPtr(s string) *string   { return &s }
func intPtr(i int) *int            { return &i }
func datePtr(d time.Time) *time.Time { return &d }

func TestTaskEngine_UpdateTask_StaleVersionConflicts(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	// two clients load the task at the same version
	observed := task.Version

	viewA, err := fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
		Status:  statusPtr(StatusInProgress),
		Version: versionPtr(observed),
	})
	require.NoError(t, err)
	assert.Equal(t, observed+1, viewA.Version, "version advances by exactly 1")
	assert.Equal(t, StatusInProgress, viewA.Status)

	// the second client still carries the stale token
	_, err = fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
		Description: stringPtr("late to the party"),
		Version:     versionPtr(observed),
	})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	view, err := fixture.engine.GetTask(ctx, fixture.owner, task.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, observed+1, view.Version, "the losing write must not touch the aggregate")
	assert.Empty(t, view.Description)
}

func TestTaskEngine_UpdateTask_ConcurrentWritersOneWins(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	observed := task.Version
	results := make(chan error, 2)

	var wg sync.WaitGroup
	for _, description := range []string{"writer A", "writer B"} {
		wg.Add(1)
		go func(description string) {
			defer wg.Done()
			_, err := fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
				Description: stringPtr(description),
				Version:     versionPtr(observed),
			})
			results <- err
		}(description)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.KindOf(err) == apperrors.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one writer wins")
	assert.Equal(t, 1, conflicts, "the other receives a conflict")

	view, err := fixture.engine.GetTask(ctx, fixture.owner, task.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, observed+1, view.Version)
}

func TestTaskEngine_UpdateTask_IdenticalResubmitIsNoop(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	view, err := fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
		Description: stringPtr("write the changelog"),
		Version:     versionPtr(task.Version),
	})
	require.NoError(t, err)

	// resubmitting the identical patch with the fresh token succeeds without moving anything
	again, err := fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
		Description: stringPtr("write the changelog"),
		Version:     versionPtr(view.Version),
	})
	require.NoError(t, err)
	assert.Equal(t, view.Version, again.Version)

	// while the stale token keeps conflicting
	_, err = fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{
		Description: stringPtr("write the changelog"),
		Version:     versionPtr(task.Version),
	})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestTaskEngine_UpdateTask_FieldCapability(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	// the owning creator may touch the description but not structural fields
	_, err := fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{Priority: intPtr(5)})
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	_, err = fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{Description: stringPtr("ours")})
	assert.NoError(t, err)

	// an unrelated member may not update at all
	_, err = fixture.engine.UpdateTask(ctx, fixture.member, task.ID.Hex(), &TaskPatch{Description: stringPtr("theirs")})
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	// a manager may touch everything
	_, err = fixture.engine.UpdateTask(ctx, fixture.manager, task.ID.Hex(), &TaskPatch{Priority: intPtr(5)})
	assert.NoError(t, err)
}

func TestTaskEngine_DoneTransitionThenLogging(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	workDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// logging against an open task without subtasks is not eligible
	_, err := fixture.engine.RecordTime(ctx, fixture.owner, task.ID.Hex(), &TimeLogCreate{WorkDate: workDate, Minutes: 60})
	assert.Equal(t, apperrors.KindNotEligible, apperrors.KindOf(err))

	// the owning creator may not be the one to first mark it done
	_, err = fixture.engine.UpdateTask(ctx, fixture.owner, task.ID.Hex(), &TaskPatch{Status: statusPtr(StatusDone)})
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	// a manager may
	view, err := fixture.engine.UpdateTask(ctx, fixture.manager, task.ID.Hex(), &TaskPatch{Status: statusPtr(StatusDone)})
	require.NoError(t, err)
	assert.True(t, view.Capability.CanLogTime)

	entry, err := fixture.engine.RecordTime(ctx, fixture.owner, task.ID.Hex(), &TimeLogCreate{WorkDate: workDate, Minutes: 60, Note: "wrap up"})
	require.NoError(t, err)
	assert.Equal(t, 60, entry.Minutes)
	assert.Equal(t, TimeLogStatusPending, entry.Status)

	// reopening revokes direct logging eligibility again
	_, err = fixture.engine.UpdateTask(ctx, fixture.manager, task.ID.Hex(), &TaskPatch{Status: statusPtr(StatusInProgress)})
	require.NoError(t, err)

	_, err = fixture.engine.RecordTime(ctx, fixture.owner, task.ID.Hex(), &TimeLogCreate{WorkDate: workDate, Minutes: 30})
	assert.Equal(t, apperrors.KindNotEligible, apperrors.KindOf(err))

	// the earlier entry stays as recorded history
	view, err = fixture.engine.GetTask(ctx, fixture.owner, task.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 60, view.TotalLoggedMinutes)
}

func TestTaskEngine_RecordTime_SubtaskPrimacy(t *testing.T) {
	fixture := newEngineFixture()
	doneSubtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: primitive.NewObjectID()}
	openSubtask := Subtask{ID: primitive.NewObjectID(), Name: "S2", Status: StatusToDo, CreatedBy: primitive.NewObjectID(), Position: 1}
	task := fixture.seedTask(t, func(task *Task) {
		task.Status = StatusDone
		task.Subtasks = []Subtask{doneSubtask, openSubtask}
	})
	ctx := context.Background()

	workDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// a task with subtasks rejects direct logs whatever its status
	_, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{WorkDate: workDate, Minutes: 90})
	assert.Equal(t, apperrors.KindNotEligible, apperrors.KindOf(err))

	// the open subtask rejects logs
	_, err = fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{SubtaskID: &openSubtask.ID, WorkDate: workDate, Minutes: 90})
	assert.Equal(t, apperrors.KindNotEligible, apperrors.KindOf(err))

	// the done subtask takes the 90 minutes
	entry, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{SubtaskID: &doneSubtask.ID, WorkDate: workDate, Minutes: 90})
	require.NoError(t, err)
	require.NotNil(t, entry.SubtaskID)
	assert.Equal(t, doneSubtask.ID, *entry.SubtaskID)
}

func TestTaskEngine_RecordTime_PeriodLock(t *testing.T) {
	fixture := newEngineFixture()
	subtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: primitive.NewObjectID()}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtask}
	})
	fixture.lockPeriod(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
		SubtaskID: &subtask.ID,
		WorkDate:  time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Minutes:   45,
	})
	assert.Equal(t, apperrors.KindPeriodLocked, apperrors.KindOf(err))

	_, err = fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
		SubtaskID: &subtask.ID,
		WorkDate:  time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Minutes:   45,
	})
	assert.NoError(t, err)
}

func TestTaskEngine_TimeLogEdit_LockedPeriodFreezesEntry(t *testing.T) {
	fixture := newEngineFixture()
	subtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: primitive.NewObjectID()}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtask}
	})
	ctx := context.Background()

	entry, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
		SubtaskID: &subtask.ID,
		WorkDate:  time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Minutes:   45,
	})
	require.NoError(t, err)

	// the period closes afterwards
	fixture.lockPeriod(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC))

	_, err = fixture.engine.UpdateTimeLog(ctx, fixture.member, entry.ID.Hex(), &TimeLogPatch{Minutes: intPtr(60)})
	assert.Equal(t, apperrors.KindPeriodLocked, apperrors.KindOf(err))

	err = fixture.engine.DeleteTimeLog(ctx, fixture.member, entry.ID.Hex())
	assert.Equal(t, apperrors.KindPeriodLocked, apperrors.KindOf(err))
}

func TestTaskEngine_TimeLogEdit_Permissions(t *testing.T) {
	fixture := newEngineFixture()
	subtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: primitive.NewObjectID()}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtask}
	})
	ctx := context.Background()

	entry, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
		SubtaskID: &subtask.ID,
		WorkDate:  time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		Minutes:   45,
	})
	require.NoError(t, err)

	// another member may not edit someone else's entry
	_, err = fixture.engine.UpdateTimeLog(ctx, fixture.owner, entry.ID.Hex(), &TimeLogPatch{Minutes: intPtr(60)})
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	// the recorder and the manager may
	_, err = fixture.engine.UpdateTimeLog(ctx, fixture.member, entry.ID.Hex(), &TimeLogPatch{Minutes: intPtr(60)})
	assert.NoError(t, err)
	_, err = fixture.engine.UpdateTimeLog(ctx, fixture.manager, entry.ID.Hex(), &TimeLogPatch{Note: stringPtr("rounded up")})
	assert.NoError(t, err)
}

func TestTaskEngine_SubtaskDelete_HasLogsGuard(t *testing.T) {
	fixture := newEngineFixture()
	subtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: fixture.member.ID}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtask}
	})
	ctx := context.Background()

	entry, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
		SubtaskID: &subtask.ID,
		WorkDate:  time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		Minutes:   30,
	})
	require.NoError(t, err)

	_, err = fixture.engine.DeleteSubtask(ctx, fixture.member, task.ID.Hex(), subtask.ID.Hex(), nil)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "a subtask with logs may not be deleted")

	require.NoError(t, fixture.engine.DeleteTimeLog(ctx, fixture.member, entry.ID.Hex()))

	view, err := fixture.engine.DeleteSubtask(ctx, fixture.member, task.ID.Hex(), subtask.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Empty(t, view.Subtasks)
}

func TestTaskEngine_Subtask_Permissions(t *testing.T) {
	fixture := newEngineFixture()
	subtask := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusToDo, CreatedBy: fixture.member.ID}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtask}
	})
	ctx := context.Background()

	// an unrelated member may not edit a subtask it did not create
	_, err := fixture.engine.UpdateSubtask(ctx, fixture.owner, task.ID.Hex(), subtask.ID.Hex(), &SubtaskPatch{Status: statusPtr(StatusDone)})
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	// its creator may, and subtask completion needs no manager
	_, err = fixture.engine.UpdateSubtask(ctx, fixture.member, task.ID.Hex(), subtask.ID.Hex(), &SubtaskPatch{Status: statusPtr(StatusDone)})
	assert.NoError(t, err)

	// so may the manager
	_, err = fixture.engine.UpdateSubtask(ctx, fixture.manager, task.ID.Hex(), subtask.ID.Hex(), &SubtaskPatch{Name: stringPtr("S1 refined")})
	assert.NoError(t, err)

	// a subtask cannot be blocked
	_, err = fixture.engine.UpdateSubtask(ctx, fixture.member, task.ID.Hex(), subtask.ID.Hex(), &SubtaskPatch{Status: statusPtr(StatusBlocked)})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestTaskEngine_AddSubtask_DueDateGuard(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	_, err := fixture.engine.AddSubtask(ctx, fixture.owner, task.ID.Hex(), &SubtaskCreate{
		Name:  "after the deadline",
		DueAt: task.DueAt.AddDate(0, 0, 1),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	view, err := fixture.engine.AddSubtask(ctx, fixture.owner, task.ID.Hex(), &SubtaskCreate{
		Name:  "in time",
		DueAt: task.DueAt.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	require.Len(t, view.Subtasks, 1)
	assert.Equal(t, 0, view.Subtasks[0].Position)
	assert.Equal(t, StatusToDo, view.Subtasks[0].Status)

	// shrinking the parent due date below a subtask due date is rejected too
	_, err = fixture.engine.UpdateTask(ctx, fixture.manager, task.ID.Hex(), &TaskPatch{
		DueAt: datePtr(task.DueAt.AddDate(0, 0, -10)),
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestTaskEngine_Rollups(t *testing.T) {
	fixture := newEngineFixture()
	subtaskOne := Subtask{ID: primitive.NewObjectID(), Name: "S1", Status: StatusDone, CreatedBy: fixture.member.ID}
	subtaskTwo := Subtask{ID: primitive.NewObjectID(), Name: "S2", Status: StatusDone, CreatedBy: fixture.member.ID, Position: 1}
	task := fixture.seedTask(t, func(task *Task) {
		task.Subtasks = []Subtask{subtaskOne, subtaskTwo}
	})
	ctx := context.Background()

	workDate := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	for _, record := range []struct {
		target  primitive.ObjectID
		minutes int
	}{
		{subtaskOne.ID, 30},
		{subtaskOne.ID, 45},
		{subtaskTwo.ID, 15},
	} {
		target := record.target
		_, err := fixture.engine.RecordTime(ctx, fixture.member, task.ID.Hex(), &TimeLogCreate{
			SubtaskID: &target, WorkDate: workDate, Minutes: record.minutes,
		})
		require.NoError(t, err)
	}

	view, err := fixture.engine.GetTask(ctx, fixture.member, task.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 90, view.TotalLoggedMinutes)
	assert.Equal(t, 75, view.Subtasks[0].LoggedMinutes)
	assert.True(t, view.Subtasks[0].HasLogs)
	assert.Equal(t, 15, view.Subtasks[1].LoggedMinutes)
}

func TestTaskEngine_DeleteTask(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	// the owning creator has no delete capability
	err := fixture.engine.DeleteTask(ctx, fixture.owner, task.ID.Hex(), nil)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	err = fixture.engine.DeleteTask(ctx, fixture.manager, task.ID.Hex(), nil)
	require.NoError(t, err)

	_, err = fixture.engine.GetTask(ctx, fixture.manager, task.ID.Hex())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestTaskEngine_TenantIsolation(t *testing.T) {
	fixture := newEngineFixture()
	task := fixture.seedTask(t, nil)
	ctx := context.Background()

	intruder := actors.Actor{ID: primitive.NewObjectID(), OrganizationID: primitive.NewObjectID(), Role: actors.RoleOrgAdmin}

	_, err := fixture.engine.GetTask(ctx, intruder, task.ID.Hex())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err), "foreign tenants see not found, not forbidden")

	_, err = fixture.engine.UpdateTask(ctx, intruder, task.ID.Hex(), &TaskPatch{Description: stringPtr("oops")})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestTaskEngine_PeriodLock_ManagerOnly(t *testing.T) {
	fixture := newEngineFixture()
	ctx := context.Background()

	period := WorkPeriodLock{
		Period: date.NewSpan(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)),
		Locked: true,
	}

	_, err := fixture.engine.SetPeriodLock(ctx, fixture.member, fixture.projectID.Hex(), period)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	lock, err := fixture.engine.SetPeriodLock(ctx, fixture.manager, fixture.projectID.Hex(), period)
	require.NoError(t, err)
	assert.Equal(t, fixture.manager.ID, lock.LockedBy)

	_, err = fixture.engine.TogglePeriodLock(ctx, fixture.member, fixture.projectID.Hex(), lock.ID.Hex(), false)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	reopened, err := fixture.engine.TogglePeriodLock(ctx, fixture.manager, fixture.projectID.Hex(), lock.ID.Hex(), false)
	require.NoError(t, err)
	assert.False(t, reopened.Locked)

	locks, err := fixture.engine.ListPeriodLocks(ctx, fixture.member, fixture.projectID.Hex())
	require.NoError(t, err)
	assert.Len(t, locks, 1)
}
