package tasks

import (
	"sort"
	"time"

	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/date"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReorderDirection names the two ways a subtask can be moved among its siblings
type ReorderDirection string

const (
	// DirectionUp moves a subtask one position towards the front
	DirectionUp ReorderDirection = "UP"
	// DirectionDown moves a subtask one position towards the back
	DirectionDown ReorderDirection = "DOWN"
)

// CheckStatusTransition validates one step of the task state machine. Every
// state is reachable from every other, DONE included; the only guard is that
// the transition first marking a task DONE is reserved for the manager tier.
func CheckStatusTransition(current Status, next Status, actor actors.Actor) error {
	if !next.IsValid() {
		return apperrors.NewValidation("%q is not a valid task status", next)
	}

	if next == StatusDone && current != StatusDone && !actor.Role.IsManagerTier() {
		return apperrors.NewPermissionDenied("only a project manager may mark a task as done")
	}

	return nil
}

// ValidateSubtaskDueDate enforces that a subtask never becomes due after its parent
func ValidateSubtaskDueDate(subtaskDueAt time.Time, taskDueAt time.Time) error {
	if subtaskDueAt.IsZero() || taskDueAt.IsZero() {
		return nil
	}

	if date.Day(subtaskDueAt).After(date.Day(taskDueAt)) {
		return apperrors.NewValidation("subtask due date %s is after the task due date %s",
			subtaskDueAt.Format("2006-01-02"), taskDueAt.Format("2006-01-02"))
	}

	return nil
}

// CanManageSubtask reports whether an actor may edit, delete or reorder a
// subtask: only its creator and the manager tier can, never unrelated members
func CanManageSubtask(actor actors.Actor, subtask *Subtask) bool {
	return actor.Role.IsManagerTier() || subtask.CreatedBy == actor.ID
}

// SortSubtasks orders the subtasks by their sort position
func (t *Task) SortSubtasks() {
	sort.SliceStable(t.Subtasks, func(i, j int) bool {
		return t.Subtasks[i].Position < t.Subtasks[j].Position
	})
}

// NormalizeSubtaskPositions reassigns positions so they form a dense zero-based
// sequence in the current relative order
func (t *Task) NormalizeSubtaskPositions() {
	t.SortSubtasks()
	for index := range t.Subtasks {
		t.Subtasks[index].Position = index
	}
}

// ReorderSubtask swaps the subtask with its adjacent sibling in the given
// direction and reports whether anything moved; at either boundary it is a no-op
func (t *Task) ReorderSubtask(subtaskID primitive.ObjectID, direction ReorderDirection) (bool, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return false, apperrors.NewValidation("%q is not a valid reorder direction", direction)
	}

	t.NormalizeSubtaskPositions()

	index := -1
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			index = i
			break
		}
	}
	if index == -1 {
		return false, apperrors.NewNotFound("subtask does not exist")
	}

	neighbor := index - 1
	if direction == DirectionDown {
		neighbor = index + 1
	}

	if neighbor < 0 || neighbor >= len(t.Subtasks) {
		return false, nil
	}

	t.Subtasks[index].Position, t.Subtasks[neighbor].Position =
		t.Subtasks[neighbor].Position, t.Subtasks[index].Position
	t.SortSubtasks()

	return true, nil
}

// RemoveSubtask deletes a subtask from the aggregate and keeps positions dense
func (t *Task) RemoveSubtask(subtaskID primitive.ObjectID) bool {
	for index := range t.Subtasks {
		if t.Subtasks[index].ID == subtaskID {
			t.Subtasks = append(t.Subtasks[:index], t.Subtasks[index+1:]...)
			t.NormalizeSubtaskPositions()
			return true
		}
	}
	return false
}
