package tasks

import (
	"strings"
	"testing"
	"time"

	"github.com/worklane-app/worklane-backend/pkg/actors"
	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCheckStatusTransition(t *testing.T) {
	member := actors.Actor{ID: primitive.NewObjectID(), Role: actors.RoleMember}
	manager := actors.Actor{ID: primitive.NewObjectID(), Role: actors.RoleProjectManager}

	var transitionTests = []struct {
		name     string
		current  Status
		next     Status
		actor    actors.Actor
		wantKind apperrors.Kind
	}{
		{"member starts work", StatusToDo, StatusInProgress, member, apperrors.KindUnknown},
		{"member blocks a task", StatusInProgress, StatusBlocked, member, apperrors.KindUnknown},
		{"member unblocks a task", StatusBlocked, StatusToDo, member, apperrors.KindUnknown},
		{"member may not first mark done", StatusInProgress, StatusDone, member, apperrors.KindPermissionDenied},
		{"member may not mark done from blocked", StatusBlocked, StatusDone, member, apperrors.KindPermissionDenied},
		{"manager marks done", StatusInProgress, StatusDone, manager, apperrors.KindUnknown},
		{"member reopens a done task", StatusDone, StatusInProgress, member, apperrors.KindUnknown},
		{"done stays done for a member", StatusDone, StatusDone, member, apperrors.KindUnknown},
		{"unknown status", StatusToDo, Status("ARCHIVED"), manager, apperrors.KindValidation},
	}

	for _, tt := range transitionTests {
		err := CheckStatusTransition(tt.current, tt.next, tt.actor)
		if apperrors.KindOf(err) != tt.wantKind {
			t.Errorf("%s: got %v, want kind %v", tt.name, err, tt.wantKind)
		}
	}
}

func TestValidateSubtaskDueDate(t *testing.T) {
	parentDue := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	if err := ValidateSubtaskDueDate(parentDue.AddDate(0, 0, -1), parentDue); err != nil {
		t.Errorf("earlier due date should pass: %v", err)
	}
	if err := ValidateSubtaskDueDate(parentDue, parentDue); err != nil {
		t.Errorf("same day should pass: %v", err)
	}
	if err := ValidateSubtaskDueDate(time.Time{}, parentDue); err != nil {
		t.Errorf("unset subtask due date should pass: %v", err)
	}
	if err := ValidateSubtaskDueDate(parentDue.AddDate(0, 0, 1), time.Time{}); err != nil {
		t.Errorf("unset parent due date should pass: %v", err)
	}

	err := ValidateSubtaskDueDate(parentDue.AddDate(0, 0, 3), parentDue)
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("later due date should fail validation, got %v", err)
	}
	// the error names the offending date
	if got := err.Error(); !strings.Contains(got, "2025-03-18") {
		t.Errorf("error should name the offending date, got %q", got)
	}
}

func subtasksNamed(task *Task) []string {
	task.SortSubtasks()
	names := make([]string, 0, len(task.Subtasks))
	for _, subtask := range task.Subtasks {
		names = append(names, subtask.Name)
	}
	return names
}

func namesEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTask_ReorderSubtask(t *testing.T) {
	first := Subtask{ID: primitive.NewObjectID(), Name: "first", Position: 0}
	second := Subtask{ID: primitive.NewObjectID(), Name: "second", Position: 1}
	third := Subtask{ID: primitive.NewObjectID(), Name: "third", Position: 2}
	task := &Task{Subtasks: []Subtask{first, second, third}}

	// moving the first up is a no-op at the boundary
	moved, err := task.ReorderSubtask(first.ID, DirectionUp)
	if err != nil || moved {
		t.Errorf("boundary move should be a no-op, moved=%v err=%v", moved, err)
	}
	if !namesEqual(subtasksNamed(task), []string{"first", "second", "third"}) {
		t.Errorf("order changed on a no-op: %v", subtasksNamed(task))
	}

	moved, err = task.ReorderSubtask(third.ID, DirectionUp)
	if err != nil || !moved {
		t.Fatalf("expected move, moved=%v err=%v", moved, err)
	}
	if !namesEqual(subtasksNamed(task), []string{"first", "third", "second"}) {
		t.Errorf("unexpected order after move up: %v", subtasksNamed(task))
	}

	moved, err = task.ReorderSubtask(first.ID, DirectionDown)
	if err != nil || !moved {
		t.Fatalf("expected move, moved=%v err=%v", moved, err)
	}
	if !namesEqual(subtasksNamed(task), []string{"third", "first", "second"}) {
		t.Errorf("unexpected order after move down: %v", subtasksNamed(task))
	}

	// positions stay a dense zero-based sequence
	for index, subtask := range task.Subtasks {
		if subtask.Position != index {
			t.Errorf("position at %d is %d, positions not dense", index, subtask.Position)
		}
	}

	_, err = task.ReorderSubtask(primitive.NewObjectID(), DirectionUp)
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Errorf("unknown subtask should be not found, got %v", err)
	}

	_, err = task.ReorderSubtask(first.ID, ReorderDirection("SIDEWAYS"))
	if apperrors.KindOf(err) != apperrors.KindValidation {
		t.Errorf("unknown direction should fail validation, got %v", err)
	}
}

func TestTask_RemoveSubtask(t *testing.T) {
	first := Subtask{ID: primitive.NewObjectID(), Name: "first", Position: 0}
	second := Subtask{ID: primitive.NewObjectID(), Name: "second", Position: 1}
	third := Subtask{ID: primitive.NewObjectID(), Name: "third", Position: 2}
	task := &Task{Subtasks: []Subtask{first, second, third}}

	if !task.RemoveSubtask(second.ID) {
		t.Fatal("expected removal")
	}

	if !namesEqual(subtasksNamed(task), []string{"first", "third"}) {
		t.Errorf("unexpected order after removal: %v", subtasksNamed(task))
	}
	for index, subtask := range task.Subtasks {
		if subtask.Position != index {
			t.Errorf("positions not dense after removal: %v", task.Subtasks)
		}
	}

	if task.RemoveSubtask(second.ID) {
		t.Error("removing an absent subtask should report false")
	}
}
