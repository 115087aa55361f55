package tasks

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the closed set of states a task can be in
type Status string

const (
	// StatusToDo is the initial state of every task
	StatusToDo Status = "TODO"
	// StatusInProgress marks a task as being worked on
	StatusInProgress Status = "IN_PROGRESS"
	// StatusDone marks a task as complete; it is re-enterable, not terminal
	StatusDone Status = "DONE"
	// StatusBlocked marks a task as stuck; reachable from and back to every other state
	StatusBlocked Status = "BLOCKED"
)

// IsValid checks whether the status is part of the task state machine
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// IsValidForSubtask checks whether the status is allowed on a subtask; subtasks cannot be blocked
func (s Status) IsValidForSubtask() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is the model for a task, the unit of assignable work within a project.
// Subtasks are embedded in the task document so the whole aggregate is read and
// written as one.
type Task struct {
	ID             primitive.ObjectID   `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID   `bson:"organizationId" json:"organizationId"`
	ProjectID      primitive.ObjectID   `bson:"projectId" json:"projectId" validate:"required"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	LastModifiedAt time.Time            `bson:"lastModifiedAt" json:"lastModifiedAt"`
	Name           string               `bson:"name" json:"name" validate:"required"`
	Description    string               `bson:"description" json:"description"`
	Status         Status               `bson:"status" json:"status"`
	Priority       int                  `bson:"priority" json:"priority"`
	Type           string               `bson:"type" json:"type"`
	StartDate      time.Time            `bson:"startDate" json:"startDate"`
	DueAt          time.Time            `bson:"dueAt" json:"dueAt"`
	CreatedBy      primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	Assignees      []primitive.ObjectID `bson:"assignees" json:"assignees"`
	Tags           []primitive.ObjectID `bson:"tags" json:"tags"`
	Subtasks       []Subtask            `bson:"subtasks" json:"subtasks"`
	Deleted        bool                 `bson:"deleted" json:"-"`

	// Version is the monotonic token for optimistic concurrency; bumped by the
	// repository in the same write that applies the new field values
	Version int64 `bson:"version" json:"version"`

	// IsLocked and TotalLoggedMinutes are projections computed on read, never persisted
	IsLocked           bool `bson:"-" json:"isLocked"`
	TotalLoggedMinutes int  `bson:"-" json:"totalLoggedMinutes"`
}

// Subtask is an ordered child work item of a task, the unit time is normally logged against
type Subtask struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Status    Status             `bson:"status" json:"status"`
	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	DueAt     time.Time          `bson:"dueAt" json:"dueAt"`

	// Position is a dense zero-based sort position, unique within the task
	Position int `bson:"position" json:"position"`

	// HasLogs and LoggedMinutes are projections computed on read, never persisted
	HasLogs       bool `bson:"-" json:"hasLogs"`
	LoggedMinutes int  `bson:"-" json:"loggedMinutes"`
}

// TaskUpdate is the view of a task for a persisted update; it carries only the
// fields a write may set, so the repository can pin and bump the version separately
type TaskUpdate struct {
	LastModifiedAt time.Time            `bson:"lastModifiedAt"`
	Name           string               `bson:"name"`
	Description    string               `bson:"description"`
	Status         Status               `bson:"status"`
	Priority       int                  `bson:"priority"`
	Type           string               `bson:"type"`
	StartDate      time.Time            `bson:"startDate"`
	DueAt          time.Time            `bson:"dueAt"`
	Assignees      []primitive.ObjectID `bson:"assignees"`
	Tags           []primitive.ObjectID `bson:"tags"`
	Subtasks       []Subtask            `bson:"subtasks"`
	Deleted        bool                 `bson:"deleted"`
}

// UpdateView extracts the writable fields of a task
func (t *Task) UpdateView() TaskUpdate {
	return TaskUpdate{
		LastModifiedAt: t.LastModifiedAt,
		Name:           t.Name,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		Type:           t.Type,
		StartDate:      t.StartDate,
		DueAt:          t.DueAt,
		Assignees:      t.Assignees,
		Tags:           t.Tags,
		Subtasks:       t.Subtasks,
		Deleted:        t.Deleted,
	}
}

// FindSubtask returns a pointer to the subtask with the given id, or nil
func (t *Task) FindSubtask(subtaskID primitive.ObjectID) *Subtask {
	for index := range t.Subtasks {
		if t.Subtasks[index].ID == subtaskID {
			return &t.Subtasks[index]
		}
	}
	return nil
}
