package tasks

import (
	"encoding/json"

	"github.com/worklane-app/worklane-backend/pkg/actors"
)

// Writable task field names as the capability contract exposes them
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldComment     = "comment"
	FieldPriority    = "priority"
	FieldType        = "type"
	FieldStartDate   = "startDate"
	FieldDueAt       = "dueAt"
	FieldAssignees   = "assignees"
	FieldTags        = "tags"
)

// FieldSet is either the wildcard over all task fields or an explicit subset
type FieldSet struct {
	All    bool
	Fields []string
}

// AllFields returns the wildcard field set
func AllFields() FieldSet {
	return FieldSet{All: true}
}

// NewFieldSet returns an explicit field set
func NewFieldSet(fields ...string) FieldSet {
	return FieldSet{Fields: fields}
}

// Allows checks whether a field is writable under this set
func (f FieldSet) Allows(field string) bool {
	if f.All {
		return true
	}
	for _, allowed := range f.Fields {
		if allowed == field {
			return true
		}
	}
	return false
}

// MarshalJSON renders the wildcard as ["*"] and the subset as a plain list
func (f FieldSet) MarshalJSON() ([]byte, error) {
	if f.All {
		return json.Marshal([]string{"*"})
	}
	return json.Marshal(f.Fields)
}

// Capability is the computed set of permitted mutations for one actor on one
// task; it is never persisted and resolving it has no side effects
type Capability struct {
	CanUpdate     bool     `json:"canUpdate"`
	CanDelete     bool     `json:"canDelete"`
	CanLogTime    bool     `json:"canLogTime"`
	AllowedFields FieldSet `json:"allowedFields"`
}

// ResolveCapability computes what an actor may do to a task. Role precedence is
// manager tier over owning creator over everyone else. The resolver never
// errors; missing rights simply come back as false or an empty field set, and
// the engine rejects forbidden operations with a permission error.
func ResolveCapability(actor actors.Actor, task *Task) Capability {
	capability := Capability{}

	isOwner := task.CreatedBy == actor.ID

	switch {
	case actor.Role.IsManagerTier():
		capability.CanUpdate = !task.IsLocked
		capability.CanDelete = !task.IsLocked
		capability.AllowedFields = AllFields()
	case isOwner:
		capability.CanUpdate = !task.IsLocked
		capability.AllowedFields = NewFieldSet(FieldDescription, FieldStatus, FieldComment)
	default:
		capability.AllowedFields = NewFieldSet(FieldComment)
	}

	capability.CanLogTime = task.Status == StatusDone && !task.IsLocked

	return capability
}
