package tasks

import (
	"testing"

	"github.com/worklane-app/worklane-backend/pkg/actors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestResolveCapability(t *testing.T) {
	ownerID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	var capabilityTests = []struct {
		name      string
		role      actors.Role
		actorID   primitive.ObjectID
		status    Status
		locked    bool
		canUpdate bool
		canDelete bool
		canLog    bool
		allowed   []string
		denied    []string
	}{
		{
			name: "manager on an open task", role: actors.RoleProjectManager, actorID: otherID,
			status: StatusInProgress, locked: false,
			canUpdate: true, canDelete: true, canLog: false,
			allowed: []string{FieldName, FieldAssignees, FieldDueAt, FieldPriority, FieldStatus},
		},
		{
			name: "manager on a locked task", role: actors.RoleOrgAdmin, actorID: otherID,
			status: StatusDone, locked: true,
			canUpdate: false, canDelete: false, canLog: false,
			allowed: []string{FieldName},
		},
		{
			name: "owning creator on an open task", role: actors.RoleMember, actorID: ownerID,
			status: StatusToDo, locked: false,
			canUpdate: true, canDelete: false, canLog: false,
			allowed: []string{FieldDescription, FieldStatus, FieldComment},
			denied:  []string{FieldAssignees, FieldDueAt, FieldType, FieldPriority, FieldName},
		},
		{
			name: "owning creator on a locked task", role: actors.RoleMember, actorID: ownerID,
			status: StatusDone, locked: true,
			canUpdate: false, canDelete: false, canLog: false,
			allowed: []string{FieldDescription},
		},
		{
			name: "unrelated member", role: actors.RoleMember, actorID: otherID,
			status: StatusInProgress, locked: false,
			canUpdate: false, canDelete: false, canLog: false,
			allowed: []string{FieldComment},
			denied:  []string{FieldDescription, FieldStatus, FieldAssignees},
		},
		{
			name: "done and open allows logging for everyone", role: actors.RoleMember, actorID: otherID,
			status: StatusDone, locked: false,
			canUpdate: false, canDelete: false, canLog: true,
			allowed: []string{FieldComment},
		},
		{
			name: "sys admin is manager tier", role: actors.RoleSysAdmin, actorID: otherID,
			status: StatusDone, locked: false,
			canUpdate: true, canDelete: true, canLog: true,
			allowed: []string{FieldTags},
		},
	}

	for _, tt := range capabilityTests {
		task := &Task{CreatedBy: ownerID, Status: tt.status, IsLocked: tt.locked}
		actor := actors.Actor{ID: tt.actorID, Role: tt.role}

		capability := ResolveCapability(actor, task)

		if capability.CanUpdate != tt.canUpdate {
			t.Errorf("%s: CanUpdate = %v, want %v", tt.name, capability.CanUpdate, tt.canUpdate)
		}
		if capability.CanDelete != tt.canDelete {
			t.Errorf("%s: CanDelete = %v, want %v", tt.name, capability.CanDelete, tt.canDelete)
		}
		if capability.CanLogTime != tt.canLog {
			t.Errorf("%s: CanLogTime = %v, want %v", tt.name, capability.CanLogTime, tt.canLog)
		}
		for _, field := range tt.allowed {
			if !capability.AllowedFields.Allows(field) {
				t.Errorf("%s: field %q should be allowed", tt.name, field)
			}
		}
		for _, field := range tt.denied {
			if capability.AllowedFields.Allows(field) {
				t.Errorf("%s: field %q should not be allowed", tt.name, field)
			}
		}
	}
}

func TestFieldSet_MarshalJSON(t *testing.T) {
	all, err := AllFields().MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(all) != `["*"]` {
		t.Errorf(`wildcard marshals to %s, want ["*"]`, all)
	}

	subset, err := NewFieldSet(FieldComment).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(subset) != `["comment"]` {
		t.Errorf(`subset marshals to %s, want ["comment"]`, subset)
	}
}
