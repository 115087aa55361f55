package tasks

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimeLogStatus is the approval state the HR/finance collaborator keeps per entry
type TimeLogStatus string

const (
	// TimeLogStatusPending is the state of a freshly recorded entry
	TimeLogStatusPending TimeLogStatus = "PENDING"
	// TimeLogStatusApproved is set by the external approval workflow
	TimeLogStatusApproved TimeLogStatus = "APPROVED"
)

// TimeLog is a single effort entry, attached to exactly one of: the task
// directly, or one specific subtask of it
type TimeLog struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID  `bson:"organizationId" json:"organizationId"`
	ProjectID      primitive.ObjectID  `bson:"projectId" json:"projectId"`
	TaskID         primitive.ObjectID  `bson:"taskId" json:"taskId"`
	SubtaskID      *primitive.ObjectID `bson:"subtaskId,omitempty" json:"subtaskId,omitempty"`
	RecordedBy     primitive.ObjectID  `bson:"recordedBy" json:"recordedBy"`
	WorkDate       time.Time           `bson:"workDate" json:"workDate"`
	Minutes        int                 `bson:"minutes" json:"minutes" validate:"required,gt=0"`
	Note           string              `bson:"note" json:"note"`
	Status         TimeLogStatus       `bson:"status" json:"status"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	LastModifiedAt time.Time           `bson:"lastModifiedAt" json:"lastModifiedAt"`
}

// TimeLogSums is the projection of all entries of one task, grouped by target
type TimeLogSums struct {
	// Total is the sum over the task and all of its subtasks
	Total int
	// Direct is the sum of entries logged against the task itself
	Direct int
	// BySubtask maps a subtask id to the sum of its entries
	BySubtask map[primitive.ObjectID]int
}
