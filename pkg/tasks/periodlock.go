package tasks

import (
	"time"

	"github.com/worklane-app/worklane-backend/pkg/date"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkPeriodLock is a project-scoped, date-bounded accounting window that can be
// closed to new and edited time log entries
type WorkPeriodLock struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	ProjectID      primitive.ObjectID `bson:"projectId" json:"projectId"`
	Period         date.Span          `bson:"period" json:"period" validate:"required"`
	Locked         bool               `bson:"locked" json:"locked"`
	LockedAt       time.Time          `bson:"lockedAt" json:"lockedAt"`
	LockedBy       primitive.ObjectID `bson:"lockedBy" json:"lockedBy"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
