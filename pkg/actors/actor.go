package actors

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of roles the identity collaborator can assign to an actor
type Role string

const (
	// RoleMember is a regular project member
	RoleMember Role = "MEMBER"
	// RoleProjectManager manages projects and their tasks
	RoleProjectManager Role = "PROJECT_MANAGER"
	// RoleOrgAdmin administrates an organization
	RoleOrgAdmin Role = "ORG_ADMIN"
	// RoleSysAdmin administrates the whole installation
	RoleSysAdmin Role = "SYS_ADMIN"
)

// ParseRole maps a raw role string onto a Role
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleMember, RoleProjectManager, RoleOrgAdmin, RoleSysAdmin:
		return Role(raw), nil
	}
	return "", errors.Errorf("unknown role %q", raw)
}

// IsManagerTier reports whether the role carries elevated task management rights
func (r Role) IsManagerTier() bool {
	return r == RoleProjectManager || r == RoleOrgAdmin || r == RoleSysAdmin
}

// Actor is the request-scoped view of the person performing an operation
type Actor struct {
	ID             primitive.ObjectID `json:"id"`
	OrganizationID primitive.ObjectID `json:"organizationId"`
	Role           Role               `json:"role"`
}

// Identity is the persisted record the external identity collaborator keeps per actor
type Identity struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organizationId" json:"organizationId"`
	Email          string             `bson:"email" json:"email"`
	Role           Role               `bson:"role" json:"role"`
	Disabled       bool               `bson:"disabled" json:"disabled"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	LastModifiedAt time.Time          `bson:"lastModifiedAt" json:"lastModifiedAt"`
}

// Actor builds the request-scoped actor view of an identity
func (i *Identity) Actor() Actor {
	return Actor{ID: i.ID, OrganizationID: i.OrganizationID, Role: i.Role}
}
