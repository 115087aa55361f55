package actors

import (
	"context"

	"github.com/pkg/errors"
)

// MockIdentityRepository is an identity repository for testing
type MockIdentityRepository struct {
	Identities []*Identity
}

// FindByID finds an identity by its id
func (m *MockIdentityRepository) FindByID(_ context.Context, actorID string) (*Identity, error) {
	for _, identity := range m.Identities {
		if identity.ID.Hex() == actorID && !identity.Disabled {
			return identity, nil
		}
	}

	return nil, errors.New("identity not found")
}
