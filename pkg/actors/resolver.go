package actors

import (
	"context"

	"github.com/worklane-app/worklane-backend/pkg/apperrors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
)

// Resolver resolves an actor id into an Actor, going through the cache first
type Resolver struct {
	Identities IdentityRepositoryInterface
	Cache      IdentityCacheInterface
	Logger     logger.Interface
}

// Resolve looks up the identity behind an actor id and returns its request-scoped view
func (r *Resolver) Resolve(ctx context.Context, actorID string) (*Actor, error) {
	if r.Cache != nil {
		identity, err := r.Cache.Get(ctx, actorID)
		if err == nil && identity != nil && !identity.Disabled {
			actor := identity.Actor()
			return &actor, nil
		}
	}

	identity, err := r.Identities.FindByID(ctx, actorID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, "unknown actor")
	}

	if r.Cache != nil {
		err = r.Cache.Add(ctx, actorID, identity)
		if err != nil {
			r.Logger.Warning("could not cache identity: " + err.Error())
		}
	}

	actor := identity.Actor()
	return &actor, nil
}
