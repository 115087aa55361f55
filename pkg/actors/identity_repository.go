package actors

import (
	"context"

	"github.com/pkg/errors"
	"github.com/worklane-app/worklane-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// IdentityRepositoryInterface is the read-only identity lookup collaborator
type IdentityRepositoryInterface interface {
	FindByID(ctx context.Context, actorID string) (*Identity, error)
}

// MongoDBIdentityRepository reads identities from the shared Identities collection
type MongoDBIdentityRepository struct {
	DB     *mongo.Collection
	Logger logger.Interface
}

// FindByID finds an identity by its id
func (r *MongoDBIdentityRepository) FindByID(ctx context.Context, actorID string) (*Identity, error) {
	actorObjectID, err := primitive.ObjectIDFromHex(actorID)
	if err != nil {
		return nil, errors.Wrap(err, "malformed actor id")
	}

	identity := Identity{}
	err = r.DB.FindOne(ctx, bson.M{"_id": actorObjectID, "disabled": false}).Decode(&identity)
	if err != nil {
		return nil, err
	}

	return &identity, nil
}
