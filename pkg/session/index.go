package session

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Index names created on the sessions collection.
const (
	ExpireAtIndexName  = "expireAt"
	PrincipalIndexName = "principal"
)

// IndexOperations is the administrative index handle of a collection.
// mongo.IndexView satisfies it.
type IndexOperations interface {
	ListSpecifications(ctx context.Context, opts ...*options.ListIndexesOptions) ([]*mongo.IndexSpecification, error)
	CreateOne(ctx context.Context, model mongo.IndexModel, opts ...*options.CreateIndexesOptions) (string, error)
}

var _ IndexOperations = mongo.IndexView{}

// ensureIndexes creates the TTL index on expireAt and the principal lookup
// index unless indexes with those names already exist.
func ensureIndexes(ctx context.Context, ops IndexOperations) error {
	specs, err := ops.ListSpecifications(ctx)
	if err != nil {
		return storeError("list indexes", err)
	}
	existing := make(map[string]bool, len(specs))
	for _, spec := range specs {
		existing[spec.Name] = true
	}

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: FieldExpireAt, Value: 1}},
			Options: options.Index().SetName(ExpireAtIndexName).SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: FieldPrincipal, Value: 1}},
			Options: options.Index().SetName(PrincipalIndexName).SetSparse(true),
		},
	}
	for _, model := range models {
		name := *model.Options.Name
		if existing[name] {
			continue
		}
		if _, err := ops.CreateOne(ctx, model); err != nil {
			return storeError(fmt.Sprintf("create index %s", name), err)
		}
	}
	return nil
}
