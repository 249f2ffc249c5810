package session

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollectionName is the collection sessions are stored in.
const DefaultCollectionName = "sessions"

// DocumentStore is the document database the repositories persist into.
// Every call is a single-document operation; there is no multi-document
// atomicity.
type DocumentStore interface {
	// FindByID returns nil, nil when no document has the id.
	FindByID(ctx context.Context, id string) (bson.Raw, error)
	Find(ctx context.Context, filter bson.D) ([]bson.Raw, error)
	// Save inserts doc or replaces the document with the same id.
	Save(ctx context.Context, id string, doc bson.Raw) error
	// Remove reports whether a document was deleted.
	Remove(ctx context.Context, id string) (bool, error)
	Indexes() IndexOperations
}

// MongoStore is a DocumentStore over one MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

var _ DocumentStore = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database, collectionName string) *MongoStore {
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}
	return &MongoStore{
		collection: db.Collection(collectionName),
	}
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (bson.Raw, error) {
	doc, err := s.collection.FindOne(ctx, bson.D{{Key: FieldID, Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("find session", err)
	}
	return doc, nil
}

func (s *MongoStore) Find(ctx context.Context, filter bson.D) ([]bson.Raw, error) {
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, storeError("query sessions", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.Raw
	for cursor.Next(ctx) {
		if cursor.Current.Validate() != nil {
			continue
		}
		// Current is reused by the next call to Next.
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("iterate sessions", err)
	}
	return docs, nil
}

func (s *MongoStore) Save(ctx context.Context, id string, doc bson.Raw) error {
	_, err := s.collection.ReplaceOne(
		ctx,
		bson.D{{Key: FieldID, Value: id}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return storeError("save session", err)
	}
	return nil
}

func (s *MongoStore) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: FieldID, Value: id}})
	if err != nil {
		return false, storeError("remove session", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) Indexes() IndexOperations {
	return s.collection.Indexes()
}
