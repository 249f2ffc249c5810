package session

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// ReactiveRepository has the Repository contract but never blocks the
// caller: every call returns a Future and the steps of one call run as
// chained continuations. Concurrent saves of the same id race in the store
// and the last write wins.
type ReactiveRepository struct {
	*core
}

// NewReactiveRepository builds the asynchronous repository. Index creation
// needs a synchronous handle passed with WithIndexAdmin.
func NewReactiveRepository(store DocumentStore, opts ...Option) (*ReactiveRepository, error) {
	c, err := newCore(store, opts)
	if err != nil {
		return nil, err
	}
	r := &ReactiveRepository{core: c}
	c.source = r
	return r, nil
}

// EnsureIndexes runs synchronously against the administrative handle and is
// a no-op without one.
func (r *ReactiveRepository) EnsureIndexes(ctx context.Context) error {
	if r.indexAdmin == nil {
		return nil
	}
	return r.converter.EnsureIndexes(ctx, r.indexAdmin)
}

func (r *ReactiveRepository) CreateSession(ctx context.Context) *Future[*Session] {
	s := r.newSession()
	r.publish(ctx, EventCreated, s)
	return completed(s, nil)
}

// Save removes the document under the previous id, if the id was rotated,
// before the upsert starts. The document is built from s before Save
// returns; later changes to s are not part of this save.
func (r *ReactiveRepository) Save(ctx context.Context, s *Session) *Future[struct{}] {
	doc, err := r.converter.ToDocument(s)
	if err != nil {
		return completed(struct{}{}, err)
	}
	id, originalID := s.ID(), s.OriginalID()

	removed := completed(false, nil)
	if id != originalID {
		removed = async(ctx, func(ctx context.Context) (bool, error) {
			return r.store.Remove(ctx, originalID)
		})
	}
	return thenApply(ctx, removed, func(ctx context.Context, _ bool) (struct{}, error) {
		if err := r.store.Save(ctx, id, doc); err != nil {
			return struct{}{}, err
		}
		s.markPersisted(id)
		return struct{}{}, nil
	})
}

func (r *ReactiveRepository) findDocument(ctx context.Context, id string) *Future[bson.Raw] {
	return async(ctx, func(ctx context.Context) (bson.Raw, error) {
		return r.store.FindByID(ctx, id)
	})
}

// FindByID completes with nil when the session is missing, unreadable or
// expired. The expiry check and delete run after the fetch completes.
func (r *ReactiveRepository) FindByID(ctx context.Context, id string) *Future[*Session] {
	return thenApply(ctx, r.findDocument(ctx, id), func(ctx context.Context, doc bson.Raw) (*Session, error) {
		if doc == nil {
			return nil, nil
		}
		s, ok := r.decode(ctx, doc)
		if !ok {
			return nil, nil
		}
		if !r.expired(s) {
			return s, nil
		}

		r.publish(ctx, EventExpired, s)
		removed := async(ctx, func(ctx context.Context) (bool, error) {
			return r.store.Remove(ctx, id)
		})
		if _, err := removed.Await(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func (r *ReactiveRepository) FindByIndexNameAndIndexValue(ctx context.Context, indexName, value string) *Future[map[string]*Session] {
	query, ok := r.converter.QueryForIndex(indexName, value)
	if !ok {
		return completed(map[string]*Session{}, nil)
	}

	found := async(ctx, func(ctx context.Context) ([]bson.Raw, error) {
		return r.store.Find(ctx, query)
	})
	return thenApply(ctx, found, func(ctx context.Context, docs []bson.Raw) (map[string]*Session, error) {
		result := make(map[string]*Session, len(docs))
		for _, doc := range docs {
			if s, ok := r.decode(ctx, doc); ok {
				result[s.ID()] = s
			}
		}
		return result, nil
	})
}

// DeleteByID fetches the document, removes it and then publishes the
// deleted event built from it. A missing id completes without an event.
func (r *ReactiveRepository) DeleteByID(ctx context.Context, id string) *Future[struct{}] {
	removed := thenApply(ctx, r.findDocument(ctx, id), func(ctx context.Context, doc bson.Raw) (bson.Raw, error) {
		if doc == nil {
			return nil, nil
		}
		if _, err := r.store.Remove(ctx, id); err != nil {
			return nil, err
		}
		return doc, nil
	})
	return thenApply(ctx, removed, func(ctx context.Context, doc bson.Raw) (struct{}, error) {
		if doc == nil {
			return struct{}{}, nil
		}
		if s, ok := r.decode(ctx, doc); ok {
			r.publish(ctx, EventDeleted, s)
		}
		return struct{}{}, nil
	})
}
