package session_test

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"mongosession/pkg/session"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory DocumentStore that records the operations it
// receives.
type memStore struct {
	mu    sync.Mutex
	docs  map[string]bson.Raw
	ops   []string
	fail  map[string]error
	index *mockIndexes
}

var _ session.DocumentStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		docs:  make(map[string]bson.Raw),
		fail:  make(map[string]error),
		index: new(mockIndexes),
	}
}

func (m *memStore) record(op, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op+" "+id)
	return m.fail[op]
}

func (m *memStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *memStore) FindByID(ctx context.Context, id string) (bson.Raw, error) {
	if err := m.record("find", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id], nil
}

func (m *memStore) Find(ctx context.Context, filter bson.D) ([]bson.Raw, error) {
	if err := m.record("query", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []bson.Raw
	for _, doc := range m.docs {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matches(doc bson.Raw, filter bson.D) bool {
	for _, e := range filter {
		want, ok := e.Value.(string)
		if !ok {
			return false
		}
		got, ok := doc.Lookup(e.Key).StringValueOK()
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (m *memStore) Save(ctx context.Context, id string, doc bson.Raw) error {
	if err := m.record("save", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = doc
	return nil
}

func (m *memStore) Remove(ctx context.Context, id string) (bool, error) {
	if err := m.record("remove", id); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	delete(m.docs, id)
	return ok, nil
}

func (m *memStore) Indexes() session.IndexOperations {
	return m.index
}

func (m *memStore) put(doc bson.Raw) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Lookup(session.FieldID).StringValue()] = doc
}

func (m *memStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}

func (m *memStore) operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

func (m *memStore) resetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}
