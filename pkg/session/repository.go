package session

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Option configures a Repository or a ReactiveRepository.
type Option func(*core)

// WithConverter selects the document mapping strategy.
func WithConverter(c Converter) Option {
	return func(r *core) {
		if c == nil {
			r.optErr = configError("converter", "cannot be nil")
			return
		}
		r.converter = c
	}
}

// WithMaxInactiveInterval sets the interval given to new sessions.
func WithMaxInactiveInterval(d time.Duration) Option {
	return func(r *core) { r.interval = d }
}

func WithPublisher(p Publisher) Option {
	return func(r *core) { r.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *core) { r.logger = l }
}

// WithClock replaces the time source used for new sessions and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *core) { r.now = now }
}

// WithIndexAdmin gives a ReactiveRepository the synchronous index handle it
// uses in EnsureIndexes. Repository ignores it and uses its store.
func WithIndexAdmin(ops IndexOperations) Option {
	return func(r *core) { r.indexAdmin = ops }
}

// core is the configuration and conversion logic shared by the blocking and
// the asynchronous repository. It is read-only after construction.
type core struct {
	store      DocumentStore
	converter  Converter
	interval   time.Duration
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time
	indexAdmin IndexOperations
	source     any
	optErr     error
}

func newCore(store DocumentStore, opts []Option) (*core, error) {
	if store == nil {
		return nil, configError("store", "cannot be nil")
	}
	c := &core{
		store:     store,
		interval:  DefaultMaxInactiveInterval,
		publisher: NoopPublisher{},
		logger:    slog.Default(),
		now:       now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.optErr != nil {
		return nil, c.optErr
	}
	if c.converter == nil {
		c.converter = NewGobConverter(c.interval)
	}
	if c.publisher == nil {
		c.publisher = NoopPublisher{}
	}
	if c.logger == nil {
		return nil, configError("logger", "cannot be nil")
	}
	if c.now == nil {
		return nil, configError("clock", "cannot be nil")
	}
	return c, nil
}

func (c *core) newSession() *Session {
	return newSessionAt(newID(), c.interval, c.now())
}

func (c *core) publish(ctx context.Context, typ EventType, s *Session) {
	safePublish(ctx, c.publisher, c.logger, Event{
		Type:      typ,
		Source:    c.source,
		Session:   s,
		Timestamp: c.now(),
	})
}

// decode logs documents that cannot be read and reports them as absent.
func (c *core) decode(ctx context.Context, doc bson.Raw) (*Session, bool) {
	s, err := c.converter.FromDocument(doc)
	if err != nil {
		c.logger.ErrorContext(ctx, "unreadable session document", "error", err)
		return nil, false
	}
	return s, true
}

func (c *core) expired(s *Session) bool {
	return s.IsExpiredAt(c.now())
}

// Repository stores sessions with blocking calls. It holds no locks; the
// document store's per-document atomicity is the only guarantee.
type Repository struct {
	*core
}

func NewRepository(store DocumentStore, opts ...Option) (*Repository, error) {
	c, err := newCore(store, opts)
	if err != nil {
		return nil, err
	}
	r := &Repository{core: c}
	c.source = r
	return r, nil
}

// EnsureIndexes creates the expiry and principal indexes. It is safe to call
// more than once.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	return r.converter.EnsureIndexes(ctx, r.store.Indexes())
}

// CreateSession returns a new, unsaved session using the configured interval.
func (r *Repository) CreateSession(ctx context.Context) *Session {
	s := r.newSession()
	r.publish(ctx, EventCreated, s)
	return s
}

// Save upserts the session. When its id was rotated, the document stored
// under the previous id is removed first; a failure between the two steps
// leaves the old document to the TTL index.
func (r *Repository) Save(ctx context.Context, s *Session) error {
	doc, err := r.converter.ToDocument(s)
	if err != nil {
		return err
	}
	if s.HasChangedID() {
		if _, err := r.store.Remove(ctx, s.OriginalID()); err != nil {
			return err
		}
	}
	id := s.ID()
	if err := r.store.Save(ctx, id, doc); err != nil {
		return err
	}
	s.markPersisted(id)
	return nil
}

// FindByID returns nil, nil when the session is missing, unreadable or
// expired. Expired sessions are deleted.
func (r *Repository) FindByID(ctx context.Context, id string) (*Session, error) {
	doc, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	s, ok := r.decode(ctx, doc)
	if !ok {
		return nil, nil
	}
	if r.expired(s) {
		r.publish(ctx, EventExpired, s)
		if _, err := r.store.Remove(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// FindByIndexNameAndIndexValue returns the sessions whose index matches
// value, keyed by id. Unsupported index names yield an empty map.
func (r *Repository) FindByIndexNameAndIndexValue(ctx context.Context, indexName, value string) (map[string]*Session, error) {
	result := make(map[string]*Session)

	query, ok := r.converter.QueryForIndex(indexName, value)
	if !ok {
		return result, nil
	}

	docs, err := r.store.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if s, ok := r.decode(ctx, doc); ok {
			result[s.ID()] = s
		}
	}
	return result, nil
}

// FindByPrincipalName is FindByIndexNameAndIndexValue on the principal index.
func (r *Repository) FindByPrincipalName(ctx context.Context, principal string) (map[string]*Session, error) {
	return r.FindByIndexNameAndIndexValue(ctx, PrincipalNameIndexName, principal)
}

// DeleteByID removes the session. A missing id is a no-op and publishes
// nothing.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	doc, err := r.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if _, err := r.store.Remove(ctx, id); err != nil {
		return err
	}

	if s, ok := r.decode(ctx, doc); ok {
		r.publish(ctx, EventDeleted, s)
	}
	return nil
}
