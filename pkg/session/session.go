// Package session persists server-side sessions into MongoDB documents and
// enforces their expiry on read.
package session

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxInactiveInterval is used when no interval is configured.
const DefaultMaxInactiveInterval = 1800 * time.Second

// Mongo does not allow '.' in field names, so it is replaced with a rarely used
// private-use character whenever an attribute name becomes a field name.
const dotCoverChar = "\uf607"

// Session is the in-memory view of a stored session. It is not safe for
// concurrent use; a session belongs to the request that loaded it. Only the
// persisted id may be updated by an asynchronous save still in flight.
type Session struct {
	id string

	persistedMu sync.Mutex
	originalID  string

	createdAt      time.Time
	lastAccessedAt time.Time
	interval       time.Duration
	expireAt       time.Time

	attrs map[string]any
}

// NewSession returns a session with a random UUID id that was created and last
// accessed now.
func NewSession(interval time.Duration) *Session {
	return newSessionAt(newID(), interval, now())
}

func newSessionAt(id string, interval time.Duration, at time.Time) *Session {
	s := &Session{
		id:         id,
		originalID: id,
		createdAt:  at,
		interval:   interval,
		attrs:      make(map[string]any),
	}
	s.SetLastAccessedAt(at)
	return s
}

func newID() string {
	return uuid.NewString()
}

// now truncates to milliseconds, the precision of a BSON datetime.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *Session) ID() string {
	return s.id
}

// OriginalID is the id the session was last persisted (or created) under.
func (s *Session) OriginalID() string {
	s.persistedMu.Lock()
	defer s.persistedMu.Unlock()
	return s.originalID
}

// HasChangedID reports whether ChangeID was called since the last save.
func (s *Session) HasChangedID() bool {
	return s.id != s.OriginalID()
}

// ChangeID rotates the session to a fresh id and returns it. The previous
// persisted id is kept so that Save can remove the old document.
func (s *Session) ChangeID() string {
	s.id = newID()
	return s.id
}

// markPersisted records that the session is stored under id.
func (s *Session) markPersisted(id string) {
	s.persistedMu.Lock()
	defer s.persistedMu.Unlock()
	s.originalID = id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) LastAccessedAt() time.Time {
	return s.lastAccessedAt
}

// SetLastAccessedAt records an access and moves ExpireAt accordingly.
func (s *Session) SetLastAccessedAt(t time.Time) {
	s.lastAccessedAt = t
	s.recomputeExpiry()
}

func (s *Session) MaxInactiveInterval() time.Duration {
	return s.interval
}

// SetMaxInactiveInterval changes the idle timeout. A negative interval means
// the session never expires.
func (s *Session) SetMaxInactiveInterval(d time.Duration) {
	s.interval = d
	s.recomputeExpiry()
}

// ExpireAt is LastAccessedAt + MaxInactiveInterval, or the zero time for a
// session that never expires.
func (s *Session) ExpireAt() time.Time {
	return s.expireAt
}

func (s *Session) recomputeExpiry() {
	if s.interval < 0 {
		s.expireAt = time.Time{}
		return
	}
	s.expireAt = s.lastAccessedAt.Add(s.interval)
}

func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

func (s *Session) IsExpiredAt(t time.Time) bool {
	return s.interval >= 0 && t.After(s.expireAt)
}

// Attribute returns the value stored under name.
func (s *Session) Attribute(name string) (any, bool) {
	v, ok := s.attrs[name]
	return v, ok
}

// SetAttribute stores value under name. A nil value removes the attribute.
func (s *Session) SetAttribute(name string, value any) {
	if value == nil {
		s.RemoveAttribute(name)
		return
	}
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[name] = value
}

func (s *Session) RemoveAttribute(name string) {
	delete(s.attrs, name)
}

// AttributeNames returns the attribute names in sorted order.
func (s *Session) AttributeNames() []string {
	return slices.Sorted(maps.Keys(s.attrs))
}

// Attributes returns a copy of the attribute map.
func (s *Session) Attributes() map[string]any {
	return maps.Clone(s.attrs)
}

// EscapeKey makes an attribute name usable as a document field name.
func EscapeKey(name string) string {
	return strings.ReplaceAll(name, ".", dotCoverChar)
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(field string) string {
	return strings.ReplaceAll(field, dotCoverChar, ".")
}
