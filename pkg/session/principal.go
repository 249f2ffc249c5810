package session

import (
	"encoding/gob"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	// PrincipalNameIndexName is both the attribute holding the principal name
	// and the index name accepted by FindByIndexNameAndIndexValue.
	PrincipalNameIndexName = "session.PRINCIPAL_NAME_INDEX_NAME"

	// SecurityContextAttribute holds the authentication state of the session.
	SecurityContextAttribute = "SECURITY_CONTEXT"
)

// PrincipalNamer is implemented by security contexts that can name the
// authenticated principal.
type PrincipalNamer interface {
	PrincipalName() string
}

// Authentication describes who authenticated the session.
type Authentication struct {
	Name          string   `bson:"name" json:"name"`
	Authenticated bool     `bson:"authenticated" json:"authenticated"`
	Authorities   []string `bson:"authorities,omitempty" json:"authorities,omitempty"`
}

// SecurityContext is the value stored under SecurityContextAttribute.
type SecurityContext struct {
	Authentication *Authentication `bson:"authentication,omitempty" json:"authentication,omitempty"`
}

func (c *SecurityContext) PrincipalName() string {
	if c == nil || c.Authentication == nil {
		return ""
	}
	return c.Authentication.Name
}

func init() {
	gob.Register(&SecurityContext{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// extractPrincipal resolves the value of the indexed principal field.
func extractPrincipal(s *Session) (string, bool) {
	if v, ok := s.Attribute(PrincipalNameIndexName); ok {
		if name, ok := v.(string); ok && name != "" {
			return name, true
		}
	}
	v, ok := s.Attribute(SecurityContextAttribute)
	if !ok {
		return "", false
	}
	name := principalFromContext(v)
	return name, name != ""
}

func principalFromContext(v any) string {
	switch ctx := v.(type) {
	case PrincipalNamer:
		return ctx.PrincipalName()
	case SecurityContext:
		return ctx.PrincipalName()
	}
	auth, ok := lookup(v, "authentication")
	if !ok {
		return ""
	}
	name, _ := lookup(auth, "name")
	s, _ := name.(string)
	return s
}

// lookup reads key from the map shapes a decoded security context can take.
func lookup(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		val, ok := m[key]
		return val, ok
	case bson.M:
		val, ok := m[key]
		return val, ok
	case bson.D:
		for _, e := range m {
			if e.Key == key {
				return e.Value, true
			}
		}
	}
	return nil, false
}
