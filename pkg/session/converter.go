package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stored document field names.
const (
	FieldID        = "_id"
	FieldCreated   = "created"
	FieldAccessed  = "accessed"
	FieldInterval  = "interval"
	FieldPrincipal = "principal"
	FieldExpireAt  = "expireAt"
	FieldAttr      = "attr"
	FieldAttrs     = "attrs"
)

// Converter maps sessions to and from stored documents.
type Converter interface {
	ToDocument(s *Session) (bson.Raw, error)
	// FromDocument fails with a *DecodeError when doc is not a readable session.
	FromDocument(doc bson.Raw) (*Session, error)
	// QueryForIndex returns false for index names it does not support.
	QueryForIndex(indexName string, value any) (bson.D, bool)
	EnsureIndexes(ctx context.Context, ops IndexOperations) error
}

// baseConverter holds everything both strategies share: header fields,
// principal extraction, index queries and index management.
type baseConverter struct {
	defaultInterval time.Duration
}

func (b baseConverter) QueryForIndex(indexName string, value any) (bson.D, bool) {
	if indexName != PrincipalNameIndexName {
		return nil, false
	}
	return bson.D{{Key: FieldPrincipal, Value: value}}, true
}

func (b baseConverter) EnsureIndexes(ctx context.Context, ops IndexOperations) error {
	return ensureIndexes(ctx, ops)
}

func (b baseConverter) header(s *Session) bson.D {
	doc := bson.D{
		{Key: FieldID, Value: s.ID()},
		{Key: FieldCreated, Value: primitive.NewDateTimeFromTime(s.CreatedAt())},
		{Key: FieldAccessed, Value: primitive.NewDateTimeFromTime(s.LastAccessedAt())},
		{Key: FieldInterval, Value: int64(s.MaxInactiveInterval() / time.Second)},
	}
	if principal, ok := extractPrincipal(s); ok {
		doc = append(doc, bson.E{Key: FieldPrincipal, Value: principal})
	}
	if !s.ExpireAt().IsZero() {
		doc = append(doc, bson.E{Key: FieldExpireAt, Value: primitive.NewDateTimeFromTime(s.ExpireAt())})
	}
	return doc
}

// readHeader rebuilds a session without attributes from doc.
func (b baseConverter) readHeader(doc bson.Raw) (*Session, error) {
	if err := doc.Validate(); err != nil {
		return nil, decodeError("", err)
	}
	id, ok := doc.Lookup(FieldID).StringValueOK()
	if !ok || id == "" {
		return nil, decodeError("", errors.New("missing string _id"))
	}

	interval := b.defaultInterval
	if v, err := doc.LookupErr(FieldInterval); err == nil {
		interval, err = readInterval(v)
		if err != nil {
			return nil, decodeError(id, err)
		}
	}

	created, err := readTime(doc.Lookup(FieldCreated))
	if err != nil {
		return nil, decodeError(id, fmt.Errorf("%s: %w", FieldCreated, err))
	}
	accessed, err := readTime(doc.Lookup(FieldAccessed))
	if err != nil {
		return nil, decodeError(id, fmt.Errorf("%s: %w", FieldAccessed, err))
	}

	s := newSessionAt(id, interval, created)
	s.SetLastAccessedAt(accessed)
	return s, nil
}

// readTime accepts the native BSON datetime as well as the legacy encodings
// older writers used.
func readTime(v bson.RawValue) (time.Time, error) {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC(), nil
	case bsontype.Int64:
		return time.UnixMilli(v.Int64()).UTC(), nil
	case bsontype.Timestamp:
		sec, _ := v.Timestamp()
		return time.Unix(int64(sec), 0).UTC(), nil
	case bsontype.String:
		t, err := time.Parse(time.RFC3339Nano, v.StringValue())
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	case 0:
		return time.Time{}, errors.New("missing")
	}
	return time.Time{}, fmt.Errorf("unsupported type %s", v.Type)
}

// readInterval reads seconds, or an ISO-8601 duration such as PT30M.
func readInterval(v bson.RawValue) (time.Duration, error) {
	switch v.Type {
	case bsontype.Int32:
		return time.Duration(v.Int32()) * time.Second, nil
	case bsontype.Int64:
		return time.Duration(v.Int64()) * time.Second, nil
	case bsontype.Double:
		return time.Duration(v.Double() * float64(time.Second)), nil
	case bsontype.String:
		return parseISODuration(v.StringValue())
	}
	return 0, fmt.Errorf("%s: unsupported type %s", FieldInterval, v.Type)
}

// parseISODuration handles the PnDTnHnMnS subset produced for session
// intervals, including a leading sign.
func parseISODuration(s string) (time.Duration, error) {
	in := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", in)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	for s != "" {
		if s[0] == 'T' {
			inTime, s = true, s[1:]
			continue
		}
		i := strings.IndexAny(s, "DHMS")
		if i <= 0 {
			return 0, fmt.Errorf("invalid duration %q", in)
		}
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", in, err)
		}
		var unit time.Duration
		switch {
		case s[i] == 'D' && !inTime:
			unit = 24 * time.Hour
		case s[i] == 'H' && inTime:
			unit = time.Hour
		case s[i] == 'M' && inTime:
			unit = time.Minute
		case s[i] == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", in)
		}
		total += time.Duration(n * float64(unit))
		s = s[i+1:]
	}
	if neg {
		total = -total
	}
	return total, nil
}

func marshalDocument(doc bson.D) (bson.Raw, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return bson.Raw(data), nil
}
