package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Serializer turns the whole attribute map into one opaque blob.
type Serializer interface {
	Serialize(attrs map[string]any) ([]byte, error)
}

// Deserializer reverses a Serializer.
type Deserializer interface {
	Deserialize(data []byte) (map[string]any, error)
}

// GobCodec is the default Serializer and Deserializer. Attribute values of
// custom types must be registered with gob.Register.
type GobCodec struct{}

func (GobCodec) Serialize(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(attrs); err != nil {
		return nil, fmt.Errorf("gob encode attributes: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Deserialize(data []byte) (map[string]any, error) {
	attrs := make(map[string]any)
	if len(data) == 0 {
		return attrs, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("gob decode attributes: %w", err)
	}
	return attrs, nil
}

// BinaryConverter stores the attribute map as a single binary field.
type BinaryConverter struct {
	baseConverter
	serializer   Serializer
	deserializer Deserializer
}

var _ Converter = (*BinaryConverter)(nil)

// NewBinaryConverter builds a converter that falls back to defaultInterval
// for documents without an interval field.
func NewBinaryConverter(serializer Serializer, deserializer Deserializer, defaultInterval time.Duration) (*BinaryConverter, error) {
	if serializer == nil {
		return nil, configError("serializer", "cannot be nil")
	}
	if deserializer == nil {
		return nil, configError("deserializer", "cannot be nil")
	}
	return &BinaryConverter{
		baseConverter: baseConverter{defaultInterval: defaultInterval},
		serializer:    serializer,
		deserializer:  deserializer,
	}, nil
}

// NewGobConverter is NewBinaryConverter with GobCodec on both sides.
func NewGobConverter(defaultInterval time.Duration) *BinaryConverter {
	c, _ := NewBinaryConverter(GobCodec{}, GobCodec{}, defaultInterval)
	return c
}

func (c *BinaryConverter) ToDocument(s *Session) (bson.Raw, error) {
	blob, err := c.serializer.Serialize(s.Attributes())
	if err != nil {
		return nil, fmt.Errorf("serialize session %s: %w", s.ID(), err)
	}
	doc := append(c.header(s), bson.E{Key: FieldAttr, Value: blob})
	return marshalDocument(doc)
}

func (c *BinaryConverter) FromDocument(doc bson.Raw) (*Session, error) {
	s, err := c.readHeader(doc)
	if err != nil {
		return nil, err
	}

	var blob []byte
	switch v := doc.Lookup(FieldAttr); v.Type {
	case bsontype.Binary:
		_, blob = v.Binary()
	case 0, bsontype.Null:
	default:
		return nil, decodeError(s.ID(), fmt.Errorf("%s: unsupported type %s", FieldAttr, v.Type))
	}

	attrs, err := c.deserializer.Deserialize(blob)
	if err != nil {
		return nil, decodeError(s.ID(), err)
	}
	for name, value := range attrs {
		s.SetAttribute(name, value)
	}
	return s, nil
}
