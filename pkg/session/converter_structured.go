package session

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Every structured attribute is written as {t: <type name>, v: <value>}.
const (
	attrTypeKey  = "t"
	attrValueKey = "v"
)

// StructuredConverter stores every attribute as its own field below attrs,
// mapping values with a BSON codec registry. Values decode back into the Go
// type they were written with as long as that type is known to the
// converter: types are learned on write and RegisterTypes adds the ones a
// process reads before it ever writes them. Unknown types come back in the
// generic shapes of the driver.
type StructuredConverter struct {
	baseConverter
	registry *bsoncodec.Registry
	types    *attributeTypes
}

var _ Converter = (*StructuredConverter)(nil)

func NewStructuredConverter(registry *bsoncodec.Registry, defaultInterval time.Duration) (*StructuredConverter, error) {
	if registry == nil {
		return nil, configError("registry", "cannot be nil")
	}
	return &StructuredConverter{
		baseConverter: baseConverter{defaultInterval: defaultInterval},
		registry:      registry,
		types:         newAttributeTypes(),
	}, nil
}

// NewDefaultStructuredConverter uses the driver's default registry.
func NewDefaultStructuredConverter(defaultInterval time.Duration) *StructuredConverter {
	c, _ := NewStructuredConverter(bson.DefaultRegistry, defaultInterval)
	return c
}

// RegisterTypes makes the types of samples decodable.
func (c *StructuredConverter) RegisterTypes(samples ...any) error {
	for _, sample := range samples {
		if sample == nil {
			return errors.New("cannot register the type of nil")
		}
		if _, err := c.types.register(reflect.TypeOf(sample)); err != nil {
			return err
		}
	}
	return nil
}

func (c *StructuredConverter) ToDocument(s *Session) (bson.Raw, error) {
	attrs := make(bson.D, 0, len(s.attrs))
	for _, name := range s.AttributeNames() {
		value := s.attrs[name]
		typeName, err := c.types.register(reflect.TypeOf(value))
		if err != nil {
			return nil, fmt.Errorf("map session %s attribute %s: %w", s.ID(), name, err)
		}
		attrs = append(attrs, bson.E{Key: EscapeKey(name), Value: bson.D{
			{Key: attrTypeKey, Value: typeName},
			{Key: attrValueKey, Value: value},
		}})
	}
	data, err := bson.MarshalWithRegistry(c.registry, attrs)
	if err != nil {
		return nil, fmt.Errorf("map session %s attributes: %w", s.ID(), err)
	}

	doc := append(c.header(s), bson.E{Key: FieldAttrs, Value: bson.Raw(data)})
	return marshalDocument(doc)
}

func (c *StructuredConverter) FromDocument(doc bson.Raw) (*Session, error) {
	s, err := c.readHeader(doc)
	if err != nil {
		return nil, err
	}

	v := doc.Lookup(FieldAttrs)
	switch v.Type {
	case bsontype.EmbeddedDocument:
	case 0, bsontype.Null:
		return s, nil
	default:
		return nil, decodeError(s.ID(), fmt.Errorf("%s: unsupported type %s", FieldAttrs, v.Type))
	}

	elems, err := v.Document().Elements()
	if err != nil {
		return nil, decodeError(s.ID(), err)
	}
	for _, e := range elems {
		name := UnescapeKey(e.Key())
		value, err := c.decodeValue(e.Value())
		if err != nil {
			return nil, decodeError(s.ID(), fmt.Errorf("attribute %s: %w", name, err))
		}
		s.SetAttribute(name, value)
	}
	return s, nil
}

// decodeValue reads one attribute. Values without a type tag were written
// before attributes carried one.
func (c *StructuredConverter) decodeValue(raw bson.RawValue) (any, error) {
	tagged, ok := raw.DocumentOK()
	if !ok {
		return c.decodeGeneric(raw)
	}
	typeName, hasType := tagged.Lookup(attrTypeKey).StringValueOK()
	value, err := tagged.LookupErr(attrValueKey)
	if !hasType || err != nil {
		return c.decodeGeneric(raw)
	}

	t, ok := c.types.lookup(typeName)
	if !ok {
		return c.decodeGeneric(value)
	}
	ptr := reflect.New(t)
	if err := value.UnmarshalWithRegistry(c.registry, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typeName, err)
	}
	return ptr.Elem().Interface(), nil
}

func (c *StructuredConverter) decodeGeneric(raw bson.RawValue) (any, error) {
	var value any
	if err := raw.UnmarshalWithRegistry(c.registry, &value); err != nil {
		return nil, err
	}
	return value, nil
}
