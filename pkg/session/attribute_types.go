package session

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// attributeTypes maps the type names written next to structured attribute
// values back to Go types.
type attributeTypes struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

func newAttributeTypes() *attributeTypes {
	types := &attributeTypes{byName: make(map[string]reflect.Type)}
	for _, sample := range []any{
		"", true,
		int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0),
		time.Time{},
		[]string{}, []int{}, []int64{}, []float64{}, []any{}, []byte{},
		map[string]any{}, map[string]string{},
		bson.D{}, bson.M{},
		SecurityContext{}, &SecurityContext{},
		Authentication{}, &Authentication{},
	} {
		// the defaults are distinct types
		_, _ = types.register(reflect.TypeOf(sample))
	}
	return types
}

// register records t under its name and returns the name. Two distinct types
// with the same name cannot both be stored.
func (a *attributeTypes) register(t reflect.Type) (string, error) {
	name := t.String()

	a.mu.RLock()
	known, ok := a.byName[name]
	a.mu.RUnlock()
	if ok {
		if known != t {
			return "", fmt.Errorf("attribute type name %s is already taken by %s", name, known.PkgPath())
		}
		return name, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if known, ok := a.byName[name]; ok && known != t {
		return "", fmt.Errorf("attribute type name %s is already taken by %s", name, known.PkgPath())
	}
	a.byName[name] = t
	return name, nil
}

func (a *attributeTypes) lookup(name string) (reflect.Type, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.byName[name]
	return t, ok
}
