package scene

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"
)

// constraintRegistry maps a Constraint's type name to its reflect.Type, so
// that a slice of the Constraint interface can round-trip through JSON
// with its concrete type preserved. Modeled directly on phys/json.go's
// typeRegistry/RegisterInterfaceType/marshalInterface/unmarshalInterface
// quartet.
var (
	constraintRegistry map[string]reflect.Type
	registryMutex      sync.RWMutex
)

func init() {
	constraintRegistry = make(map[string]reflect.Type)
	RegisterConstraintType(Distance{})
	RegisterConstraintType(Angle{})
	RegisterConstraintType(ParallelLines{})
	RegisterConstraintType(PerpendicularLines{})
	RegisterConstraintType(FixedPoint{})
	RegisterConstraintType(CollinearPoints{})
	RegisterConstraintType(EqualDistances{})
	RegisterConstraintType(EqualAngles{})
	RegisterConstraintType(CoplanarPoints{})
}

// RegisterConstraintType registers a Constraint implementation under its
// type name so that Project's JSON encoding can recover the concrete type
// on decode. Every built-in Constraint variant registers itself in this
// package's init; a caller extending the registry with a new constraint
// kind must call this before unmarshalling any Project that references it.
func RegisterConstraintType(v Constraint) {
	typ := reflect.TypeOf(v)
	name := typ.Name()
	if name == "" {
		panic("scene: cannot register a Constraint type with no name")
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := constraintRegistry[name]; exists {
		panic(fmt.Sprintf("scene: constraint type %q is already registered", name))
	}
	constraintRegistry[name] = typ
	log.Printf("scene: registered constraint type %s", name)
}

func marshalConstraint(c Constraint) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("scene: cannot marshal a nil constraint")
	}
	name := reflect.TypeOf(c).Name()
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	wrapped := map[string]any{
		"Type": name,
		"Data": json.RawMessage(data),
	}
	return json.Marshal(wrapped)
}

func unmarshalConstraint(data json.RawMessage) (Constraint, error) {
	var wrapper struct {
		Type string          `json:"Type"`
		Data json.RawMessage `json:"Data"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	registryMutex.RLock()
	typ, exists := constraintRegistry[wrapper.Type]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("scene: unsupported constraint type %q; has it been registered?", wrapper.Type)
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal(wrapper.Data, ptr.Interface()); err != nil {
		return nil, err
	}
	c, ok := ptr.Elem().Interface().(Constraint)
	if !ok {
		return nil, fmt.Errorf("scene: registered type %q does not implement Constraint", wrapper.Type)
	}
	return c, nil
}
