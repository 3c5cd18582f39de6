package node

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/fields"
)

const maxFromDepth = 1000

var (
	timeType = reflect.TypeFor[time.Time]()
	uidType  = reflect.TypeFor[UID]()
	nodeType = reflect.TypeFor[Node]()

	marshalerType = reflect.TypeFor[Marshaler]()
)

// Marshaler is the interface implemented by types that can build their own
// property list node.
type Marshaler interface {
	MarshalPlist() (*Node, error)
}

// FromValue builds a node from a natural Go value. The type is inferred
// in this order:
//
//	time.Time                  date
//	*Node, Node                deep copy
//	UID                        uid
//	string                     string
//	[]byte                     data
//	bool                       bool
//	integers                   integer, ErrNegativeValue if below zero
//	floats                     real
//	map[string]T               dict, keys in sorted order
//	map[T]struct{}             array of the set members, sorted
//	slices and arrays          array, in iteration order
//	structs                    dict, fields in declaration order
//	nil                        null
//
// Struct fields honour `plist:"name,omitempty"` tags and `plist:"-"`.
// Values implementing Marshaler are asked for their node instead; a nil
// result is stored as null.
func FromValue(v any) (*Node, error) {
	f := &fromState{depth: maxFromDepth}
	return f.from(reflect.ValueOf(v))
}

type fromState struct {
	depth int
}

func (f *fromState) from(v reflect.Value) (*Node, error) { //nolint:gocyclo
	f.depth--
	if f.depth <= 0 {
		return nil, fmt.Errorf("%w: value nests too deeply", plisterrors.ErrUnsupportedType)
	}
	defer func() { f.depth++ }()

	if n, ok, err := marshalCustom(v); ok {
		return n, err
	}

	// Follow pointers and interfaces to find the concrete value.
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return NewNull(), nil
		}
		if v.Type() == reflect.PointerTo(nodeType) {
			return v.Interface().(*Node).Copy(), nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return NewNull(), nil
	}

	switch v.Type() {
	case timeType:
		return NewDate(v.Interface().(time.Time)), nil
	case nodeType:
		n := v.Interface().(Node)
		return n.Copy(), nil
	case uidType:
		return NewUID(v.Uint()), nil
	}

	switch v.Kind() {
	case reflect.String:
		return NewString(v.String()), nil
	case reflect.Bool:
		return NewBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			return nil, fmt.Errorf("%w: %d", plisterrors.ErrNegativeValue, i)
		}
		return NewInteger(uint64(i)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewInteger(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return NewReal(v.Float()), nil
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.Kind() == reflect.Slice {
				return NewData(v.Bytes()), nil
			}
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return NewData(b), nil
		}
		arr := NewArray()
		for i := 0; i < v.Len(); i++ {
			c, err := f.from(v.Index(i))
			if err != nil {
				return nil, err
			}
			c.parent = arr
			arr.elems = append(arr.elems, c)
		}
		return arr, nil
	case reflect.Map:
		if isSet(v.Type()) {
			return f.fromSet(v)
		}
		return f.fromMap(v)
	case reflect.Struct:
		return f.fromStruct(v)
	default:
		return nil, fmt.Errorf("%w: %s", plisterrors.ErrUnsupportedType, v.Type())
	}
}

// marshalCustom calls MarshalPlist on v or on a pointer to it, so both
// value and pointer receivers are found.
func marshalCustom(v reflect.Value) (*Node, bool, error) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil, false, nil
	}
	var m Marshaler
	switch t := v.Type(); {
	case t.Implements(marshalerType):
		m = v.Interface().(Marshaler)
	case t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(marshalerType):
		pv := reflect.New(t)
		pv.Elem().Set(v)
		m = pv.Interface().(Marshaler)
	default:
		return nil, false, nil
	}
	n, err := m.MarshalPlist()
	if err != nil {
		return nil, true, fmt.Errorf("plist: error calling MarshalPlist for type %s: %w", v.Type(), err)
	}
	if n == nil {
		return NewNull(), true, nil
	}
	// The marshaler may keep n; the caller gets its own tree.
	return n.Copy(), true, nil
}

func isSet(t reflect.Type) bool {
	e := t.Elem()
	return e.Kind() == reflect.Struct && e.NumField() == 0
}

func (f *fromState) fromMap(v reflect.Value) (*Node, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map key type must be a string, got %s", plisterrors.ErrUnsupportedType, v.Type().Key())
	}
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	dict := NewDict()
	for _, k := range keys {
		c, err := f.from(v.MapIndex(k))
		if err != nil {
			return nil, err
		}
		dict.put(k.String(), c)
	}
	return dict, nil
}

func (f *fromState) fromSet(v reflect.Value) (*Node, error) {
	arr := NewArray()
	for _, k := range v.MapKeys() {
		c, err := f.from(k)
		if err != nil {
			return nil, err
		}
		c.parent = arr
		arr.elems = append(arr.elems, c)
	}
	var sortErr error
	slices.SortFunc(arr.elems, func(a, b *Node) int {
		c, err := Compare(a, b)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return arr, nil
}

func (f *fromState) fromStruct(v reflect.Value) (*Node, error) {
	dict := NewDict()
	for _, fd := range fields.Of(v.Type()).List {
		fv, ok := fieldByIndex(v, fd.Index)
		if !ok {
			continue
		}
		if fd.OmitEmpty && fields.IsEmpty(fv) {
			continue
		}
		c, err := f.from(fv)
		if err != nil {
			return nil, err
		}
		dict.put(fd.Name, c)
	}
	return dict, nil
}

// fieldByIndex is reflect.Value.FieldByIndex without the panic on nil
// embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
