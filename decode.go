package plist

import (
	"encoding"
	"fmt"
	"io"
	"reflect"
	"time"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/fields"
	"github.com/KimNorgaard/go-plist/node"
)

// Unmarshaler is the interface implemented by types that can decode a
// property list node into themselves.
type Unmarshaler interface {
	UnmarshalPlist(n *node.Node) error
}

var (
	nodePtrType = reflect.TypeFor[*node.Node]()
	timeType    = reflect.TypeFor[time.Time]()
	uidType     = reflect.TypeFor[node.UID]()
)

// Decoder reads and decodes property lists from an input stream.
type Decoder struct {
	r    io.Reader
	opts []Option
}

// NewDecoder returns a new decoder that reads from r.
//
// It is the caller's responsibility to call Close on r if required.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{r: r, opts: opts}
}

// Decode reads the whole input, decodes it in whichever format it is in,
// and stores the result in the value pointed to by v. Passing a
// **node.Node receives the tree itself.
//
// Note: This is a non-streaming implementation. It reads the entire
// reader into memory first before parsing.
func (d *Decoder) Decode(v any) error {
	if d.r == nil {
		return fmt.Errorf("plist: Decode(nil reader)")
	}
	data, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	return Unmarshal(data, v, d.opts...)
}

// Unmarshal decodes a property list in either format and stores the
// result in the value pointed to by v.
//
// Dictionaries map onto structs (by `plist` tag or field name, falling back
// to a case-insensitive match) and onto maps with string keys. Arrays map
// onto slices and arrays, data onto []byte, dates onto time.Time, UIDs onto
// node.UID or unsigned integers. Into an empty interface the natural value
// of node.Node.Value is stored.
func Unmarshal(data []byte, v any, opts ...Option) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("plist: Unmarshal(non-pointer %T or nil)", v)
	}
	o, err := newOptions(opts)
	if err != nil {
		return err
	}
	root, err := Decode(data, opts...)
	if err != nil {
		return err
	}
	if root == nil {
		return nil
	}
	ds := &decodeState{depth: o.maxDepth}
	return ds.mapValue(root, rv.Elem())
}

type decodeState struct {
	depth int
}

func typeError(n *node.Node, rv reflect.Value) error {
	return fmt.Errorf("%w: cannot unmarshal %s into Go value of type %s", plisterrors.ErrTypeMismatch, n.Type(), rv.Type())
}

func (ds *decodeState) mapValue(n *node.Node, rv reflect.Value) error { //nolint:gocyclo
	ds.depth--
	if ds.depth <= 0 {
		return fmt.Errorf("plist: reached max recursion depth")
	}
	defer func() { ds.depth++ }()

	if rv.Type() == nodePtrType {
		rv.Set(reflect.ValueOf(n.Copy()))
		return nil
	}

	if n.Type() == node.NullType {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	handled, err := ds.tryCustomUnmarshal(n, rv)
	if err != nil || handled {
		return err
	}

	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return ds.mapValue(n, rv.Elem())
	}

	if rv.Kind() == reflect.Interface {
		if rv.NumMethod() != 0 {
			return fmt.Errorf("plist: cannot unmarshal into non-empty interface %s", rv.Type())
		}
		rv.Set(reflect.ValueOf(n.Value()))
		return nil
	}
	if !rv.CanSet() {
		return fmt.Errorf("plist: cannot set value of type %s", rv.Type())
	}

	switch n.Type() {
	case node.BoolType:
		if rv.Kind() != reflect.Bool {
			return typeError(n, rv)
		}
		b, _ := n.Bool()
		rv.SetBool(b)
		return nil
	case node.IntegerType:
		u, _ := n.Uint()
		return mapUint(n, u, rv)
	case node.UIDType:
		u, _ := n.UIDValue()
		if rv.Type() != uidType && !isUintKind(rv.Kind()) {
			return typeError(n, rv)
		}
		return mapUint(n, u, rv)
	case node.RealType:
		if rv.Kind() != reflect.Float32 && rv.Kind() != reflect.Float64 {
			return typeError(n, rv)
		}
		f, _ := n.Float()
		if rv.OverflowFloat(f) {
			return fmt.Errorf("plist: real value %g overflows Go value of type %s", f, rv.Type())
		}
		rv.SetFloat(f)
		return nil
	case node.StringType, node.KeyType:
		if rv.Kind() != reflect.String {
			return typeError(n, rv)
		}
		s, _ := n.Text()
		rv.SetString(s)
		return nil
	case node.DataType:
		b, _ := n.Bytes()
		return mapBytes(n, b, rv)
	case node.DateType:
		if rv.Type() != timeType {
			return typeError(n, rv)
		}
		t, _ := n.Time()
		rv.Set(reflect.ValueOf(t))
		return nil
	case node.ArrayType:
		switch rv.Kind() {
		case reflect.Slice:
			return ds.mapSlice(n, rv)
		case reflect.Array:
			return ds.mapArray(n, rv)
		}
		return typeError(n, rv)
	case node.DictType:
		switch rv.Kind() {
		case reflect.Struct:
			return ds.mapStruct(n, rv)
		case reflect.Map:
			return ds.mapMap(n, rv)
		}
		return typeError(n, rv)
	}
	return fmt.Errorf("plist: mapping for %s node not implemented", n.Type())
}

// tryCustomUnmarshal attempts to use a custom unmarshaler (Unmarshaler or
// encoding.TextUnmarshaler) on rv. It returns true if one was found and
// used, in which case the caller should not proceed with default
// unmarshaling.
func (ds *decodeState) tryCustomUnmarshal(n *node.Node, rv reflect.Value) (bool, error) {
	if !rv.CanAddr() {
		return false, nil
	}
	pv := rv.Addr()
	if !pv.CanInterface() {
		return false, nil
	}

	if u, ok := pv.Interface().(Unmarshaler); ok {
		if err := u.UnmarshalPlist(n); err != nil {
			return true, &UnmarshalerError{Type: pv.Type(), Err: err}
		}
		return true, nil
	}

	if u, ok := pv.Interface().(encoding.TextUnmarshaler); ok {
		s, err := n.Text()
		if err != nil {
			// TextUnmarshaler can only be used on string values.
			return false, nil
		}
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return true, &UnmarshalerError{Type: pv.Type(), Err: err}
		}
		return true, nil
	}

	return false, nil
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func mapUint(n *node.Node, u uint64, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if u > 1<<63-1 || rv.OverflowInt(int64(u)) {
			return fmt.Errorf("plist: integer value %d overflows Go value of type %s", u, rv.Type())
		}
		rv.SetInt(int64(u))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.OverflowUint(u) {
			return fmt.Errorf("plist: integer value %d overflows Go value of type %s", u, rv.Type())
		}
		rv.SetUint(u)
		return nil
	}
	return typeError(n, rv)
}

func mapBytes(n *node.Node, b []byte, rv reflect.Value) error {
	if rv.Type().Elem().Kind() != reflect.Uint8 {
		return typeError(n, rv)
	}
	switch rv.Kind() {
	case reflect.Slice:
		rv.SetBytes(b)
		return nil
	case reflect.Array:
		if rv.Len() != len(b) {
			return fmt.Errorf("plist: cannot unmarshal %d bytes into Go array of length %d", len(b), rv.Len())
		}
		reflect.Copy(rv, reflect.ValueOf(b))
		return nil
	}
	return typeError(n, rv)
}

func (ds *decodeState) mapSlice(n *node.Node, rv reflect.Value) error {
	newSlice := reflect.MakeSlice(rv.Type(), n.Len(), n.Len())
	for i, e := range n.Elements() {
		if err := ds.mapValue(e, newSlice.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(newSlice)
	return nil
}

func (ds *decodeState) mapArray(n *node.Node, rv reflect.Value) error {
	if rv.Len() != n.Len() {
		return fmt.Errorf("plist: cannot unmarshal array of length %d into Go array of length %d", n.Len(), rv.Len())
	}
	for i, e := range n.Elements() {
		if err := ds.mapValue(e, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (ds *decodeState) mapMap(n *node.Node, rv reflect.Value) error {
	mapType := rv.Type()
	if mapType.Key().Kind() != reflect.String {
		return fmt.Errorf("plist: cannot unmarshal dict into map with non-string key type %s", mapType.Key())
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMap(mapType))
	} else {
		rv.Clear()
	}
	elemType := mapType.Elem()
	for k, v := range n.Items() {
		newVal := reflect.New(elemType).Elem()
		if err := ds.mapValue(v, newVal); err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(k).Convert(mapType.Key()), newVal)
	}
	return nil
}

func (ds *decodeState) mapStruct(n *node.Node, rv reflect.Value) error {
	fs := fields.Of(rv.Type())
	for k, v := range n.Items() {
		f, ok := fs.Find(k)
		if !ok {
			continue
		}
		fieldVal, err := fieldByIndexAlloc(rv, f.Index)
		if err != nil {
			return err
		}
		if !fieldVal.CanSet() {
			continue
		}
		if err := ds.mapValue(v, fieldVal); err != nil {
			return err
		}
	}
	return nil
}

// fieldByIndexAlloc walks index like reflect.Value.FieldByIndex, allocating
// nil embedded struct pointers on the way.
func fieldByIndexAlloc(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("plist: cannot set embedded pointer to unexported struct %s", v.Type().Elem())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}
