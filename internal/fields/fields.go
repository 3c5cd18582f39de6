// Package fields caches the plist-relevant layout of Go struct types.
package fields

import (
	"reflect"
	"strings"
	"sync"
)

// Field describes one struct field that takes part in plist mapping.
type Field struct {
	Name      string
	Index     []int
	Tagged    bool
	OmitEmpty bool
}

// Fields is the cached layout of a struct type. List keeps declaration
// order.
type Fields struct {
	List   []Field
	byName map[string]int
	folded map[string]int
}

// Find returns the field for key, trying an exact match first and then a
// case-insensitive one.
func (fs *Fields) Find(key string) (Field, bool) {
	if i, ok := fs.byName[key]; ok {
		return fs.List[i], true
	}
	if i, ok := fs.folded[strings.ToLower(key)]; ok {
		return fs.List[i], true
	}
	return Field{}, false
}

var cache sync.Map // map[reflect.Type]*Fields

// Of returns the fields of struct type t. Unexported fields and fields
// tagged `plist:"-"` are skipped; embedded structs are flattened.
// The result is cached per type.
func Of(t reflect.Type) *Fields {
	if f, ok := cache.Load(t); ok {
		return f.(*Fields)
	}

	fs := &Fields{byName: make(map[string]int), folded: make(map[string]int)}
	var walk func(t reflect.Type, idx []int)
	walk = func(t reflect.Type, idx []int) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			index := append(append([]int{}, idx...), i)
			tag := sf.Tag.Get("plist")
			if tag == "-" {
				continue
			}
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct && tag == "" {
				walk(sf.Type, index)
				continue
			}
			if !sf.IsExported() {
				continue
			}

			f := Field{Name: sf.Name, Index: index}
			name, opts, _ := strings.Cut(tag, ",")
			if name != "" {
				f.Name = name
				f.Tagged = true
			}
			for opts != "" {
				var opt string
				opt, opts, _ = strings.Cut(opts, ",")
				if strings.TrimSpace(opt) == "omitempty" {
					f.OmitEmpty = true
				}
			}
			if _, dup := fs.byName[f.Name]; dup {
				continue
			}
			fs.byName[f.Name] = len(fs.List)
			lower := strings.ToLower(f.Name)
			if _, ok := fs.folded[lower]; !ok {
				fs.folded[lower] = len(fs.List)
			}
			fs.List = append(fs.List, f)
		}
	}
	walk(t, nil)

	actual, _ := cache.LoadOrStore(t, fs)
	return actual.(*Fields)
}

// IsEmpty reports whether v is empty in the encoding/json sense:
// false, 0, a nil pointer, a nil interface value, and any empty array,
// slice, map, or string.
func IsEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
