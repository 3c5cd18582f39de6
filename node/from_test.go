package node

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	plisterrors "github.com/KimNorgaard/go-plist/errors"
	"github.com/KimNorgaard/go-plist/internal/adopt"
)

type point struct {
	X, Y int
}

func (p point) MarshalPlist() (*Node, error) {
	a := NewArray()
	if err := a.Append(p.X); err != nil {
		return nil, err
	}
	return a, a.Append(p.Y)
}

// cached hands out the same node on every call.
type cached struct{ n *Node }

func (c cached) MarshalPlist() (*Node, error) { return c.n, nil }

type broken struct{}

func (*broken) MarshalPlist() (*Node, error) { return nil, errors.New("boom") }

func TestFromValuePrecedence(t *testing.T) {
	when := time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC)
	var nilPtr *int

	tests := []struct {
		name string
		in   any
		typ  Type
	}{
		{"time", when, DateType},
		{"time pointer", &when, DateType},
		{"uid", UID(5), UIDType},
		{"string", "s", StringType},
		{"bytes", []byte("b"), DataType},
		{"byte array", [2]byte{1, 2}, DataType},
		{"bool", false, BoolType},
		{"int", 3, IntegerType},
		{"uint64 max", uint64(math.MaxUint64), IntegerType},
		{"float32", float32(1.5), RealType},
		{"map", map[string]int{"a": 1}, DictType},
		{"set", map[string]struct{}{"a": {}}, ArrayType},
		{"slice", []string{"a"}, ArrayType},
		{"array", [1]int{1}, ArrayType},
		{"struct", point{}, ArrayType},
		{"nil", nil, NullType},
		{"nil pointer", nilPtr, NullType},
		{"node", NewKey("k"), KeyType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := FromValue(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.typ, n.Type())
		})
	}
}

func TestFromValueRejects(t *testing.T) {
	_, err := FromValue(-1)
	require.ErrorIs(t, err, plisterrors.ErrNegativeValue)
	_, err = FromValue([]any{1, int8(-5)})
	require.ErrorIs(t, err, plisterrors.ErrNegativeValue)
	_, err = FromValue(map[int]string{1: "a"})
	require.ErrorIs(t, err, plisterrors.ErrUnsupportedType)
	_, err = FromValue(make(chan int))
	require.ErrorIs(t, err, plisterrors.ErrUnsupportedType)
	_, err = FromValue(func() {})
	require.ErrorIs(t, err, plisterrors.ErrUnsupportedType)
	_, err = FromValue(&broken{})
	require.ErrorContains(t, err, "boom")
}

func TestFromValueCopiesNodes(t *testing.T) {
	src := NewDict()
	require.NoError(t, src.Set("a", 1))
	n, err := FromValue(src)
	require.NoError(t, err)
	require.NotSame(t, src, n)

	require.NoError(t, n.Set("b", 2))
	require.Equal(t, 1, src.Len())
}

func TestFromValueOrdering(t *testing.T) {
	t.Run("maps are sorted by key", func(t *testing.T) {
		n, err := FromValue(map[string]int{"c": 1, "a": 2, "b": 3})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, slices.Collect(n.Keys()))
	})

	t.Run("sets are sorted", func(t *testing.T) {
		n, err := FromValue(map[int]struct{}{3: {}, 1: {}, 2: {}})
		require.NoError(t, err)
		require.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, n.Value())
	})

	t.Run("slices keep order", func(t *testing.T) {
		n, err := FromValue([]any{"z", "a"})
		require.NoError(t, err)
		require.Equal(t, []any{"z", "a"}, n.Value())
	})
}

func TestFromValueStruct(t *testing.T) {
	type Inner struct {
		Depth int `plist:"depth"`
	}
	type Device struct {
		Name    string `plist:"Name"`
		Build   int    `plist:"Build"`
		Locked  bool
		Serial  string `plist:"Serial,omitempty"`
		Skipped string `plist:"-"`
		Inner
		hidden int
	}

	n, err := FromValue(Device{Name: "iPhone", Build: 19, Inner: Inner{Depth: 2}, hidden: 1, Skipped: "x"})
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Build", "Locked", "depth"}, slices.Collect(n.Keys()))
	require.Equal(t, map[string]any{
		"Name":   "iPhone",
		"Build":  uint64(19),
		"Locked": false,
		"depth":  uint64(2),
	}, n.Value())

	n, err = FromValue(&Device{Serial: "ABC"})
	require.NoError(t, err)
	require.True(t, n.Contains("Serial"))
}

func TestFromValueMarshaler(t *testing.T) {
	n, err := FromValue(map[string]any{"p": point{X: 1, Y: 2}, "q": &point{X: 3}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"p": []any{uint64(1), uint64(2)},
		"q": []any{uint64(3), uint64(0)},
	}, n.Value())

	p, _ := n.Get("p")
	require.Same(t, n, p.Parent())

	t.Run("returned node is copied", func(t *testing.T) {
		held := NewString("original")
		arr := NewArray()
		require.NoError(t, arr.Append(cached{held}))
		require.NoError(t, held.SetValue("mutated"))

		e, err := arr.Index(0)
		require.NoError(t, err)
		require.Equal(t, "original", e.Value())
		require.Nil(t, held.Parent())
		require.NotSame(t, held, e)
	})
}

func TestAdoptedContainers(t *testing.T) {
	a, b := NewString("a"), NewString("b")
	arr := adopt.Array([]*Node{a, b})
	require.Same(t, a, arr.elems[0], "detached elements are adopted")
	require.Same(t, arr, a.Parent())

	// An element that already has a parent is copied, not moved.
	other := adopt.Array([]*Node{a})
	require.NotSame(t, a, other.elems[0])
	require.Same(t, arr, a.Parent())

	dict, err := adopt.Dict([]string{"k", "k", "j"}, []*Node{NewInteger(1), NewInteger(2), NewBool(true)})
	require.NoError(t, err)
	require.Equal(t, []string{"k", "j"}, slices.Collect(dict.Keys()))
	require.Equal(t, map[string]any{"k": uint64(2), "j": true}, dict.Value())

	_, err = adopt.Dict[*Node]([]string{"k"}, nil)
	require.ErrorIs(t, err, plisterrors.ErrTypeMismatch)
}

func TestFromValueDepthLimit(t *testing.T) {
	var v any = "leaf"
	for range maxFromDepth + 1 {
		v = []any{v}
	}
	_, err := FromValue(v)
	require.ErrorIs(t, err, plisterrors.ErrUnsupportedType)
}
