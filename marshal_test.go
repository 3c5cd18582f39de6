package plist_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KimNorgaard/go-plist"
	"github.com/KimNorgaard/go-plist/internal/testutil"
	"github.com/KimNorgaard/go-plist/node"
)

type App struct {
	Bundle  string `plist:"CFBundleIdentifier"`
	Version string `plist:"CFBundleVersion,omitempty"`
}

type Device struct {
	Name   string
	Build  int
	Locked bool
	Apps   []App `plist:",omitempty"`
	Seen   *time.Time
	Extra  map[string]any `plist:"-"`
}

type level int

func (l *level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return fmt.Errorf("unknown level %q", b)
	}
	return nil
}

type version struct {
	Major, Minor uint64
}

func (v *version) UnmarshalPlist(n *node.Node) error {
	s, err := n.Text()
	if err != nil {
		return err
	}
	_, err = fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor)
	return err
}

func (v version) MarshalPlist() (*node.Node, error) {
	return node.NewString(fmt.Sprintf("%d.%d", v.Major, v.Minor)), nil
}

func TestUnmarshalStruct(t *testing.T) {
	data, err := testutil.ReadTestData("device.bplist")
	require.NoError(t, err)

	var d Device
	require.NoError(t, plist.Unmarshal(data, &d))
	require.Equal(t, Device{Name: "iPhone", Build: 19}, d)
}

func TestUnmarshalCaseInsensitive(t *testing.T) {
	doc := `<plist><dict><key>name</key><string>x</string><key>BUILD</key><integer>2</integer></dict></plist>`
	var d Device
	require.NoError(t, plist.Unmarshal([]byte(doc), &d))
	require.Equal(t, "x", d.Name)
	require.Equal(t, 2, d.Build)
}

func TestMarshalRoundTrip(t *testing.T) {
	seen := time.Date(2023, 7, 1, 8, 0, 0, 0, time.UTC)
	in := Device{
		Name:  "iPad",
		Build: 7,
		Apps:  []App{{Bundle: "com.example.a", Version: "1"}, {Bundle: "com.example.b"}},
		Seen:  &seen,
		Extra: map[string]any{"ignored": true},
	}
	for _, format := range []plist.Format{plist.XMLFormat, plist.BinaryFormat} {
		t.Run(format.String(), func(t *testing.T) {
			b, err := plist.Marshal(in, format)
			require.NoError(t, err)

			var out Device
			require.NoError(t, plist.Unmarshal(b, &out))
			want := in
			want.Extra = nil
			require.Equal(t, want, out)

			n, err := plist.Decode(b)
			require.NoError(t, err)
			app, err := n.Lookup("Apps")
			require.NoError(t, err)
			second, err := app.Index(1)
			require.NoError(t, err)
			require.False(t, second.Contains("CFBundleVersion"))
		})
	}
}

func TestUnmarshalScalars(t *testing.T) {
	n, err := node.FromValue(map[string]any{
		"u":     uint64(300),
		"f":     1.5,
		"data":  []byte{1, 2, 3},
		"uid":   node.UID(4),
		"any":   []any{"a", uint64(1)},
		"level": "high",
		"ver":   "2.14",
	})
	require.NoError(t, err)
	b, err := plist.Encode(n, plist.BinaryFormat)
	require.NoError(t, err)

	var out struct {
		U     uint16   `plist:"u"`
		F     float32  `plist:"f"`
		Data  [3]byte  `plist:"data"`
		UID   node.UID `plist:"uid"`
		Any   any      `plist:"any"`
		Level level    `plist:"level"`
		Ver   *version `plist:"ver"`
	}
	require.NoError(t, plist.Unmarshal(b, &out))
	require.Equal(t, uint16(300), out.U)
	require.Equal(t, float32(1.5), out.F)
	require.Equal(t, [3]byte{1, 2, 3}, out.Data)
	require.Equal(t, node.UID(4), out.UID)
	require.Equal(t, []any{"a", uint64(1)}, out.Any)
	require.Equal(t, level(2), out.Level)
	require.Equal(t, &version{Major: 2, Minor: 14}, out.Ver)

	var uid uint32
	ub, err := plist.Encode(node.NewUID(9), plist.BinaryFormat)
	require.NoError(t, err)
	require.NoError(t, plist.Unmarshal(ub, &uid))
	require.Equal(t, uint32(9), uid)
}

func TestUnmarshalIntoNode(t *testing.T) {
	data, err := testutil.ReadTestData("device.xml")
	require.NoError(t, err)

	var n *node.Node
	require.NoError(t, plist.Unmarshal(data, &n))
	require.Equal(t, 3, n.Len())

	var partial struct {
		Name  *node.Node
		Build *node.Node
	}
	require.NoError(t, plist.Unmarshal(data, &partial))
	require.Equal(t, node.StringType, partial.Name.Type())
	require.Nil(t, partial.Name.Parent())
	require.Equal(t, uint64(19), partial.Build.Value())
}

func TestUnmarshalMap(t *testing.T) {
	data, err := testutil.ReadTestData("device.xml")
	require.NoError(t, err)

	m := map[string]any{"stale": 1}
	require.NoError(t, plist.Unmarshal(data, &m))
	require.Equal(t, map[string]any{"Name": "iPhone", "Build": uint64(19), "Locked": false}, m)

	var v any
	require.NoError(t, plist.Unmarshal(data, &v))
	require.Equal(t, m, v)
}

func TestUnmarshalErrors(t *testing.T) {
	doc, err := testutil.ReadTestData("device.xml")
	require.NoError(t, err)

	t.Run("non-pointer", func(t *testing.T) {
		var d Device
		require.ErrorContains(t, plist.Unmarshal(doc, d), "non-pointer")
		require.ErrorContains(t, plist.Unmarshal(doc, nil), "non-pointer")
	})

	t.Run("type mismatch", func(t *testing.T) {
		var wrong struct{ Name int }
		err := plist.Unmarshal(doc, &wrong)
		require.ErrorIs(t, err, plist.ErrTypeMismatch)
		require.ErrorContains(t, err, "cannot unmarshal string into Go value of type int")
	})

	t.Run("overflow", func(t *testing.T) {
		var small struct{ Build int8 }
		overflow := `<plist><dict><key>Build</key><integer>300</integer></dict></plist>`
		require.ErrorContains(t, plist.Unmarshal([]byte(overflow), &small), "overflows")
	})

	t.Run("non-string map key", func(t *testing.T) {
		var m map[int]string
		require.ErrorContains(t, plist.Unmarshal(doc, &m), "non-string key")
	})

	t.Run("array length", func(t *testing.T) {
		var a [2]string
		short := `<plist><array><string>a</string></array></plist>`
		require.ErrorContains(t, plist.Unmarshal([]byte(short), &a), "length 1 into Go array of length 2")
	})

	t.Run("unmarshaler failure", func(t *testing.T) {
		var l level
		err := plist.Unmarshal([]byte(`<plist><string>medium</string></plist>`), &l)
		var ue *plist.UnmarshalerError
		require.ErrorAs(t, err, &ue)
		require.ErrorContains(t, err, `unknown level "medium"`)
	})

	t.Run("malformed", func(t *testing.T) {
		var v any
		require.ErrorIs(t, plist.Unmarshal([]byte("<plist>"), &v), plist.ErrMalformedDocument)
	})
}

func TestUnmarshalNull(t *testing.T) {
	arr := node.NewArray()
	require.NoError(t, arr.Append(nil))
	require.NoError(t, arr.Append("x"))
	b, err := plist.Encode(arr, plist.BinaryFormat)
	require.NoError(t, err)

	out := []*string{new(string), nil}
	require.NoError(t, plist.Unmarshal(b, &out))
	require.Nil(t, out[0])
	require.Equal(t, "x", *out[1])
}

func TestUnmarshalEmptyPlistLeavesTarget(t *testing.T) {
	d := Device{Name: "kept"}
	require.NoError(t, plist.Unmarshal([]byte("<plist/>"), &d))
	require.Equal(t, "kept", d.Name)
}

func TestMarshaler(t *testing.T) {
	b, err := plist.Marshal(map[string]version{"os": {Major: 17, Minor: 2}}, plist.XMLFormat)
	require.NoError(t, err)
	require.Contains(t, string(b), "<string>17.2</string>")

	var out map[string]*version
	require.NoError(t, plist.Unmarshal(b, &out))
	require.Equal(t, &version{Major: 17, Minor: 2}, out["os"])
}

func TestStreams(t *testing.T) {
	var buf bytes.Buffer
	enc := plist.NewEncoder(&buf, plist.XMLFormat, plist.Indent(0))
	require.NoError(t, enc.Encode(device))
	require.Equal(t, plist.XMLFormat, plist.Detect(buf.Bytes()))

	var n *node.Node
	require.NoError(t, plist.NewDecoder(&buf).Decode(&n))
	build, err := n.Get("Build")
	require.NoError(t, err)
	require.Equal(t, uint64(19), build.Value())

	require.Error(t, plist.NewEncoder(nil, plist.XMLFormat).Encode(device))
	require.Error(t, plist.NewDecoder(nil).Decode(&n))

	require.ErrorContains(t, plist.NewDecoder(iotest.ErrReader(errors.New("read failed"))).Decode(&n), "read failed")

	require.ErrorIs(t, plist.NewDecoder(strings.NewReader("<plist><integer>-1</integer></plist>")).Decode(&n), plist.ErrNegativeValue)
}
