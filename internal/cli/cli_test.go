package cli

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	plist "github.com/KimNorgaard/go-plist"
	"github.com/KimNorgaard/go-plist/node"
)

type memFiles map[string][]byte

func (m memFiles) ReadFile(path string) ([]byte, error) {
	b, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return b, nil
}

func (m memFiles) WriteFile(path string, data []byte) error {
	m[path] = data
	return nil
}

const deviceXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Name</key>
	<string>iPhone</string>
	<key>Build</key>
	<integer>19</integer>
	<key>Locked</key>
	<false/>
	<key>Apps</key>
	<array>
		<string>Mail</string>
		<string>Maps</string>
	</array>
</dict>
</plist>
`

func run(t *testing.T, files Files, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(files)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConvert(t *testing.T) {
	t.Run("to binary in place", func(t *testing.T) {
		files := memFiles{"device.plist": []byte(deviceXML)}
		_, err := run(t, files, "", "convert", "-f", "binary", "device.plist")
		require.NoError(t, err)
		require.Equal(t, plist.BinaryFormat, plist.Detect(files["device.plist"]))

		n, err := plist.Decode(files["device.plist"])
		require.NoError(t, err)
		name, err := n.Lookup("Name")
		require.NoError(t, err)
		require.Equal(t, "iPhone", name.Value())
	})

	t.Run("round trip back to identical xml", func(t *testing.T) {
		files := memFiles{"device.plist": []byte(deviceXML)}
		_, err := run(t, files, "", "convert", "-f", "binary", "-o", "device.bin", "device.plist")
		require.NoError(t, err)
		_, err = run(t, files, "", "convert", "-f", "xml", "-o", "device.xml", "device.bin")
		require.NoError(t, err)
		require.Equal(t, deviceXML, string(files["device.xml"]))
	})

	t.Run("stdin to stdout", func(t *testing.T) {
		out, err := run(t, memFiles{}, deviceXML, "convert", "-f", "xml", "--indent", "0", "-")
		require.NoError(t, err)
		require.Contains(t, out, "<dict><key>Name</key><string>iPhone</string>")
	})

	t.Run("missing format", func(t *testing.T) {
		files := memFiles{"device.plist": []byte(deviceXML)}
		_, err := run(t, files, "", "convert", "device.plist")
		require.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		files := memFiles{"device.plist": []byte(deviceXML)}
		_, err := run(t, files, "", "convert", "-f", "json", "device.plist")
		require.ErrorContains(t, err, "unknown format")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, memFiles{}, "", "convert", "-f", "xml", "nope.plist")
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestPrint(t *testing.T) {
	files := memFiles{"device.plist": []byte(deviceXML)}

	t.Run("tree", func(t *testing.T) {
		out, err := run(t, files, "", "print", "device.plist")
		require.NoError(t, err)
		require.Equal(t, `Name: "iPhone"
Build: 19
Locked: false
Apps:
  [0]: "Mail"
  [1]: "Maps"
`, out)
	})

	t.Run("tree with colour", func(t *testing.T) {
		out, err := run(t, files, "", "print", "--color", "always", "device.plist")
		require.NoError(t, err)
		require.Contains(t, out, "\x1b[")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, files, "", "print", "-o", "yaml", "device.plist")
		require.NoError(t, err)
		require.Equal(t, `Name: iPhone
Build: 19
Locked: false
Apps:
  - Mail
  - Maps
`, out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, files, "", "print", "-o", "json", "device.plist")
		require.NoError(t, err)
		require.Equal(t, `{
  "Name": "iPhone",
  "Build": 19,
  "Locked": false,
  "Apps": [
    "Mail",
    "Maps"
  ]
}
`, out)
	})

	t.Run("json data and uid", func(t *testing.T) {
		n := node.NewDict()
		require.NoError(t, n.Set("Blob", []byte("hi")))
		require.NoError(t, n.Set("Ref", node.UID(3)))
		b, err := plist.Encode(n, plist.BinaryFormat)
		require.NoError(t, err)
		out, err := run(t, memFiles{"a.plist": b}, "", "print", "-o", "json", "a.plist")
		require.NoError(t, err)
		require.JSONEq(t, `{"Blob":"aGk=","Ref":{"CF$UID":3}}`, out)
	})

	t.Run("unknown output", func(t *testing.T) {
		_, err := run(t, files, "", "print", "-o", "toml", "device.plist")
		require.ErrorContains(t, err, "unknown output")
	})
}

func TestGet(t *testing.T) {
	files := memFiles{"device.plist": []byte(deviceXML)}

	tests := []struct {
		name string
		path []string
		want string
	}{
		{name: "string is printed raw", path: []string{"Name"}, want: "iPhone\n"},
		{name: "integer", path: []string{"Build"}, want: "19\n"},
		{name: "negative index", path: []string{"Apps", "-1"}, want: "Maps\n"},
		{name: "container", path: []string{"Apps"}, want: "[0]: \"Mail\"\n[1]: \"Maps\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"get", "device.plist"}, tt.path...)
			out, err := run(t, files, "", args...)
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		_, err := run(t, files, "", "get", "device.plist", "Serial")
		require.ErrorIs(t, err, plist.ErrKeyNotFound)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := run(t, files, "", "get", "device.plist", "Apps", "2")
		require.ErrorIs(t, err, plist.ErrIndexOutOfRange)
	})
}

func TestLint(t *testing.T) {
	files := memFiles{
		"good.plist": []byte(deviceXML),
		"bad.plist":  []byte("<plist><dict><key>a</key></dict></plist>"),
		"deep.plist": []byte("<plist><array><array><array/></array></array></plist>"),
	}

	out, err := run(t, files, "", "lint", "good.plist")
	require.NoError(t, err)
	require.Equal(t, "good.plist: OK\n", out)

	out, err = run(t, files, "", "lint", "good.plist", "bad.plist")
	require.ErrorContains(t, err, "1 of 2 files failed lint")
	require.Contains(t, out, "good.plist: OK\n")
	require.Contains(t, out, "decoding bad.plist")

	_, err = run(t, files, "", "lint", "--max-depth", "2", "deep.plist")
	require.Error(t, err)
	_, err = run(t, files, "", "lint", "--max-depth", "3", "deep.plist")
	require.NoError(t, err)
}

func TestDiff(t *testing.T) {
	reordered := node.NewDict()
	require.NoError(t, reordered.Set("Locked", false))
	require.NoError(t, reordered.Set("Apps", []string{"Mail", "Maps"}))
	require.NoError(t, reordered.Set("Build", 19))
	require.NoError(t, reordered.Set("Name", "iPhone"))
	same, err := plist.Encode(reordered, plist.BinaryFormat)
	require.NoError(t, err)

	files := memFiles{
		"a.plist":     []byte(deviceXML),
		"same.plist":  same,
		"other.plist": []byte(strings.Replace(deviceXML, "<integer>19</integer>", "<integer>20</integer>", 1)),
		"empty.plist": []byte("<plist/>"),
	}

	t.Run("equal across formats and key order", func(t *testing.T) {
		out, err := run(t, files, "", "diff", "a.plist", "same.plist")
		require.NoError(t, err)
		require.Empty(t, out)
	})

	t.Run("different", func(t *testing.T) {
		out, err := run(t, files, "", "diff", "a.plist", "other.plist")
		require.ErrorContains(t, err, "a.plist and other.plist differ")
		require.Equal(t, `  Name: "iPhone"
- Build: 19
+ Build: 20
  Locked: false
  Apps:
    [0]: "Mail"
    [1]: "Maps"
`, out)
	})

	t.Run("empty document", func(t *testing.T) {
		out, err := run(t, files, "", "diff", "empty.plist", "a.plist")
		require.Error(t, err)
		require.Contains(t, out, "- (empty)\n")
		require.Contains(t, out, "+ Name: \"iPhone\"\n")

		_, err = run(t, files, "", "diff", "empty.plist", "empty.plist")
		require.NoError(t, err)
	})

	t.Run("colour", func(t *testing.T) {
		out, err := run(t, files, "", "diff", "--color", "always", "a.plist", "other.plist")
		require.Error(t, err)
		require.Contains(t, out, "\x1b[31m- Build: 19")
	})

	t.Run("unreadable", func(t *testing.T) {
		_, err := run(t, files, "", "diff", "a.plist", "missing.plist")
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}
