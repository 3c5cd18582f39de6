/*
Package plist reads and writes Apple property lists in both the XML and the
binary ("bplist00") formats. The API mirrors the standard `encoding/json`
package where it can.

The package offers two workflows depending on the use case:

1. Data-Oriented Decoding and Encoding

For converting property lists into Go structs (and vice versa), Unmarshal
and Marshal map between the document and Go values directly.

	var data = []byte(`<plist version="1.0"><dict>
		<key>Name</key><string>iPhone</string>
		<key>Build</key><integer>19</integer>
	</dict></plist>`)

	type Device struct {
		Name  string `plist:"Name"`
		Build int    `plist:"Build"`
	}

	var dev Device
	if err := plist.Unmarshal(data, &dev); err != nil {
		// handle error
	}

	out, err := plist.Marshal(dev, plist.BinaryFormat)

2. Document Tree Manipulation

Decode returns the document as a tree of *node.Node values. Dictionaries
keep their keys in insertion order, arrays accept negative indices, and
every child knows its parent. The tree can be edited in place and encoded
again in either format.

	root, err := plist.Decode(data)
	if err != nil {
		// handle error
	}
	if err := root.Set("Locked", false); err != nil {
		// handle error
	}
	xml, err := plist.Encode(root, plist.XMLFormat, plist.Indent(2))

Decode detects the format from the leading bytes of its input. Use
DecodeFormat to insist on one. Failures match the sentinel errors of this
package (ErrMalformedDocument, ErrNegativeValue, ...) with errors.Is, and
positional failures carry a *DecodeError.

Customization is available via struct field tags (e.g., `plist:"key,omitempty"`)
and by implementing the plist.Marshaler and plist.Unmarshaler interfaces.
*/
package plist
