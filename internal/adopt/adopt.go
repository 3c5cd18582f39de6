// Package adopt builds containers that take ownership of their children
// instead of copying them. Only decoders use it: every node they pass in
// was built by the same decode and is not reachable from anywhere else.
//
// Package node registers its constructors at init, which keeps them out
// of its public API.
package adopt

type constructors[N any] struct {
	array func([]N) N
	dict  func([]string, []N) (N, error)
}

var registered any

// Register installs the constructors of package node.
func Register[N any](array func(elems []N) N, dict func(keys []string, vals []N) (N, error)) {
	registered = constructors[N]{array: array, dict: dict}
}

// Array returns an array node owning elems.
func Array[N any](elems []N) N {
	return registered.(constructors[N]).array(elems)
}

// Dict returns a dictionary node owning vals, each stored under the
// matching entry of keys. A repeated key overwrites the earlier value in
// place.
func Dict[N any](keys []string, vals []N) (N, error) {
	return registered.(constructors[N]).dict(keys, vals)
}
