package jsonpatch

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
)

var ErrInvalidKeyPath = errors.New("invalid key path")

// ParseKeyPath turns a JSONPath child expression into object keys.
// "$.compilerOptions.types", "compilerOptions.types" and
// "$['devDependencies']['@types/jest']" are all accepted; wildcards,
// filters and array indexes are not.
func ParseKeyPath(keyPath string) ([]string, error) {
	x, err := jp.ParseString(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidKeyPath, keyPath, err)
	}
	keys := make([]string, 0, len(x))
	for _, frag := range x {
		switch f := frag.(type) {
		case jp.Root, jp.At, jp.Bracket:
			// position markers, not keys
		case jp.Child:
			keys = append(keys, string(f))
		default:
			return nil, fmt.Errorf("%w %q: unsupported fragment %s", ErrInvalidKeyPath, keyPath, jp.Expr{frag})
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w %q: no keys", ErrInvalidKeyPath, keyPath)
	}
	return keys, nil
}

// KeyPath builds a bracket-notation JSONPath from literal keys, so keys
// containing dots or slashes ("@angular/core") survive ParseKeyPath.
func KeyPath(keys ...string) string {
	x := jp.R()
	for _, k := range keys {
		x = x.C(k)
	}
	return x.BracketString()
}
