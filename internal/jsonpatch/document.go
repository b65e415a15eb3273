// Package jsonpatch performs structured edits of JSON files held in a
// virtual tree. Objects keep their key order and untouched values keep
// their raw bytes, so a patch never reshuffles a hand-edited file.
package jsonpatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var ErrMalformedJSON = errors.New("malformed json")

// rangePrefixes are the version range operators removed by
// StripVersionRangePrefixes. Longer operators come first.
var rangePrefixes = []string{">=", "^", "~"}

// value is one member of an object. Untouched members keep the bytes
// they were parsed from; an object being edited is held parsed in obj and
// re-laid out on output; fresh values were encoded by rigger.
type value struct {
	raw   json.RawMessage
	obj   *object
	fresh bool
}

type object = orderedmap.OrderedMap[string, *value]

// Document is a parsed JSON object with its original layout settings.
type Document struct {
	root            *object
	indent          string
	newline         string
	trailingNewline bool
}

// Parse reads a JSON object. Anything else fails with ErrMalformedJSON.
func Parse(data []byte) (*Document, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid syntax", ErrMalformedJSON)
	}
	root, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	newline := "\n"
	if bytes.Contains(data, []byte("\r\n")) {
		newline = "\r\n"
	}
	return &Document{
		root:            root,
		indent:          detectIndent(data),
		newline:         newline,
		trailingNewline: bytes.HasSuffix(data, []byte("\n")),
	}, nil
}

func parseObject(raw []byte) (*object, error) {
	if kind(raw) != jsonparser.Object {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedJSON)
	}
	members := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, members); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	obj := orderedmap.New[string, *value]()
	for pair := members.Oldest(); pair != nil; pair = pair.Next() {
		obj.Set(pair.Key, &value{raw: pair.Value})
	}
	return obj, nil
}

// kind reports the JSON type of a raw value.
func kind(raw []byte) jsonparser.ValueType {
	_, t, _, err := jsonparser.Get(raw)
	if err != nil {
		return jsonparser.Unknown
	}
	return t
}

func (v *value) kind() jsonparser.ValueType {
	if v.obj != nil {
		return jsonparser.Object
	}
	return kind(v.raw)
}

// bytes returns the value as JSON.
func (v *value) bytes() (json.RawMessage, error) {
	if v.obj == nil {
		return v.raw, nil
	}
	var buf bytes.Buffer
	if err := (layout{}).writeObject(&buf, v.obj, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// edit applies fn to the object held by v. The parsed object replaces the
// raw bytes only when fn changed something, so an object that was merely
// inspected keeps its layout.
func (v *value) edit(fn func(obj *object) (bool, error)) (bool, error) {
	if v.obj != nil {
		return fn(v.obj)
	}
	obj, err := parseObject(v.raw)
	if err != nil {
		return false, err
	}
	changed, err := fn(obj)
	if err != nil || !changed {
		return false, err
	}
	v.obj = obj
	return true, nil
}

// sameJSON reports whether v already holds raw, ignoring whitespace.
func sameJSON(v *value, raw json.RawMessage) bool {
	current, err := v.bytes()
	if err != nil {
		return false
	}
	var a, b bytes.Buffer
	if json.Compact(&a, current) != nil || json.Compact(&b, raw) != nil {
		return false
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

// detectIndent returns the whitespace before the first root key that
// starts its own line, "" for single-line documents and two spaces when
// no root key starts a line.
func detectIndent(data []byte) string {
	if !bytes.Contains(data, []byte("\n")) {
		return ""
	}
	depth, prev := 0, -1
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case '"':
			if depth == 1 && prev >= 0 && (data[prev] == '{' || data[prev] == ',') {
				if nl := bytes.LastIndexByte(data[prev:i], '\n'); nl >= 0 {
					if ws := data[prev+nl+1 : i]; len(ws) > 0 {
						return string(ws)
					}
				}
			}
			i = skipString(data, i)
			prev = i
		case '{', '[':
			depth++
			prev = i
		case '}', ']':
			depth--
			prev = i
		case ' ', '\t', '\r', '\n':
		default:
			prev = i
		}
	}
	return "  "
}

// skipString returns the index of the quote closing the string opened at i.
func skipString(data []byte, i int) int {
	for j := i + 1; j < len(data); j++ {
		switch data[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(data) - 1
}

// Merge deep-merges partial into the document. partial is anything that
// marshals to a JSON object. When the existing and new values at a key
// are both objects the merge recurses; otherwise the new value replaces
// the old one in place. Keys missing from partial are left untouched.
func (d *Document) Merge(partial any) error {
	raw, err := encode(partial)
	if err != nil {
		return err
	}
	patch, err := parseObject(raw)
	if err != nil {
		return fmt.Errorf("merge patch: %w", err)
	}
	_, err = mergeObject(d.root, patch)
	return err
}

func mergeObject(dst, patch *object) (bool, error) {
	changed := false
	for pair := patch.Oldest(); pair != nil; pair = pair.Next() {
		current, ok := dst.Get(pair.Key)
		if ok && current.kind() == jsonparser.Object && kind(pair.Value.raw) == jsonparser.Object {
			subPatch, err := parseObject(pair.Value.raw)
			if err != nil {
				return false, err
			}
			merged, err := current.edit(func(sub *object) (bool, error) {
				return mergeObject(sub, subPatch)
			})
			if err != nil {
				return false, err
			}
			changed = changed || merged
			continue
		}
		if ok && sameJSON(current, pair.Value.raw) {
			continue
		}
		dst.Set(pair.Key, &value{raw: pair.Value.raw, fresh: true})
		changed = true
	}
	return changed, nil
}

// Remove deletes the nested keys named by each key path. Missing keys,
// or intermediate values that are not objects, are ignored.
func (d *Document) Remove(keyPaths ...string) error {
	for _, kp := range keyPaths {
		keys, err := ParseKeyPath(kp)
		if err != nil {
			return err
		}
		if _, err := removeKey(d.root, keys); err != nil {
			return err
		}
	}
	return nil
}

func removeKey(obj *object, keys []string) (bool, error) {
	if len(keys) == 1 {
		_, present := obj.Delete(keys[0])
		return present, nil
	}
	v, ok := obj.Get(keys[0])
	if !ok || v.kind() != jsonparser.Object {
		return false, nil
	}
	return v.edit(func(sub *object) (bool, error) {
		return removeKey(sub, keys[1:])
	})
}

// Set replaces the value at keyPath with v, creating missing parent
// objects. Unlike Merge, an object value is not merged into the old one.
func (d *Document) Set(keyPath string, v any) error {
	keys, err := ParseKeyPath(keyPath)
	if err != nil {
		return err
	}
	raw, err := encode(v)
	if err != nil {
		return err
	}
	_, err = setKey(d.root, keys, raw)
	return err
}

func setKey(obj *object, keys []string, raw json.RawMessage) (bool, error) {
	current, ok := obj.Get(keys[0])
	if len(keys) == 1 {
		if ok && sameJSON(current, raw) {
			return false, nil
		}
		obj.Set(keys[0], &value{raw: raw, fresh: true})
		return true, nil
	}
	if !ok || current.kind() != jsonparser.Object {
		current = &value{obj: orderedmap.New[string, *value]()}
		obj.Set(keys[0], current)
	}
	return current.edit(func(sub *object) (bool, error) {
		return setKey(sub, keys[1:], raw)
	})
}

// Lookup decodes the value at keyPath into v. It reports false when any
// key along the path is missing.
func (d *Document) Lookup(keyPath string, v any) (bool, error) {
	keys, err := ParseKeyPath(keyPath)
	if err != nil {
		return false, err
	}
	obj := d.root
	for i, k := range keys {
		member, ok := obj.Get(k)
		if !ok {
			return false, nil
		}
		if i == len(keys)-1 {
			raw, err := member.bytes()
			if err != nil {
				return true, err
			}
			if err := json.Unmarshal(raw, v); err != nil {
				return true, fmt.Errorf("decode %s: %w", keyPath, err)
			}
			return true, nil
		}
		switch {
		case member.obj != nil:
			obj = member.obj
		case kind(member.raw) == jsonparser.Object:
			if obj, err = parseObject(member.raw); err != nil {
				return false, err
			}
		default:
			return false, nil
		}
	}
	return false, nil
}

// Has reports whether keyPath resolves to a value.
func (d *Document) Has(keyPath string) (bool, error) {
	var discard json.RawMessage
	return d.Lookup(keyPath, &discard)
}

// StripVersionRangePrefixes rewrites every string value of the named
// top-level mappings to an exact version by removing leading range
// operators. Applying it twice gives the same result as applying it once.
func (d *Document) StripVersionRangePrefixes(fields ...string) error {
	for _, field := range fields {
		deps, ok := d.root.Get(field)
		if !ok || deps.kind() != jsonparser.Object {
			continue
		}
		_, err := deps.edit(func(obj *object) (bool, error) {
			changed := false
			for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
				if pair.Value.kind() != jsonparser.String {
					continue
				}
				version, err := decodeString(pair.Value.raw)
				if err != nil {
					return false, err
				}
				exact := stripRange(version)
				if exact == version {
					continue
				}
				encoded, err := encode(exact)
				if err != nil {
					return false, err
				}
				pair.Value = &value{raw: encoded, fresh: true}
				changed = true
			}
			return changed, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// stripRange removes leading range operators until none is left, so
// "^~1.0.0" and "~1.0.0" both end up as "1.0.0". Values without an
// operator are returned as is.
func stripRange(version string) string {
	v := strings.TrimSpace(version)
	stripped := false
	for {
		found := false
		for _, prefix := range rangePrefixes {
			if strings.HasPrefix(v, prefix) {
				v = strings.TrimSpace(v[len(prefix):])
				found, stripped = true, true
				break
			}
		}
		if !found {
			break
		}
	}
	if !stripped {
		return version
	}
	return v
}

func decodeString(raw []byte) (string, error) {
	unquoted, _, _, err := jsonparser.Get(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	s, err := jsonparser.ParseString(unquoted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return s, nil
}

// Bytes serialises the document. Values no edit reached are written back
// byte for byte; edited objects and new values follow the indentation and
// line endings detected when parsing.
func (d *Document) Bytes() ([]byte, error) {
	var out bytes.Buffer
	l := layout{indent: d.indent, newline: d.newline}
	if err := l.writeObject(&out, d.root, 0); err != nil {
		return nil, err
	}
	if d.trailingNewline {
		out.WriteString(d.newline)
	}
	return out.Bytes(), nil
}

// canonical returns the document without insignificant whitespace.
func (d *Document) canonical() ([]byte, error) {
	var raw bytes.Buffer
	if err := (layout{}).writeObject(&raw, d.root, 0); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Compact(&out, raw.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return out.Bytes(), nil
}

// layout writes objects one member per line. The zero layout writes them
// on a single line without spaces.
type layout struct {
	indent  string
	newline string
}

func (l layout) writeObject(buf *bytes.Buffer, obj *object, depth int) error {
	if obj.Len() == 0 {
		buf.WriteString("{}")
		return nil
	}
	buf.WriteByte('{')
	first := true
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		l.line(buf, depth+1)
		key, err := encode(pair.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if l.indent != "" {
			buf.WriteByte(' ')
		}
		if err := l.writeValue(buf, pair.Value, depth+1); err != nil {
			return err
		}
	}
	l.line(buf, depth)
	buf.WriteByte('}')
	return nil
}

func (l layout) writeValue(buf *bytes.Buffer, v *value, depth int) error {
	switch {
	case v.obj != nil:
		return l.writeObject(buf, v.obj, depth)
	case v.fresh && l.indent != "":
		var out bytes.Buffer
		if err := json.Indent(&out, v.raw, strings.Repeat(l.indent, depth), l.indent); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		buf.Write(bytes.ReplaceAll(out.Bytes(), []byte("\n"), []byte(l.newline)))
	default:
		buf.Write(v.raw)
	}
	return nil
}

func (l layout) line(buf *bytes.Buffer, depth int) {
	if l.indent == "" {
		return
	}
	buf.WriteString(l.newline)
	buf.WriteString(strings.Repeat(l.indent, depth))
}

// encode marshals v without HTML escaping, so values such as
// "<rootDir>/src" are stored as written.
func encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
