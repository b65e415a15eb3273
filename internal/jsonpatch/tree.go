package jsonpatch

import (
	"bytes"
	"fmt"

	"github.com/agentic-research/rigger/internal/tree"
)

// Update parses the JSON file at path, applies fn and writes the result
// back with a single overwrite. Nothing is written if fn fails or leaves
// the content unchanged, so the file keeps its original layout.
func Update(t *tree.Tree, path string, fn func(d *Document) error) error {
	data, err := t.Read(path)
	if err != nil {
		return err
	}
	doc, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	before, err := doc.canonical()
	if err != nil {
		return fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	if err := fn(doc); err != nil {
		return fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	after, err := doc.canonical()
	if err != nil {
		return fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	if bytes.Equal(before, after) {
		return nil
	}
	out, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	return t.Overwrite(path, out)
}

// Read parses the JSON file at path without modifying it.
func Read(t *tree.Tree, path string) (*Document, error) {
	data, err := t.Read(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tree.Normalize(path), err)
	}
	return doc, nil
}

// MergeInto deep-merges partial into the JSON object stored at path.
func MergeInto(t *tree.Tree, path string, partial any) error {
	return Update(t, path, func(d *Document) error {
		return d.Merge(partial)
	})
}

// RemoveKeys deletes the named nested keys from the JSON file at path.
// Keys that are already absent are not an error.
func RemoveKeys(t *tree.Tree, path string, keyPaths ...string) error {
	return Update(t, path, func(d *Document) error {
		return d.Remove(keyPaths...)
	})
}

// StripVersionRangePrefixes pins every dependency of the named mappings
// in the JSON file at path to an exact version.
func StripVersionRangePrefixes(t *tree.Tree, path string, fieldNames ...string) error {
	return Update(t, path, func(d *Document) error {
		return d.StripVersionRangePrefixes(fieldNames...)
	})
}

// Get decodes the value at keyPath of the JSON file at path into v.
func Get(t *tree.Tree, path, keyPath string, v any) (bool, error) {
	doc, err := Read(t, path)
	if err != nil {
		return false, err
	}
	return doc.Lookup(keyPath, v)
}

// Set replaces the value at keyPath of the JSON file at path.
func Set(t *tree.Tree, path, keyPath string, v any) error {
	return Update(t, path, func(d *Document) error {
		return d.Set(keyPath, v)
	})
}
