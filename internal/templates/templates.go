// Package templates renders the files features add to a workspace.
// Templates are embedded; every rendered JS, TS or JSON file is checked
// for syntax errors before it reaches the tree.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"
)

//go:embed all:files
var embedded embed.FS

const suffix = ".tmpl"

// Data is the value templates are executed with. String entries also
// replace "__key__" placeholders in file paths.
type Data map[string]any

// File is one rendered template.
type File struct {
	// Path is relative to the directory that was rendered.
	Path    string
	Content []byte
}

// Renderer executes templates from a filesystem rooted at the feature directories.
type Renderer struct {
	fsys fs.FS
}

// New returns a renderer over the embedded templates.
func New() *Renderer {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		panic(err) // embedded layout is fixed at build time
	}
	return &Renderer{fsys: sub}
}

// NewFS returns a renderer over fsys, for custom template sets.
func NewFS(fsys fs.FS) *Renderer {
	return &Renderer{fsys: fsys}
}

// Render executes the template name (without the .tmpl suffix, e.g.
// "jest/jest.config.js") and validates the result.
func (r *Renderer) Render(name string, data Data) ([]byte, error) {
	src, err := fs.ReadFile(r.fsys, name+suffix)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, map[string]any(data)); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	if err := Validate(out.Bytes(), name); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// RenderDir renders every template below dir, sorted by path.
func (r *Renderer) RenderDir(dir string, data Data) ([]File, error) {
	var names []string
	err := fs.WalkDir(r.fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, suffix) {
			names = append(names, strings.TrimSuffix(p, suffix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("templates %s: %w", dir, err)
	}
	sort.Strings(names)

	files := make([]File, 0, len(names))
	for _, name := range names {
		content, err := r.Render(name, data)
		if err != nil {
			return nil, err
		}
		rel := strings.TrimPrefix(name, path.Clean(dir)+"/")
		files = append(files, File{Path: expandPath(rel, data), Content: content})
	}
	return files, nil
}

func expandPath(p string, data Data) string {
	for key, v := range data {
		if s, ok := v.(string); ok {
			p = strings.ReplaceAll(p, "__"+strings.ToLower(key)+"__", s)
		}
	}
	return p
}
