package jsonpatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packageJSON = `{
  "name": "froko-app",
  "scripts": {
    "ng": "ng",
    "test": "ng test",
    "e2e": "ng e2e"
  },
  "dependencies": {
    "@angular/core": "^6.1.0",
    "rxjs": "~6.2.0",
    "zone.js": ">=0.8.26"
  },
  "devDependencies": {
    "karma": "~3.0.0",
    "typescript": "~2.9.2"
  },
  "private": true
}
`

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{`{"a":`, `[1,2]`, `"text"`, ``, `null`} {
		_, err := Parse([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedJSON, in)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(packageJSON))
	require.NoError(t, err)
	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, packageJSON, string(out))
}

func TestMergeLeavesUntouchedKeys(t *testing.T) {
	doc, err := Parse([]byte(packageJSON))
	require.NoError(t, err)

	require.NoError(t, doc.Merge(map[string]any{
		"devDependencies": map[string]any{"jest": "23.6.0"},
		"scripts":         map[string]any{"test": "jest"},
	}))
	out, err := doc.Bytes()
	require.NoError(t, err)

	assert.Equal(t, `{
  "name": "froko-app",
  "scripts": {
    "ng": "ng",
    "test": "jest",
    "e2e": "ng e2e"
  },
  "dependencies": {
    "@angular/core": "^6.1.0",
    "rxjs": "~6.2.0",
    "zone.js": ">=0.8.26"
  },
  "devDependencies": {
    "karma": "~3.0.0",
    "typescript": "~2.9.2",
    "jest": "23.6.0"
  },
  "private": true
}
`, string(out))
}

func TestMergeReplacesNonObjects(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		partial any
		want    string
	}{
		{
			name:    "scalar replaced by object",
			in:      `{"a":1,"b":2}`,
			partial: map[string]any{"a": map[string]any{"x": true}},
			want:    `{"a":{"x":true},"b":2}`,
		},
		{
			name:    "array replaced, not concatenated",
			in:      `{"types":["jasmine","node"]}`,
			partial: map[string]any{"types": []string{"jest"}},
			want:    `{"types":["jest"]}`,
		},
		{
			name:    "nested objects merge",
			in:      `{"a":{"b":{"c":1,"d":2}}}`,
			partial: map[string]any{"a": map[string]any{"b": map[string]any{"d": 3, "e": 4}}},
			want:    `{"a":{"b":{"c":1,"d":3,"e":4}}}`,
		},
		{
			name:    "no html escaping",
			in:      `{}`,
			partial: map[string]any{"setup": "<rootDir>/src/setup-jest.ts"},
			want:    `{"setup":"<rootDir>/src/setup-jest.ts"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			require.NoError(t, doc.Merge(tt.partial))
			out, err := doc.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestMergeRejectsNonObjectPatch(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.ErrorIs(t, doc.Merge([]string{"a"}), ErrMalformedJSON)
}

func TestRemove(t *testing.T) {
	doc, err := Parse([]byte(`{"compilerOptions":{"module":"es2015","types":["jasmine"]},"files":["test.ts"]}`))
	require.NoError(t, err)

	require.NoError(t, doc.Remove("files", "$.compilerOptions.types", "$.missing.key", KeyPath("compilerOptions", "absent")))
	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"compilerOptions":{"module":"es2015"}}`, string(out))

	assert.ErrorIs(t, doc.Remove("$..deep"), ErrInvalidKeyPath)
}

func TestSet(t *testing.T) {
	doc, err := Parse([]byte(`{"architect":{"test":{"builder":"karma","options":{"main":"src/test.ts"}}}}`))
	require.NoError(t, err)

	require.NoError(t, doc.Set("$.architect.test.options", map[string]any{"tsConfig": "x"}))
	require.NoError(t, doc.Set(KeyPath("projects", "my-lib", "root"), "libs/my-lib"))
	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"architect":{"test":{"builder":"karma","options":{"tsConfig":"x"}}},"projects":{"my-lib":{"root":"libs/my-lib"}}}`, string(out))
}

func TestLookup(t *testing.T) {
	doc, err := Parse([]byte(packageJSON))
	require.NoError(t, err)

	var version string
	ok, err := doc.Lookup(KeyPath("dependencies", "@angular/core"), &version)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "^6.1.0", version)

	ok, err = doc.Lookup("dependencies.missing", &version)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = doc.Has("name.first")
	require.NoError(t, err)
	assert.False(t, ok, "a path through a scalar does not resolve")
}

func TestStripVersionRangePrefixes(t *testing.T) {
	doc, err := Parse([]byte(packageJSON))
	require.NoError(t, err)

	require.NoError(t, doc.StripVersionRangePrefixes("dependencies", "devDependencies", "optionalDependencies"))
	once, err := doc.Bytes()
	require.NoError(t, err)

	require.NoError(t, doc.StripVersionRangePrefixes("dependencies", "devDependencies", "optionalDependencies"))
	twice, err := doc.Bytes()
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
	assert.NotContains(t, string(once), "^")
	assert.NotContains(t, string(once), "~")
	assert.NotContains(t, string(once), ">=")
	assert.Contains(t, string(once), `"zone.js": "0.8.26"`)
	assert.Contains(t, string(once), `"e2e": "ng e2e"`, "scripts are not touched")
}

func TestStripRange(t *testing.T) {
	tests := map[string]string{
		"^6.1.0":    "6.1.0",
		"~6.2.0":    "6.2.0",
		">=0.8.26":  "0.8.26",
		">= 1.0.0":  "1.0.0",
		"^~1.0.0":   "1.0.0",
		"1.2.3":     "1.2.3",
		"latest":    "latest",
		" ^2.0.0 ":  "2.0.0",
		"git+https": "git+https",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripRange(in), in)
	}
}

func TestKeyPath(t *testing.T) {
	keys, err := ParseKeyPath(KeyPath("devDependencies", "@types/jest"))
	require.NoError(t, err)
	assert.Equal(t, []string{"devDependencies", "@types/jest"}, keys)

	keys, err = ParseKeyPath("compilerOptions.types")
	require.NoError(t, err)
	assert.Equal(t, []string{"compilerOptions", "types"}, keys)

	for _, bad := range []string{"$", "$.a[0]", "$.a.*", ""} {
		_, err := ParseKeyPath(bad)
		assert.ErrorIs(t, err, ErrInvalidKeyPath, bad)
	}
}

func TestEditsKeepUntouchedLayout(t *testing.T) {
	tests := []struct {
		name string
		in   string
		edit func(d *Document) error
		want string
	}{
		{
			name: "inline array next to a merged key",
			in:   "{\n  \"files\": [\"dist\", \"src\"],\n  \"version\": \"1.0.0\"\n}\n",
			edit: func(d *Document) error { return d.Merge(map[string]any{"version": "2.0.0"}) },
			want: "{\n  \"files\": [\"dist\", \"src\"],\n  \"version\": \"2.0.0\"\n}\n",
		},
		{
			name: "nested sibling stays inline, new value is indented",
			in: `{
  "compilerOptions": {
    "lib": ["es2017", "dom"],
    "types": ["jasmine"]
  },
  "include": ["**/*.spec.ts"]
}
`,
			edit: func(d *Document) error { return d.Set("compilerOptions.types", []string{"jest", "node"}) },
			want: `{
  "compilerOptions": {
    "lib": ["es2017", "dom"],
    "types": [
      "jest",
      "node"
    ]
  },
  "include": ["**/*.spec.ts"]
}
`,
		},
		{
			name: "removal keeps sibling objects verbatim",
			in:   "{\n  \"a\": { \"x\": 1 },\n  \"b\": {\"y\": 2, \"z\": 3}\n}",
			edit: func(d *Document) error { return d.Remove("b.z") },
			want: "{\n  \"a\": { \"x\": 1 },\n  \"b\": {\n    \"y\": 2\n  }\n}",
		},
		{
			name: "crlf line endings",
			in:   "{\r\n  \"a\": [1, 2],\r\n  \"b\": 1\r\n}\r\n",
			edit: func(d *Document) error { return d.Set("b", 2) },
			want: "{\r\n  \"a\": [1, 2],\r\n  \"b\": 2\r\n}\r\n",
		},
		{
			name: "range stripping only rewrites ranged values",
			in:   "{\n  \"dependencies\": {\n    \"a\": \"^1.0.0\",\n    \"b\": \"2.0.0\"\n  },\n  \"scripts\": {\"x\": \"~y\"}\n}\n",
			edit: func(d *Document) error { return d.StripVersionRangePrefixes("dependencies") },
			want: "{\n  \"dependencies\": {\n    \"a\": \"1.0.0\",\n    \"b\": \"2.0.0\"\n  },\n  \"scripts\": {\"x\": \"~y\"}\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			require.NoError(t, tt.edit(doc))
			out, err := doc.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestDetectIndent(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                                      "",
		"{\n\t\"a\": 1\n}":                             "\t",
		"{\n    \"a\": {\n        \"b\": 1}}":         "    ",
		"{ \"a\": {\n    \"b\": 1\n  },\n  \"c\": 2\n}": "  ",
		"{ \"a\": {\n    \"b\": 1\n  }\n}":              "  ",
		"{\"s\": \"{\\n    \\\"q\\\"\",\n   \"t\": 1\n}": "   ",
	}
	for in, want := range tests {
		assert.Equal(t, want, detectIndent([]byte(in)), in)
	}
}
