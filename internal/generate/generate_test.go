package generate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/rigger/api"
	"github.com/agentic-research/rigger/internal/install"
	"github.com/agentic-research/rigger/internal/tree"
)

var workspaceFiles = map[string]string{
	"angular.json": `{
  "newProjectRoot": "projects",
  "projects": {
    "demo": {
      "root": "",
      "sourceRoot": "src",
      "projectType": "application",
      "architect": {
        "test": {
          "builder": "@angular-devkit/build-angular:karma",
          "options": {"main": "src/test.ts", "karmaConfig": "src/karma.conf.js"}
        }
      }
    }
  },
  "defaultProject": "demo"
}
`,
	"package.json": `{
  "name": "demo",
  "dependencies": {"@angular/core": "^6.1.0"},
  "devDependencies": {"karma": "~3.0.0", "typescript": "~2.9.2"}
}
`,
	"src/karma.conf.js":                    "module.exports = function (config) {};\n",
	"src/test.ts":                          "import 'zone.js/dist/zone-testing';\n",
	"node_modules/karma/package.json":      `{"name": "karma"}`,
	"node_modules/karma/lib/karma.conf.js": "ignored\n",
}

func newWorkspace(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for p, content := range workspaceFiles {
		require.NoError(t, util.WriteFile(fs, p, []byte(content), 0o644))
	}
	return fs
}

func readFile(t *testing.T, fs billy.Filesystem, p string) string {
	t.Helper()
	data, err := util.ReadFile(fs, p)
	require.NoError(t, err, p)
	return string(data)
}

func exists(fs billy.Filesystem, p string) bool {
	_, err := fs.Stat(p)
	return err == nil
}

type countingInstaller struct {
	calls int
	err   error
}

func (c *countingInstaller) installer() install.Installer {
	return install.Func(func(context.Context) error {
		c.calls++
		return c.err
	})
}

func newEngine(t *testing.T, inst install.Installer) (*Engine, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e, err := New(logger, inst)
	require.NoError(t, err)
	return e, &logs
}

func changed(changes []tree.Change, p string) (tree.State, bool) {
	for _, c := range changes {
		if c.Path == p {
			return c.State, true
		}
	}
	return 0, false
}

func TestEssentialsCommitsAndInstalls(t *testing.T) {
	fs := newWorkspace(t)
	counter := &countingInstaller{}
	e, logs := newEngine(t, counter.installer())

	res, err := e.Essentials(context.Background(), Request{
		FS:      fs,
		Options: api.Options{TestFramework: api.FrameworkJest},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)
	assert.True(t, res.Options.FirstRun)
	assert.Equal(t, api.FrameworkJest, res.Options.TestFramework)

	state, ok := changed(res.Changes, "/jest.config.js")
	require.True(t, ok)
	assert.Equal(t, tree.Created, state)
	state, ok = changed(res.Changes, "/src/karma.conf.js")
	require.True(t, ok)
	assert.Equal(t, tree.Deleted, state)

	assert.True(t, exists(fs, "jest.config.js"))
	assert.False(t, exists(fs, "src/karma.conf.js"))
	assert.Contains(t, readFile(t, fs, "angular.json"), "@angular-builders/jest:run")
	assert.Equal(t, "ignored\n", readFile(t, fs, "node_modules/karma/lib/karma.conf.js"))

	assert.Contains(t, logs.String(), "chain=essentials")
	assert.Contains(t, logs.String(), "first_run=true")
	assert.Contains(t, logs.String(), "tree committed")

	// a second run against the committed workspace changes nothing
	res, err = e.Essentials(context.Background(), Request{FS: fs, SkipInstall: true})
	require.NoError(t, err)
	assert.False(t, res.Options.FirstRun)
	assert.Equal(t, api.FrameworkJest, res.Options.TestFramework)
	assert.Empty(t, res.Changes)
	assert.Equal(t, 1, counter.calls)
}

func TestDryRunWritesNothing(t *testing.T) {
	fs := newWorkspace(t)
	counter := &countingInstaller{}
	e, _ := newEngine(t, counter.installer())

	res, err := e.Essentials(context.Background(), Request{
		FS:      fs,
		Options: api.Options{E2E: api.E2ECypress},
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Changes)
	_, ok := changed(res.Changes, "/cypress.json")
	assert.True(t, ok)

	assert.False(t, exists(fs, "cypress.json"))
	assert.Equal(t, workspaceFiles["package.json"], readFile(t, fs, "package.json"))
	assert.Zero(t, counter.calls)
}

func TestSwitchingAwayFromProtractorRemovesE2EDirectory(t *testing.T) {
	fs := newWorkspace(t)
	e, _ := newEngine(t, nil)

	_, err := e.Essentials(context.Background(), Request{FS: fs})
	require.NoError(t, err)
	require.True(t, exists(fs, "e2e/src/app.po.ts"))

	// the persisted record decides, so switch it the way a user would
	angular := readFile(t, fs, "angular.json")
	require.Contains(t, angular, `"cypress": false`)
	switched := strings.Replace(angular, `"cypress": false`, `"cypress": true`, 1)
	require.NoError(t, util.WriteFile(fs, "angular.json", []byte(switched), 0o644))

	res, err := e.Essentials(context.Background(), Request{FS: fs})
	require.NoError(t, err)
	require.Equal(t, api.E2ECypress, res.Options.E2E)
	assert.True(t, exists(fs, "cypress.json"))
	assert.False(t, exists(fs, "e2e/src"))
	assert.False(t, exists(fs, "e2e"))
}

func TestInstallFailureKeepsCommit(t *testing.T) {
	fs := newWorkspace(t)
	boom := errors.New("registry unreachable")
	counter := &countingInstaller{err: boom}
	e, _ := newEngine(t, counter.installer())

	res, err := e.Essentials(context.Background(), Request{FS: fs})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "install:")
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Changes)
	assert.True(t, exists(fs, ".prettierrc"))
}

func TestNilInstallerSkips(t *testing.T) {
	fs := newWorkspace(t)
	e, _ := newEngine(t, nil)
	_, err := e.Essentials(context.Background(), Request{FS: fs})
	require.NoError(t, err)
	assert.True(t, exists(fs, ".prettierrc"))
}

func TestChainErrorLeavesWorkspaceUntouched(t *testing.T) {
	fs := newWorkspace(t)
	require.NoError(t, util.WriteFile(fs, "tslint.json", []byte(`{"extends": `), 0o644))
	counter := &countingInstaller{}
	e, _ := newEngine(t, counter.installer())

	res, err := e.Essentials(context.Background(), Request{FS: fs})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "essentials/common/tslint-prettier")
	assert.True(t, exists(fs, "src/karma.conf.js"))
	assert.False(t, exists(fs, ".prettierrc"))
	assert.Zero(t, counter.calls)
}

func TestInvalidRecordFailsBeforeRunning(t *testing.T) {
	fs := newWorkspace(t)
	e, _ := newEngine(t, nil)
	_, err := e.Essentials(context.Background(), Request{FS: fs, Options: api.Options{TestFramework: "mocha"}})
	assert.ErrorIs(t, err, api.ErrInvalidOptions)
}

func TestCanceledContext(t *testing.T) {
	fs := newWorkspace(t)
	e, _ := newEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Essentials(ctx, Request{FS: fs})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, exists(fs, ".prettierrc"))
}

func TestLibrary(t *testing.T) {
	fs := newWorkspace(t)
	counter := &countingInstaller{}
	e, _ := newEngine(t, counter.installer())

	_, err := e.Essentials(context.Background(), Request{FS: fs, Options: api.Options{TestFramework: api.FrameworkJest}})
	require.NoError(t, err)

	res, err := e.Library(context.Background(), Request{FS: fs}, "dataAccess")
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)
	assert.Equal(t, api.FrameworkJest, res.Options.TestFramework)

	assert.True(t, exists(fs, "projects/data-access/src/public_api.ts"))
	assert.False(t, exists(fs, "projects/data-access/karma.conf.js"))
	assert.Contains(t, readFile(t, fs, "jest.config.js"), "roots: ['src', 'projects']")
	assert.Contains(t, readFile(t, fs, "package.json"), `"ng-packagr": "4.4.0"`)
}
