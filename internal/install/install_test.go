package install

import (
	"context"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	called := false
	var i Installer = Func(func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, i.Install(context.Background()))
	assert.True(t, called)
}

func TestNpmInstaller(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on true/false binaries")
	}
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not on PATH", bin)
		}
	}

	ok := &NpmInstaller{Dir: t.TempDir(), Command: "true"}
	assert.NoError(t, ok.Install(context.Background()))

	failing := &NpmInstaller{Dir: t.TempDir(), Command: "false"}
	err := failing.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "false install failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, ok.Install(ctx))
}
