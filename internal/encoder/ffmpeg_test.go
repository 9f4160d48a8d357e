package encoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickdnj/VistterStudio-sub000/internal/testhelpers"
)

func TestFFmpegLauncherStartFailure(t *testing.T) {
	launcher := &FFmpegLauncher{BinPath: "/nonexistent/encoder-binary", Logger: testhelpers.NewNopLogger()}

	_, err := launcher.Launch(t.Context(), Params{Name: "test"})
	require.ErrorContains(t, err, "start /nonexistent/encoder-binary")
}

func TestFFmpegProcessLifecycle(t *testing.T) {
	launcher := &FFmpegLauncher{BinPath: "sh", Logger: testhelpers.NewNopLogger()}

	handle, err := launcher.Launch(t.Context(), Params{
		Name: "test",
		Args: []string{"-c", `echo "[error] 3 frames dropped" >&2; cat >/dev/null`},
	})
	require.NoError(t, err)

	require.NoError(t, handle.Write([]byte{0, 0, 0, 255}))

	select {
	case hint := <-handle.Hints():
		assert.Contains(t, hint, "dropped")
	case <-time.After(2 * time.Second):
		t.Fatal("no hint from diagnostic output")
	}

	require.Eventually(
		t,
		func() bool { return len(handle.Logs()) > 0 },
		2*time.Second,
		10*time.Millisecond,
	)
	assert.Contains(t, string(handle.Logs()[0]), "frames dropped")

	// Closing stdin lets the process finish on its own, well within the
	// grace period.
	require.NoError(t, handle.Stop(t.Context(), 5*time.Second))
}

func TestFFmpegProcessExitStatus(t *testing.T) {
	launcher := &FFmpegLauncher{BinPath: "sh", Logger: testhelpers.NewNopLogger()}

	handle, err := launcher.Launch(t.Context(), Params{Name: "test", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)

	select {
	case status := <-handle.Done():
		assert.Equal(t, 3, status.ExitCode)
		assert.NoError(t, status.Err, "an encoder exit code is not a spawn error")
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}
}
