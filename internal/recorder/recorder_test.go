package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/encoder"
	"github.com/nickdnj/VistterStudio-sub000/internal/event"
	"github.com/nickdnj/VistterStudio-sub000/internal/testhelpers"
)

type mockHandle struct {
	exitOnce sync.Once
	doneC    chan encoder.ExitStatus
	hintC    chan string
}

func newMockHandle() *mockHandle {
	return &mockHandle{
		doneC: make(chan encoder.ExitStatus, 1),
		hintC: make(chan string, 1),
	}
}

func (h *mockHandle) Write([]byte) error { return nil }

func (h *mockHandle) Stop(context.Context, time.Duration) error {
	h.exitOnce.Do(func() {
		h.doneC <- encoder.ExitStatus{}
		close(h.doneC)
		close(h.hintC)
	})
	return nil
}

func (h *mockHandle) Done() <-chan encoder.ExitStatus { return h.doneC }
func (h *mockHandle) Hints() <-chan string            { return h.hintC }
func (h *mockHandle) Logs() [][]byte                  { return nil }

// mockLauncher creates the output file named by the final argument, like a
// real encoder would, so stopped recordings can be stat'ed and listed.
type mockLauncher struct {
	mu     sync.Mutex
	params []encoder.Params
}

func (l *mockLauncher) Launch(_ context.Context, params encoder.Params) (encoder.Handle, error) {
	l.mu.Lock()
	l.params = append(l.params, params)
	l.mu.Unlock()

	outputPath := params.Args[len(params.Args)-1]
	if err := os.WriteFile(outputPath, []byte("data"), 0644); err != nil {
		return nil, err
	}

	return newMockHandle(), nil
}

func newTestActor(t *testing.T, bus *event.Bus, outputDir string) *Actor {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if bus == nil {
		bus = event.NewBus(testhelpers.NewNopLogger())
	}

	return NewActor(ctx, NewActorParams{
		Launcher:  &mockLauncher{},
		Bus:       bus,
		OutputDir: outputDir,
		Logger:    testhelpers.NewNopLogger(),
	})
}

func TestStartRecordingNotInitialized(t *testing.T) {
	actor := newTestActor(t, nil, t.TempDir())

	_, err := actor.StartRecording(t.Context())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestRecordingLifecycle(t *testing.T) {
	outputDir := t.TempDir()

	bus := event.NewBus(testhelpers.NewNopLogger())
	startedC := bus.Register(event.EventNameRecordingStarted)
	stoppedC := bus.Register(event.EventNameRecordingStopped)

	actor := newTestActor(t, bus, outputDir)
	actor.StartProcessing(domain.DestinationConfig{Width: 1920, Height: 1080, FrameRate: 30, BitrateKbps: 3500})

	session, err := actor.StartRecording(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.True(t, strings.HasPrefix(filepath.Base(session.OutputPath), "recording_"))
	assert.Equal(t, outputDir, filepath.Dir(session.OutputPath))
	assert.Equal(t, 7000, session.Config.BitrateKbps, "recordings run at double the broadcast bitrate")
	assert.True(t, actor.IsRecording())

	evt := (<-startedC).(event.RecordingStartedEvent)
	assert.Equal(t, session.ID, evt.RecordingID)

	_, err = actor.StartRecording(t.Context())
	require.ErrorIs(t, err, ErrAlreadyRecording)

	info, err := actor.StopRecording(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.ID, info.ID)
	assert.Equal(t, filepath.Base(session.OutputPath), info.Filename)
	assert.Positive(t, info.SizeBytes)
	assert.False(t, actor.IsRecording())

	stopped := (<-stoppedC).(event.RecordingStoppedEvent)
	assert.Equal(t, info.Filename, stopped.Info.Filename)

	// A fresh cycle gets its own identity and file.
	second, err := actor.StartRecording(t.Context())
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, second.ID)
	assert.False(t, second.StartedAt.Before(session.StartedAt))

	_, err = actor.StopRecording(t.Context())
	require.NoError(t, err)
}

func TestConfiguredFormatAndBitrate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	actor := NewActor(ctx, NewActorParams{
		Launcher:    &mockLauncher{},
		Bus:         event.NewBus(testhelpers.NewNopLogger()),
		OutputDir:   t.TempDir(),
		Format:      "mkv",
		BitrateKbps: 8000,
		Logger:      testhelpers.NewNopLogger(),
	})
	actor.StartProcessing(domain.DestinationConfig{Width: 1920, Height: 1080, FrameRate: 30, BitrateKbps: 3500})

	session, err := actor.StartRecording(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = actor.StopRecording(context.Background()) })

	assert.Equal(t, "mkv", session.Config.Format, "configured format overrides the default")
	assert.Equal(t, 8000, session.Config.BitrateKbps, "configured bitrate overrides the broadcast-derived default")
	assert.True(t, strings.HasSuffix(session.OutputPath, ".mkv"))
}

func TestStopRecordingWhenIdle(t *testing.T) {
	actor := newTestActor(t, nil, t.TempDir())

	info, err := actor.StopRecording(t.Context())
	require.NoError(t, err)
	assert.Zero(t, info)
}

func TestListRecordings(t *testing.T) {
	outputDir := t.TempDir()
	actor := newTestActor(t, nil, outputDir)

	infos, err := actor.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, infos)

	for _, name := range []string{"recording_20260101_120000_aaaa.mp4", "recording_20260102_120000_bbbb.mp4", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(outputDir, name), []byte("data"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(outputDir, "recording_subdir"), 0755))

	infos, err = actor.ListRecordings()
	require.NoError(t, err)
	require.Len(t, infos, 2, "only recording files are listed")
	assert.Equal(t, "recording_20260102_120000_bbbb.mp4", infos[0].Filename, "newest first")
	assert.Equal(t, "recording_20260101_120000_aaaa.mp4", infos[1].Filename)
	assert.EqualValues(t, 4, infos[0].SizeBytes)
}

func TestListRecordingsMissingDir(t *testing.T) {
	actor := newTestActor(t, nil, filepath.Join(t.TempDir(), "never-created"))

	infos, err := actor.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestDeleteRecording(t *testing.T) {
	outputDir := t.TempDir()
	actor := newTestActor(t, nil, outputDir)

	name := "recording_20260101_120000_aaaa.mp4"
	path := filepath.Join(outputDir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	outside := filepath.Join(filepath.Dir(outputDir), "outside.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("data"), 0644))

	require.ErrorIs(t, actor.DeleteRecording("nonexistent.mp4"), ErrRecordingNotFound)

	// Path components are stripped, so traversal cannot reach files
	// outside the output directory.
	require.ErrorIs(t, actor.DeleteRecording("../outside.mp4"), ErrRecordingNotFound)
	assert.FileExists(t, outside)

	require.NoError(t, actor.DeleteRecording("ignored/dir/"+name))
	assert.NoFileExists(t, path)
}
