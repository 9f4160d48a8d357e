package transport

import (
	"context"
	"errors"
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
	mu          sync.Mutex
	blockWrites chan struct{} // when set, Write blocks until this is closed
	writeBegunC chan struct{}
	writeErr    error
	written     int
	stopped     bool
	stopGrace   time.Duration
	logs        [][]byte

	exitOnce sync.Once
	doneC    chan encoder.ExitStatus
	hintC    chan string
}

func newMockHandle() *mockHandle {
	return &mockHandle{
		writeBegunC: make(chan struct{}, 1),
		doneC:       make(chan encoder.ExitStatus, 1),
		hintC:       make(chan string, 1),
	}
}

func (h *mockHandle) Write(frame []byte) error {
	select {
	case h.writeBegunC <- struct{}{}:
	default:
	}

	h.mu.Lock()
	blockWrites := h.blockWrites
	h.mu.Unlock()
	if blockWrites != nil {
		<-blockWrites
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.writeErr != nil {
		return h.writeErr
	}
	h.written++
	return nil
}

func (h *mockHandle) Stop(_ context.Context, grace time.Duration) error {
	h.mu.Lock()
	h.stopped = true
	h.stopGrace = grace
	h.mu.Unlock()

	h.exit(encoder.ExitStatus{})
	return nil
}

func (h *mockHandle) Done() <-chan encoder.ExitStatus { return h.doneC }
func (h *mockHandle) Hints() <-chan string            { return h.hintC }

func (h *mockHandle) Logs() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logs
}

func (h *mockHandle) exit(status encoder.ExitStatus) {
	h.exitOnce.Do(func() {
		h.doneC <- status
		close(h.doneC)
		close(h.hintC)
	})
}

type mockLauncher struct {
	mu     sync.Mutex
	handle *mockHandle
	err    error
	params []encoder.Params
}

func (l *mockLauncher) Launch(_ context.Context, params encoder.Params) (encoder.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.params = append(l.params, params)
	if l.err != nil {
		return nil, l.err
	}
	return l.handle, nil
}

func (l *mockLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.params)
}

func newTestActor(t *testing.T, launcher encoder.Launcher, bus *event.Bus) *Actor {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if bus == nil {
		bus = event.NewBus(testhelpers.NewNopLogger())
	}

	return NewActor(ctx, NewActorParams{
		Launcher: launcher,
		Bus:      bus,
		Logger:   testhelpers.NewNopLogger(),
	})
}

func testConfig() domain.DestinationConfig {
	return domain.DestinationConfig{Platform: domain.PlatformYouTube, StreamKey: "abcd-1234"}
}

func TestStartAndStopStream(t *testing.T) {
	handle := newMockHandle()
	launcher := &mockLauncher{handle: handle}
	actor := newTestActor(t, launcher, nil)

	require.NoError(t, actor.StartStream(t.Context(), testConfig()))
	assert.True(t, actor.IsStreaming())

	launcher.mu.Lock()
	args := launcher.params[0].Args
	launcher.mu.Unlock()
	assert.Contains(t, args, "rawvideo")
	assert.Contains(t, args, "rtmp://a.rtmp.youtube.com/live2/abcd-1234")

	require.ErrorIs(t, actor.StartStream(t.Context(), testConfig()), ErrAlreadyStreaming)
	assert.True(t, actor.IsStreaming(), "a rejected start must not disturb the active stream")
	assert.Equal(t, 1, launcher.launchCount())

	require.NoError(t, actor.StopStream(t.Context()))
	assert.False(t, actor.IsStreaming())

	handle.mu.Lock()
	assert.True(t, handle.stopped)
	assert.Equal(t, stopGracePeriod, handle.stopGrace)
	handle.mu.Unlock()

	health := actor.Health()
	assert.Equal(t, domain.ConnectionStatusOffline, health.ConnectionStatus)
	assert.Zero(t, health.FramesSent)

	require.NoError(t, actor.StopStream(t.Context()), "stopping while not streaming is a no-op")
}

func TestStartStreamErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		launcher := &mockLauncher{handle: newMockHandle()}
		actor := newTestActor(t, launcher, nil)

		err := actor.StartStream(t.Context(), domain.DestinationConfig{Platform: domain.PlatformCustom})
		require.ErrorIs(t, err, ErrConfigInvalid)
		assert.Zero(t, launcher.launchCount(), "invalid config must be rejected before launch")
	})

	t.Run("launch failure", func(t *testing.T) {
		launcher := &mockLauncher{err: errors.New("ffmpeg not found")}
		actor := newTestActor(t, launcher, nil)

		err := actor.StartStream(t.Context(), testConfig())
		require.ErrorContains(t, err, "launch encoder")
		assert.False(t, actor.IsStreaming())
	})
}

func TestSendFrameDropAccounting(t *testing.T) {
	handle := newMockHandle()
	handle.blockWrites = make(chan struct{})
	launcher := &mockLauncher{handle: handle}

	bus := event.NewBus(testhelpers.NewNopLogger())
	testhelpers.ChanDiscard(bus.Register(event.EventNameHealthUpdated))

	actor := newTestActor(t, launcher, bus)

	require.NoError(t, actor.StartStream(t.Context(), testConfig()))

	frame := []byte{0, 0, 0, 255}

	// One frame in flight, stuck in the blocked write, leaving the queue
	// empty before the flood.
	actor.SendFrame(frame)
	select {
	case <-handle.writeBegunC:
	case <-time.After(time.Second):
		t.Fatal("pump never picked up the first frame")
	}

	const total = 200
	for range total - 1 {
		actor.SendFrame(frame)
	}

	wantDropped := uint64(total - frameQueueCapacity - 1)
	require.Eventually(
		t,
		func() bool { return actor.Health().FramesDropped == wantDropped },
		2*time.Second,
		10*time.Millisecond,
		"frames beyond the in-flight one and the queue capacity must be counted as dropped",
	)
	assert.Zero(t, actor.Health().FramesSent)

	close(handle.blockWrites)

	require.Eventually(
		t,
		func() bool { return actor.Health().FramesSent == uint64(frameQueueCapacity+1) },
		2*time.Second,
		10*time.Millisecond,
		"queued frames must be delivered in order once writes resume",
	)
	assert.Equal(t, wantDropped, actor.Health().FramesDropped)
}

func TestEncoderExitDuringStreaming(t *testing.T) {
	handle := newMockHandle()
	handle.logs = [][]byte{
		[]byte("[tcp @ 0x7f9b86637ec0] [error] Failed to resolve hostname live.example.com: Name does not resolve"),
		[]byte("[out#0/flv @ 0x7f9b8a5e3780] [fatal] Error opening output: I/O error"),
	}
	launcher := &mockLauncher{handle: handle}

	bus := event.NewBus(testhelpers.NewNopLogger())
	errC := bus.Register(event.EventNameBroadcastError)

	actor := newTestActor(t, launcher, bus)
	require.NoError(t, actor.StartStream(t.Context(), testConfig()))

	handle.exit(encoder.ExitStatus{ExitCode: 1})

	select {
	case evt := <-errC:
		require.ErrorIs(t, evt.(event.BroadcastErrorEvent).Err, encoder.ErrUnknownHost)
	case <-time.After(time.Second):
		t.Fatal("no broadcast error event after encoder exit")
	}

	assert.True(t, actor.IsStreaming(), "an encoder exit is surfaced, not silently cleaned up")
}

func TestEncoderHintsForwarded(t *testing.T) {
	handle := newMockHandle()
	launcher := &mockLauncher{handle: handle}

	bus := event.NewBus(testhelpers.NewNopLogger())
	hintC := bus.Register(event.EventNameEncoderDiagnostic)

	actor := newTestActor(t, launcher, bus)
	require.NoError(t, actor.StartStream(t.Context(), testConfig()))

	handle.hintC <- "encoder reported dropped data: 3 frames dropped"

	select {
	case evt := <-hintC:
		assert.Contains(t, evt.(event.EncoderDiagnosticEvent).Hint, "dropped")
	case <-time.After(time.Second):
		t.Fatal("no diagnostic event")
	}
}

func TestUpdateConfigWhileStreaming(t *testing.T) {
	handle := newMockHandle()
	launcher := &mockLauncher{handle: handle}
	actor := newTestActor(t, launcher, nil)

	require.NoError(t, actor.StartStream(t.Context(), testConfig()))

	updated := testConfig()
	updated.BitrateKbps = 9000
	actor.UpdateConfig(updated)

	require.NoError(t, actor.StopStream(t.Context()))

	// The update was ignored, so a restart still uses the original config.
	require.NoError(t, actor.StartStream(t.Context(), testConfig()))

	launcher.mu.Lock()
	defer launcher.mu.Unlock()
	require.Len(t, launcher.params, 2)
	assert.NotContains(t, launcher.params[1].Args, "9000k")
}
