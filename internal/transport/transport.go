// Package transport manages the external encoder process that turns raw
// frames into an outbound live stream.
package transport

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/encoder"
	"github.com/nickdnj/VistterStudio-sub000/internal/event"
	"github.com/nickdnj/VistterStudio-sub000/internal/metrics"
	"github.com/nickdnj/VistterStudio-sub000/internal/queue"
)

type action func()

const (
	defaultChanSize    = 64
	frameQueueCapacity = 60 // two seconds of frames at the default rate

	healthInterval  = 2 * time.Second
	stallThreshold  = 5 * time.Second
	stopGracePeriod = 5 * time.Second

	// An encoder exit this soon after starting is treated as a failed
	// start and classified from its diagnostic output.
	startupWindow = 10 * time.Second

	componentName = "transport"
)

// ErrAlreadyStreaming indicates a conflicting start. The caller must stop
// the active stream first.
var ErrAlreadyStreaming = errors.New("stream already active")

// Actor owns the live encoder process and its frame feed.
type Actor struct {
	actorC   chan action
	launcher encoder.Launcher
	bus      *event.Bus
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// mutable state, owned by the actor goroutine

	cfg           domain.DestinationConfig
	streaming     bool
	stopping      bool
	handle        encoder.Handle
	frames        *queue.Queue[[]byte]
	pumpCancel    context.CancelFunc
	startedAt     time.Time
	lastFrameAt   time.Time
	stalled       bool
	framesSent    uint64
	framesDropped uint64
	bytesSent     uint64
	prevSent      uint64
	prevTick      time.Time
}

// NewActorParams contains the parameters for building a transport actor.
type NewActorParams struct {
	Launcher encoder.Launcher
	Bus      *event.Bus
	ChanSize int // defaults to 64
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewActor creates a new transport actor and starts its loop.
func NewActor(ctx context.Context, params NewActorParams) *Actor {
	actor := &Actor{
		actorC:   make(chan action, cmp.Or(params.ChanSize, defaultChanSize)),
		launcher: params.Launcher,
		bus:      params.Bus,
		metrics:  params.Metrics,
		logger:   params.Logger,
	}

	go actor.actorLoop(ctx)

	return actor
}

// StartStream validates the config, resolves the destination URL, spawns
// the encoder process and begins accepting frames. It fails with
// [ErrAlreadyStreaming] if a stream is active, or [ErrConfigInvalid] if the
// config cannot be used.
func (a *Actor) StartStream(ctx context.Context, cfg domain.DestinationConfig) error {
	if err := ValidateConfig(&cfg); err != nil {
		return err
	}

	errC := make(chan error, 1)
	a.actorC <- func() {
		if a.streaming {
			errC <- ErrAlreadyStreaming
			return
		}

		a.logger.Info("Starting live stream", "config", cfg)

		handle, err := a.launcher.Launch(ctx, encoder.Params{
			Name: componentName,
			Args: buildEncoderArgs(cfg, targetURL(cfg)),
		})
		if err != nil {
			errC <- fmt.Errorf("launch encoder: %w", err)
			return
		}

		pumpCtx, cancel := context.WithCancel(context.Background())

		a.cfg = cfg
		a.streaming = true
		a.stopping = false
		a.stalled = false
		a.handle = handle
		a.frames = queue.NewQueue[[]byte](frameQueueCapacity)
		a.pumpCancel = cancel
		a.startedAt = time.Now()
		a.lastFrameAt = time.Time{}
		a.prevSent = 0
		a.prevTick = time.Now()

		go a.pumpLoop(pumpCtx, handle, a.frames)
		go a.watchProcess(handle, a.startedAt)
		go a.watchHints(handle)

		if a.metrics != nil {
			a.metrics.SetStreamLive(true)
		}

		errC <- nil
	}

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopStream signals graceful termination to the encoder, escalating to a
// forceful kill after the grace period, then resets all counters. It is
// idempotent: stopping while not streaming is a no-op.
func (a *Actor) StopStream(ctx context.Context) error {
	errC := make(chan error, 1)
	a.actorC <- func() {
		if !a.streaming {
			errC <- nil
			return
		}

		a.logger.Info("Stopping live stream")

		a.stopping = true
		handle := a.handle
		a.pumpCancel()

		// Waiting for the process happens off the actor goroutine so frame
		// and health handling is not blocked during the grace period.
		go func() {
			err := handle.Stop(ctx, stopGracePeriod)

			a.actorC <- func() {
				a.resetStream()
			}

			errC <- err
		}()
	}

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendFrame pushes a frame towards the encoder without blocking. If the
// internal buffer is full the frame is counted as dropped: live output
// favours dropping frames over growing latency.
func (a *Actor) SendFrame(frame []byte) {
	a.actorC <- func() {
		if !a.streaming || a.stopping {
			return
		}

		if !a.frames.TryPush(frame) {
			a.framesDropped++
			if a.metrics != nil {
				a.metrics.IncFramesDropped()
			}
		}
	}
}

// UpdateConfig replaces the stored destination config. Permitted only while
// not streaming; otherwise the update is ignored with a warning.
func (a *Actor) UpdateConfig(cfg domain.DestinationConfig) {
	a.actorC <- func() {
		if a.streaming {
			a.logger.Warn("Ignoring config update while streaming")
			return
		}
		a.cfg = cfg
	}
}

// IsStreaming reports whether a live stream is active.
func (a *Actor) IsStreaming() bool {
	resultC := make(chan bool, 1)
	a.actorC <- func() { resultC <- a.streaming }
	return <-resultC
}

// Health returns the current health snapshot.
func (a *Actor) Health() domain.HealthSnapshot {
	resultC := make(chan domain.HealthSnapshot, 1)
	a.actorC <- func() { resultC <- a.buildHealthSnapshot(time.Now()) }
	return <-resultC
}

// actorLoop is the main loop of the transport actor. It owns the health
// ticker and exits when the parent context is cancelled.
func (a *Actor) actorLoop(ctx context.Context) {
	healthT := time.NewTicker(healthInterval)
	defer healthT.Stop()

	for {
		select {
		case act := <-a.actorC:
			act()
		case now := <-healthT.C:
			a.handleHealthTick(now)
		case <-ctx.Done():
			if a.pumpCancel != nil {
				a.pumpCancel()
			}
			return
		}
	}
}

// pumpLoop drains the frame queue into the encoder's input in send order.
func (a *Actor) pumpLoop(ctx context.Context, handle encoder.Handle, frames *queue.Queue[[]byte]) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames.C():
			if err := handle.Write(frame); err != nil {
				a.logger.Error("Error writing frame to encoder", "err", err)
				a.actorC <- func() {
					if a.streaming && !a.stopping {
						a.bus.Send(event.BroadcastErrorEvent{Err: err})
					}
				}
				return
			}

			size := len(frame)
			a.actorC <- func() {
				a.framesSent++
				a.bytesSent += uint64(size)
				a.lastFrameAt = time.Now()
				if a.metrics != nil {
					a.metrics.IncFramesSent(size)
				}
			}
		}
	}
}

// watchProcess surfaces an encoder exit. An exit during active streaming is
// reported as an event but does not flip the streaming flag: only an
// explicit stop, or a failed start, does. This avoids racing a natural exit
// against a concurrent stop.
func (a *Actor) watchProcess(handle encoder.Handle, startedAt time.Time) {
	status, ok := <-handle.Done()
	if !ok {
		return
	}

	a.actorC <- func() {
		if !a.streaming || a.handle != handle || a.stopping {
			return
		}

		err := status.Err
		if err == nil && time.Since(startedAt) < startupWindow {
			err = encoder.StartErrFromLogs(handle.Logs())
		}
		if err == nil {
			err = fmt.Errorf("encoder exited with code %d", status.ExitCode)
		}

		a.logger.Error("Encoder process exited during streaming", "err", err, "exit_code", status.ExitCode)
		a.bus.Send(event.BroadcastErrorEvent{Err: err})
	}
}

// watchHints forwards diagnostic hints from the encoder output. Hints are
// informational only and never affect health counters or state.
func (a *Actor) watchHints(handle encoder.Handle) {
	for hint := range handle.Hints() {
		a.logger.Debug("Encoder diagnostic", "hint", hint)
		a.bus.Send(event.EncoderDiagnosticEvent{Component: componentName, Hint: hint})
	}
}

func (a *Actor) handleHealthTick(now time.Time) {
	if !a.streaming {
		return
	}

	snapshot := a.buildHealthSnapshot(now)
	a.prevSent = a.framesSent
	a.prevTick = now

	if a.metrics != nil {
		a.metrics.SetBufferHealth(snapshot.BufferHealthPercent)
	}

	a.bus.Send(event.HealthUpdatedEvent{Health: snapshot})

	// Stalled: frames were flowing, but none have been sent recently while
	// still marked streaming. Signalled once per stall, with no automatic
	// recovery attempt.
	if !a.lastFrameAt.IsZero() && now.Sub(a.lastFrameAt) > stallThreshold {
		if !a.stalled {
			a.stalled = true
			a.logger.Warn("Stream stalled", "last_frame_at", a.lastFrameAt)
			a.bus.Send(event.StreamStalledEvent{LastFrameAt: a.lastFrameAt})
		}
	} else {
		a.stalled = false
	}
}

func (a *Actor) buildHealthSnapshot(now time.Time) domain.HealthSnapshot {
	snapshot := domain.HealthSnapshot{
		FramesSent:    a.framesSent,
		FramesDropped: a.framesDropped,
		BytesSent:     a.bytesSent,
	}

	if elapsed := now.Sub(a.prevTick).Seconds(); elapsed > 0 {
		snapshot.AverageFps = float64(a.framesSent-a.prevSent) / elapsed
	}
	if total := a.framesSent + a.framesDropped; total > 0 {
		snapshot.DropRatePercent = 100 * float64(a.framesDropped) / float64(total)
	}

	switch {
	case !a.streaming:
		snapshot.ConnectionStatus = domain.ConnectionStatusOffline
		snapshot.BufferHealthPercent = 100
	case a.stalled:
		snapshot.ConnectionStatus = domain.ConnectionStatusStalled
	case a.framesSent == 0:
		snapshot.ConnectionStatus = domain.ConnectionStatusStarting
	default:
		snapshot.ConnectionStatus = domain.ConnectionStatusStreaming
	}

	if a.frames != nil {
		snapshot.BufferHealthPercent = 100 * float64(a.frames.Cap()-a.frames.Len()) / float64(a.frames.Cap())
	}

	return snapshot
}

// resetStream clears all per-stream state and counters.
func (a *Actor) resetStream() {
	a.streaming = false
	a.stopping = false
	a.stalled = false
	a.handle = nil
	a.frames = nil
	a.pumpCancel = nil
	a.framesSent = 0
	a.framesDropped = 0
	a.bytesSent = 0
	a.prevSent = 0
	a.lastFrameAt = time.Time{}

	if a.metrics != nil {
		a.metrics.SetStreamLive(false)
		a.metrics.SetBufferHealth(100)
	}
}

// buildEncoderArgs builds the ffmpeg invocation: raw RGBA frames on stdin,
// H.264 in an FLV container to the destination URL.
func buildEncoderArgs(cfg domain.DestinationConfig, url string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "level+error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height),
		"-r", strconv.Itoa(cfg.FrameRate),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(cfg.BitrateKbps) + "k",
		"-maxrate", strconv.Itoa(cfg.BitrateKbps) + "k",
		"-bufsize", strconv.Itoa(2*cfg.BitrateKbps) + "k",
		"-g", strconv.Itoa(2 * cfg.FrameRate),
	}
	args = append(args, cfg.CodecParams...)
	return append(args, "-f", "flv", url)
}
