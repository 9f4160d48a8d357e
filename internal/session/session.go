// Package session implements the top-level broadcast session state machine:
// the playback clock, broadcast and recording orchestration, and status
// reporting.
package session

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nickdnj/VistterStudio-sub000/internal/compositor"
	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/event"
	"github.com/nickdnj/VistterStudio-sub000/internal/transport"
)

type action func()

const (
	defaultChanSize = 64

	playbackTickInterval = time.Second / 30
	statusInterval       = 5 * time.Second
)

// ErrAlreadyLive indicates a conflicting broadcast start. The caller must
// stop the active broadcast first; a second start is rejected, never
// queued.
var ErrAlreadyLive = errors.New("broadcast already live")

// Transport is the live transport consumed by the controller.
type Transport interface {
	StartStream(ctx context.Context, cfg domain.DestinationConfig) error
	StopStream(ctx context.Context) error
	SendFrame(frame []byte)
}

// Recorder is the recording manager consumed by the controller.
type Recorder interface {
	StartProcessing(base domain.DestinationConfig)
	StartRecording(ctx context.Context) (domain.RecordingSession, error)
	StopRecording(ctx context.Context) (domain.RecordingInfo, error)
	SendFrame(frame []byte)
}

// Compositor is the frame compositor consumed by the controller.
type Compositor interface {
	UpdateTimeline(timeline domain.Timeline)
	RenderAsync(pos time.Duration)
	Connect(sink compositor.FrameSink)
	Disconnect()
}

// Actor is the session controller. It is the sole writer of the playback
// position.
type Actor struct {
	actorC     chan action
	bus        *event.Bus
	compositor Compositor
	transport  Transport
	recorder   Recorder
	logger     *slog.Logger

	// mutable state, owned by the actor goroutine

	timeline  *domain.Timeline
	duration  time.Duration
	playback  domain.PlaybackState
	lastTick  time.Time
	broadcast *domain.BroadcastSession
	recording *domain.RecordingSession
	starting  bool
	connected bool
}

// NewActorParams contains the parameters for building a session controller.
type NewActorParams struct {
	Bus        *event.Bus
	Compositor Compositor
	Transport  Transport
	Recorder   Recorder
	ChanSize   int // defaults to 64
	Logger     *slog.Logger
}

// NewActor creates a new session controller and starts its loop.
func NewActor(ctx context.Context, params NewActorParams) *Actor {
	actor := &Actor{
		actorC:     make(chan action, cmp.Or(params.ChanSize, defaultChanSize)),
		bus:        params.Bus,
		compositor: params.Compositor,
		transport:  params.Transport,
		recorder:   params.Recorder,
		logger:     params.Logger,
		duration:   domain.MinTimelineDuration,
		playback:   domain.PlaybackState{Rate: 1},
	}

	go actor.actorLoop(ctx)

	return actor
}

// UpdateTimeline replaces the active timeline, recomputes the duration and
// forwards the timeline to the compositor. It always succeeds.
func (a *Actor) UpdateTimeline(timeline domain.Timeline) {
	cloned := timeline.Clone()

	a.actorC <- func() {
		a.timeline = &cloned
		a.duration = cloned.Duration()
		if a.playback.Position > a.duration {
			a.playback.Position = a.duration
		}

		a.compositor.UpdateTimeline(cloned)

		a.logger.Info("Timeline updated", "clips", cloned.ClipCount(), "duration", a.duration)
		a.bus.Send(event.TimelineChangedEvent{
			ClipCount: cloned.ClipCount(),
			Duration:  a.duration,
		})
	}
}

// Play starts playback. Playing while already playing is a no-op.
func (a *Actor) Play() {
	a.actorC <- func() {
		if a.playback.Playing {
			return
		}

		a.playback.Playing = true
		a.lastTick = time.Now()
		a.bus.Send(event.PlaybackStartedEvent{Position: a.playback.Position})
	}
}

// Pause pauses playback. Pausing while already paused is a no-op.
func (a *Actor) Pause() {
	a.actorC <- func() {
		if !a.playback.Playing {
			return
		}

		a.playback.Playing = false
		a.bus.Send(event.PlaybackPausedEvent{Position: a.playback.Position})
	}
}

// Stop stops playback and resets the position to zero. Stopping while
// already stopped is a no-op.
func (a *Actor) Stop() {
	a.actorC <- func() {
		if !a.playback.Playing && a.playback.Position == 0 {
			return
		}

		a.playback.Playing = false
		a.playback.Position = 0
		a.bus.Send(event.PlaybackStoppedEvent{})
	}
}

// SeekTo moves the playback position, clamped to the timeline bounds. The
// pause, seek and resume happen in one actor turn, so the render loop never
// observes a frame at a stale position.
func (a *Actor) SeekTo(pos time.Duration) {
	a.actorC <- func() {
		a.playback.Position = clamp(pos, 0, a.duration)
		a.lastTick = time.Now()
		a.bus.Send(event.PlaybackSeekedEvent{Position: a.playback.Position})
	}
}

// ToggleLoop flips looping playback.
func (a *Actor) ToggleLoop() {
	a.actorC <- func() {
		a.playback.Looping = !a.playback.Looping
	}
}

// StartBroadcast validates the config and goes live: it starts the
// transport (and the recorder, if requested), connects the compositor
// output and auto-starts playback if a timeline is loaded. Any downstream
// failure rolls back everything already started before the error is
// returned.
func (a *Actor) StartBroadcast(ctx context.Context, cfg domain.DestinationConfig, withRecording bool) error {
	// Validate up front so the stored session config and the reported
	// bitrate carry the applied defaults.
	if err := transport.ValidateConfig(&cfg); err != nil {
		return err
	}

	errC := make(chan error, 1)

	a.actorC <- func() {
		if a.broadcast != nil || a.starting {
			errC <- ErrAlreadyLive
			return
		}
		a.starting = true

		// Starting spawns an external process, so it runs off the actor
		// goroutine. The starting flag keeps concurrent start attempts
		// rejected in the meantime.
		go func() { errC <- a.startBroadcastSequence(ctx, cfg, withRecording) }()
	}

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) startBroadcastSequence(ctx context.Context, cfg domain.DestinationConfig, withRecording bool) error {
	clearStarting := func() {
		a.actorC <- func() { a.starting = false }
	}

	if err := a.transport.StartStream(ctx, cfg); err != nil {
		clearStarting()
		a.logger.Error("Broadcast start failed", "err", err)
		return err
	}

	var recSession *domain.RecordingSession
	if withRecording {
		a.recorder.StartProcessing(cfg)
		rec, err := a.recorder.StartRecording(ctx)
		if err != nil {
			// Roll back the transport so a failed start leaves the engine in
			// its pre-call state.
			if stopErr := a.transport.StopStream(ctx); stopErr != nil {
				a.logger.Error("Rollback of live stream failed", "err", stopErr)
			}
			clearStarting()
			a.logger.Error("Broadcast start failed", "err", err)
			return err
		}
		recSession = &rec
	}

	a.actorC <- func() {
		a.starting = false
		a.broadcast = &domain.BroadcastSession{
			ID:        uuid.New(),
			StartedAt: time.Now(),
			Config:    cfg,
		}
		a.recording = recSession
		a.updateConnection()

		if a.timeline != nil && !a.timeline.IsEmpty() && !a.playback.Playing {
			a.playback.Playing = true
			a.lastTick = time.Now()
			a.bus.Send(event.PlaybackStartedEvent{Position: a.playback.Position})
		}

		a.logger.Info("Broadcast started", "session_id", a.broadcast.ID, "config", cfg)
		a.bus.Send(event.BroadcastStartedEvent{
			SessionID: a.broadcast.ID,
			Platform:  cfg.Platform,
		})
	}

	return nil
}

// StopBroadcast ends the live broadcast. It is a no-op when not live. A
// downstream stop failure is logged but teardown continues regardless.
func (a *Actor) StopBroadcast(ctx context.Context) error {
	errC := make(chan error, 1)

	a.actorC <- func() {
		if a.broadcast == nil {
			errC <- nil
			return
		}

		sessionID := a.broadcast.ID

		go func() {
			if err := a.transport.StopStream(ctx); err != nil {
				a.logger.Error("Error stopping live stream", "err", err)
			}

			a.actorC <- func() {
				a.broadcast = nil
				a.updateConnection()
				a.logger.Info("Broadcast stopped", "session_id", sessionID)
				a.bus.Send(event.BroadcastStoppedEvent{SessionID: sessionID})
			}

			errC <- nil
		}()
	}

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartRecording starts a local recording, independent of broadcast state.
func (a *Actor) StartRecording(ctx context.Context) error {
	rec, err := a.recorder.StartRecording(ctx)
	if err != nil {
		return err
	}

	a.actorC <- func() {
		a.recording = &rec
		a.updateConnection()
	}

	return nil
}

// StopRecording ends the local recording and returns its summary. It is a
// no-op when not recording.
func (a *Actor) StopRecording(ctx context.Context) (domain.RecordingInfo, error) {
	info, err := a.recorder.StopRecording(ctx)

	a.actorC <- func() {
		a.recording = nil
		a.updateConnection()
	}

	return info, err
}

// Status returns a snapshot of the current engine state. It is safe to
// call before any timeline is loaded.
func (a *Actor) Status() domain.StatusSnapshot {
	resultC := make(chan domain.StatusSnapshot, 1)
	a.actorC <- func() { resultC <- a.buildStatus() }
	return <-resultC
}

func (a *Actor) buildStatus() domain.StatusSnapshot {
	status := domain.StatusSnapshot{
		Live:      a.broadcast != nil,
		Recording: a.recording != nil,
		Playback:  a.playback,
	}

	if a.timeline != nil {
		status.ClipCount = a.timeline.ClipCount()
	}
	if a.broadcast != nil {
		status.Uptime = time.Since(a.broadcast.StartedAt)
		status.BitrateKbps = a.broadcast.Config.BitrateKbps
	}

	return status
}

// updateConnection connects the compositor output whenever any encoder
// needs frames, and disconnects it when none does. The transport and
// recorder each ignore frames while inactive, so a single fan-out sink
// serves both without coupling them to each other.
func (a *Actor) updateConnection() {
	shouldConnect := a.broadcast != nil || a.recording != nil
	if shouldConnect == a.connected {
		return
	}

	if shouldConnect {
		a.compositor.Connect(fanoutSink{a.transport, a.recorder})
	} else {
		a.compositor.Disconnect()
	}
	a.connected = shouldConnect
}

// actorLoop is the main loop of the session controller. It owns the
// playback ticker and the status ticker.
func (a *Actor) actorLoop(ctx context.Context) {
	playbackT := time.NewTicker(playbackTickInterval)
	defer playbackT.Stop()

	statusT := time.NewTicker(statusInterval)
	defer statusT.Stop()

	for {
		select {
		case act := <-a.actorC:
			act()
		case now := <-playbackT.C:
			a.handlePlaybackTick(now)
		case <-statusT.C:
			a.bus.Send(event.StatusUpdatedEvent{Status: a.buildStatus()})
		case <-ctx.Done():
			return
		}
	}
}

// handlePlaybackTick advances the playback clock by the elapsed wall-clock
// time scaled by the rate multiplier, then requests a render at the new
// position without blocking the next tick.
func (a *Actor) handlePlaybackTick(now time.Time) {
	if !a.playback.Playing {
		a.lastTick = now
		return
	}

	delta := time.Duration(float64(now.Sub(a.lastTick)) * a.playback.Rate)
	a.lastTick = now
	a.advance(delta)

	a.compositor.RenderAsync(a.playback.Position)
}

// advance moves the playback position forward, wrapping at the timeline
// end when looping, or clamping to the end and pausing when not.
func (a *Actor) advance(delta time.Duration) {
	pos := a.playback.Position + delta
	if pos < a.duration {
		a.playback.Position = pos
		return
	}

	if a.playback.Looping {
		a.playback.Position = 0
		return
	}

	a.playback.Position = a.duration
	a.playback.Playing = false
	a.bus.Send(event.PlaybackPausedEvent{Position: a.playback.Position})
}

// fanoutSink forwards each frame to every output. Inactive outputs ignore
// frames, so fan-out is safe at all times.
type fanoutSink struct {
	transport Transport
	recorder  Recorder
}

// SendFrame implements the compositor.FrameSink interface.
func (s fanoutSink) SendFrame(frame []byte) {
	s.transport.SendFrame(frame)
	s.recorder.SendFrame(frame)
}

func clamp(v, lo, hi time.Duration) time.Duration {
	return min(max(v, lo), hi)
}
