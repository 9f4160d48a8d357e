// Package app wires the engine together and dispatches control-plane
// commands to the session controller.
package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nickdnj/VistterStudio-sub000/internal/compositor"
	"github.com/nickdnj/VistterStudio-sub000/internal/config"
	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/encoder"
	"github.com/nickdnj/VistterStudio-sub000/internal/event"
	"github.com/nickdnj/VistterStudio-sub000/internal/metrics"
	"github.com/nickdnj/VistterStudio-sub000/internal/recorder"
	"github.com/nickdnj/VistterStudio-sub000/internal/session"
	"github.com/nickdnj/VistterStudio-sub000/internal/transport"
)

const commandChanSize = 16

// App is the broadcast engine: one instance per process, with
// constructor-injected components and an explicit run lifecycle.
type App struct {
	bus        *event.Bus
	metrics    *metrics.Metrics
	session    *session.Actor
	recorder   *recorder.Actor
	transport  *transport.Actor
	compositor *compositor.Actor
	commandC   chan event.Command
	logger     *slog.Logger
}

// Params holds the parameters for building the engine.
type Params struct {
	Config config.Config
	Logger *slog.Logger
}

// New builds the engine. The actors run until ctx is cancelled.
func New(ctx context.Context, params Params) *App {
	logger := params.Logger
	cfg := params.Config

	bus := event.NewBus(logger.With("component", "bus"))
	m := metrics.New()

	launcher := &encoder.FFmpegLauncher{
		BinPath: cfg.Encoder.BinPath,
		Logger:  logger.With("component", "encoder"),
	}

	comp := compositor.NewActor(ctx, compositor.NewActorParams{
		Width:     cfg.Output.Width,
		Height:    cfg.Output.Height,
		FrameRate: cfg.Output.FrameRate,
		Metrics:   m,
		Logger:    logger.With("component", "compositor"),
	})

	trans := transport.NewActor(ctx, transport.NewActorParams{
		Launcher: launcher,
		Bus:      bus,
		Metrics:  m,
		Logger:   logger.With("component", "transport"),
	})

	rec := recorder.NewActor(ctx, recorder.NewActorParams{
		Launcher:       launcher,
		Bus:            bus,
		OutputDir:      cfg.Recordings.Directory,
		InputWidth:     cfg.Output.Width,
		InputHeight:    cfg.Output.Height,
		InputFrameRate: cfg.Output.FrameRate,
		Format:         cfg.Recordings.Format,
		BitrateKbps:    cfg.Recordings.BitrateKbps,
		Metrics:        m,
		Logger:         logger.With("component", "recorder"),
	})

	sess := session.NewActor(ctx, session.NewActorParams{
		Bus:        bus,
		Compositor: comp,
		Transport:  trans,
		Recorder:   rec,
		Logger:     logger.With("component", "session"),
	})

	return &App{
		bus:        bus,
		metrics:    m,
		session:    sess,
		recorder:   rec,
		transport:  trans,
		compositor: comp,
		commandC:   make(chan event.Command, commandChanSize),
		logger:     logger,
	}
}

// Bus returns the event bus, for control-plane consumers.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Metrics returns the engine metrics, for exposition by the host.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Status returns the current engine status.
func (a *App) Status() domain.StatusSnapshot {
	return a.session.Status()
}

// Recordings enumerates the recordings on disk.
func (a *App) Recordings() ([]domain.RecordingInfo, error) {
	return a.recorder.ListRecordings()
}

// DeleteRecording removes a recording from the output directory.
func (a *App) DeleteRecording(filename string) error {
	return a.recorder.DeleteRecording(filename)
}

// Dispatch queues a control-plane command for execution.
func (a *App) Dispatch(cmd event.Command) {
	a.commandC <- cmd
}

// Run executes the engine until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.handleCommands(ctx) })
	g.Go(func() error { return a.watchEvents(ctx) })

	return g.Wait()
}

func (a *App) handleCommands(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-a.commandC:
			a.logger.Debug("Command received", "cmd", cmd.Name())
			a.handleCommand(ctx, cmd)
		}
	}
}

func (a *App) handleCommand(ctx context.Context, cmd event.Command) {
	switch c := cmd.(type) {
	case event.CommandUpdateTimeline:
		a.session.UpdateTimeline(c.Document.ToTimeline())
	case event.CommandPlay:
		a.session.Play()
	case event.CommandPause:
		a.session.Pause()
	case event.CommandStop:
		a.session.Stop()
	case event.CommandSeekTo:
		a.session.SeekTo(c.Position)
	case event.CommandToggleLoop:
		a.session.ToggleLoop()
	case event.CommandStartBroadcast:
		if err := a.session.StartBroadcast(ctx, c.Config, c.WithRecording); err != nil {
			a.logger.Error("Broadcast start rejected", "err", err)
			a.bus.Send(event.BroadcastErrorEvent{Err: err})
		}
	case event.CommandStopBroadcast:
		if err := a.session.StopBroadcast(ctx); err != nil {
			a.logger.Error("Broadcast stop failed", "err", err)
		}
	case event.CommandStartRecording:
		if err := a.session.StartRecording(ctx); err != nil {
			a.logger.Error("Recording start rejected", "err", err)
			a.bus.Send(event.RecordingErrorEvent{Err: err})
		}
	case event.CommandStopRecording:
		if _, err := a.session.StopRecording(ctx); err != nil {
			a.logger.Error("Recording stop failed", "err", err)
		}
	default:
		a.logger.Warn("Unknown command", "cmd", cmd.Name())
	}
}

// watchEvents logs operator-relevant failure events, so a headless engine
// still leaves a trace when no control plane is attached.
func (a *App) watchEvents(ctx context.Context) error {
	broadcastErrC := a.bus.Register(event.EventNameBroadcastError)
	recordingErrC := a.bus.Register(event.EventNameRecordingError)
	stalledC := a.bus.Register(event.EventNameStreamStalled)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-broadcastErrC:
			if e, ok := evt.(event.BroadcastErrorEvent); ok {
				a.logger.Warn("Broadcast error", "err", e.Err)
			}
		case evt := <-recordingErrC:
			if e, ok := evt.(event.RecordingErrorEvent); ok {
				a.logger.Warn("Recording error", "err", e.Err)
			}
		case <-stalledC:
			a.logger.Warn("Stream stalled")
		}
	}
}
