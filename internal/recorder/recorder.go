// Package recorder manages the encoder process that persists composited
// output to local storage, independently of the live transport.
package recorder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/encoder"
	"github.com/nickdnj/VistterStudio-sub000/internal/event"
	"github.com/nickdnj/VistterStudio-sub000/internal/metrics"
	"github.com/nickdnj/VistterStudio-sub000/internal/queue"
	"github.com/nickdnj/VistterStudio-sub000/internal/shortid"
)

type action func()

const (
	defaultChanSize    = 64
	frameQueueCapacity = 60
	defaultFormat      = "mp4"

	componentName = "recorder"
)

// Errors returned by the recorder.
var (
	ErrAlreadyRecording  = errors.New("recording already active")
	ErrNotInitialized    = errors.New("recording pipeline not configured")
	ErrRecordingNotFound = errors.New("recording not found")
)

// Actor owns the recording encoder process and the recording output
// directory. It holds no reference to the live transport: both may run
// concurrently and stopping one never stops or blocks the other.
type Actor struct {
	actorC    chan action
	launcher  encoder.Launcher
	bus       *event.Bus
	metrics   *metrics.Metrics
	logger    *slog.Logger
	outputDir string

	// input dimensions of frames arriving from the compositor
	inputWidth     int
	inputHeight    int
	inputFrameRate int

	// configured recording defaults, may be zero
	format      string
	bitrateKbps int

	// mutable state, owned by the actor goroutine

	cfg        *domain.RecordingConfig
	session    *domain.RecordingSession
	handle     encoder.Handle
	frames     *queue.Queue[[]byte]
	pumpCancel context.CancelFunc
	stopping   bool
	dropped    uint64
}

// NewActorParams contains the parameters for building a recorder actor.
type NewActorParams struct {
	Launcher       encoder.Launcher
	Bus            *event.Bus
	OutputDir      string
	InputWidth     int    // defaults to 1920
	InputHeight    int    // defaults to 1080
	InputFrameRate int    // defaults to 30
	Format         string // defaults to "mp4"
	BitrateKbps    int    // defaults to twice the broadcast bitrate
	ChanSize       int    // defaults to 64
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewActor creates a new recorder actor and starts its loop.
func NewActor(ctx context.Context, params NewActorParams) *Actor {
	actor := &Actor{
		actorC:         make(chan action, cmp.Or(params.ChanSize, defaultChanSize)),
		launcher:       params.Launcher,
		bus:            params.Bus,
		metrics:        params.Metrics,
		logger:         params.Logger,
		outputDir:      params.OutputDir,
		inputWidth:     cmp.Or(params.InputWidth, 1920),
		inputHeight:    cmp.Or(params.InputHeight, 1080),
		inputFrameRate: cmp.Or(params.InputFrameRate, 30),
		format:         params.Format,
		bitrateKbps:    params.BitrateKbps,
	}

	go actor.actorLoop(ctx)

	return actor
}

// StartProcessing derives and stores recording settings from the broadcast
// config. The configured recording bitrate and format take precedence;
// otherwise recordings are kept at twice the broadcast bitrate. It does not
// itself begin encoding.
func (a *Actor) StartProcessing(base domain.DestinationConfig) {
	a.actorC <- func() {
		a.cfg = &domain.RecordingConfig{
			Width:       cmp.Or(base.Width, a.inputWidth),
			Height:      cmp.Or(base.Height, a.inputHeight),
			FrameRate:   cmp.Or(base.FrameRate, a.inputFrameRate),
			BitrateKbps: cmp.Or(a.bitrateKbps, base.BitrateKbps*2, 7000),
			Format:      cmp.Or(a.format, defaultFormat),
		}
		a.logger.Info("Recording pipeline configured", "width", a.cfg.Width, "height", a.cfg.Height, "bitrate_kbps", a.cfg.BitrateKbps)
	}
}

// StartRecording spawns an independent encoder process writing to a
// timestamped file in the output directory. It fails with
// [ErrNotInitialized] if the pipeline was never configured, or
// [ErrAlreadyRecording] if a recording is active.
func (a *Actor) StartRecording(ctx context.Context) (domain.RecordingSession, error) {
	type result struct {
		session domain.RecordingSession
		err     error
	}
	resultC := make(chan result, 1)

	a.actorC <- func() {
		if a.cfg == nil {
			resultC <- result{err: ErrNotInitialized}
			return
		}
		if a.session != nil {
			resultC <- result{err: ErrAlreadyRecording}
			return
		}

		if err := os.MkdirAll(a.outputDir, 0755); err != nil {
			resultC <- result{err: fmt.Errorf("create output dir: %w", err)}
			return
		}

		now := time.Now()
		id := shortid.New().String()
		filename := fmt.Sprintf("recording_%s_%s.%s", now.Format("20060102_150405"), id, a.cfg.Format)
		outputPath := filepath.Join(a.outputDir, filename)

		a.logger.Info("Starting recording", "id", id, "path", outputPath)

		handle, err := a.launcher.Launch(ctx, encoder.Params{
			Name: componentName,
			Args: a.buildEncoderArgs(outputPath),
		})
		if err != nil {
			resultC <- result{err: fmt.Errorf("launch encoder: %w", err)}
			return
		}

		pumpCtx, cancel := context.WithCancel(context.Background())

		a.session = &domain.RecordingSession{
			ID:         id,
			StartedAt:  now,
			OutputPath: outputPath,
			Config:     *a.cfg,
		}
		a.handle = handle
		a.frames = queue.NewQueue[[]byte](frameQueueCapacity)
		a.pumpCancel = cancel
		a.stopping = false
		a.dropped = 0

		go a.pumpLoop(pumpCtx, handle, a.frames)
		go a.watchProcess(handle)
		go a.watchHints(handle)

		if a.metrics != nil {
			a.metrics.IncRecordings()
			a.metrics.SetRecordingActive(true)
		}

		a.bus.Send(event.RecordingStartedEvent{RecordingID: id, OutputPath: outputPath})

		resultC <- result{session: *a.session}
	}

	select {
	case res := <-resultC:
		return res.session, res.err
	case <-ctx.Done():
		return domain.RecordingSession{}, ctx.Err()
	}
}

// StopRecording signals graceful shutdown and waits for the encoder to
// finish flushing. There is no forced-kill escalation: recordings are
// allowed to complete. Stopping while not recording is a no-op.
func (a *Actor) StopRecording(ctx context.Context) (domain.RecordingInfo, error) {
	type result struct {
		info domain.RecordingInfo
		err  error
	}
	resultC := make(chan result, 1)

	a.actorC <- func() {
		if a.session == nil {
			resultC <- result{}
			return
		}

		session := *a.session
		handle := a.handle
		a.stopping = true
		a.pumpCancel()

		a.logger.Info("Stopping recording", "id", session.ID)

		go func() {
			err := handle.Stop(ctx, 0)

			info := domain.RecordingInfo{
				ID:        session.ID,
				Filename:  filepath.Base(session.OutputPath),
				Duration:  time.Since(session.StartedAt),
				Width:     session.Config.Width,
				Height:    session.Config.Height,
				StartTime: session.StartedAt,
			}
			if stat, statErr := os.Stat(session.OutputPath); statErr == nil {
				info.SizeBytes = stat.Size()
			}

			a.actorC <- func() {
				a.resetRecording()
				a.bus.Send(event.RecordingStoppedEvent{Info: info})
			}

			resultC <- result{info: info, err: err}
		}()
	}

	select {
	case res := <-resultC:
		return res.info, res.err
	case <-ctx.Done():
		return domain.RecordingInfo{}, ctx.Err()
	}
}

// SendFrame pushes a frame towards the recording encoder without blocking.
// Full-buffer frames are dropped.
func (a *Actor) SendFrame(frame []byte) {
	a.actorC <- func() {
		if a.session == nil || a.stopping {
			return
		}

		if !a.frames.TryPush(frame) {
			a.dropped++
			if a.dropped == 1 || a.dropped%uint64(a.inputFrameRate) == 0 {
				a.logger.Warn("Recording frames dropped", "total", a.dropped)
			}
		}
	}
}

// IsRecording reports whether a recording is active.
func (a *Actor) IsRecording() bool {
	resultC := make(chan bool, 1)
	a.actorC <- func() { resultC <- a.session != nil }
	return <-resultC
}

// ListRecordings enumerates the recordings on disk, newest first.
func (a *Actor) ListRecordings() ([]domain.RecordingInfo, error) {
	entries, err := os.ReadDir(a.outputDir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var infos []domain.RecordingInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "recording_") {
			continue
		}

		stat, err := entry.Info()
		if err != nil {
			continue
		}

		infos = append(infos, domain.RecordingInfo{
			Filename:  entry.Name(),
			SizeBytes: stat.Size(),
			StartTime: stat.ModTime(),
		})
	}

	// Newest first.
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}

	return infos, nil
}

// DeleteRecording removes a recording file from the output directory. The
// filename is stripped of any path components so removal cannot escape the
// directory.
func (a *Actor) DeleteRecording(filename string) error {
	path := filepath.Join(a.outputDir, filepath.Base(filename))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrRecordingNotFound, filepath.Base(filename))
	} else if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	a.logger.Info("Recording deleted", "filename", filepath.Base(filename))
	return nil
}

func (a *Actor) actorLoop(ctx context.Context) {
	for {
		select {
		case act := <-a.actorC:
			act()
		case <-ctx.Done():
			if a.pumpCancel != nil {
				a.pumpCancel()
			}
			return
		}
	}
}

func (a *Actor) pumpLoop(ctx context.Context, handle encoder.Handle, frames *queue.Queue[[]byte]) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames.C():
			if err := handle.Write(frame); err != nil {
				a.logger.Error("Error writing frame to recording encoder", "err", err)
				a.actorC <- func() {
					if a.session != nil && !a.stopping {
						a.bus.Send(event.RecordingErrorEvent{Err: err})
					}
				}
				return
			}
		}
	}
}

func (a *Actor) watchProcess(handle encoder.Handle) {
	status, ok := <-handle.Done()
	if !ok {
		return
	}

	a.actorC <- func() {
		if a.session == nil || a.handle != handle || a.stopping {
			return
		}

		err := status.Err
		if err == nil {
			err = fmt.Errorf("recording encoder exited with code %d", status.ExitCode)
		}

		a.logger.Error("Recording encoder exited unexpectedly", "err", err)
		a.bus.Send(event.RecordingErrorEvent{Err: err})
	}
}

func (a *Actor) watchHints(handle encoder.Handle) {
	for hint := range handle.Hints() {
		a.logger.Debug("Encoder diagnostic", "hint", hint)
		a.bus.Send(event.EncoderDiagnosticEvent{Component: componentName, Hint: hint})
	}
}

func (a *Actor) resetRecording() {
	a.session = nil
	a.handle = nil
	a.frames = nil
	a.pumpCancel = nil
	a.stopping = false

	if a.metrics != nil {
		a.metrics.SetRecordingActive(false)
	}
}

// buildEncoderArgs builds the ffmpeg invocation: raw RGBA frames on stdin,
// scaled and encoded to the recording settings, written to outputPath.
func (a *Actor) buildEncoderArgs(outputPath string) []string {
	cfg := a.cfg

	return []string{
		"-hide_banner",
		"-loglevel", "level+error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(a.inputWidth) + "x" + strconv.Itoa(a.inputHeight),
		"-r", strconv.Itoa(a.inputFrameRate),
		"-i", "-",
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(cfg.BitrateKbps) + "k",
		"-r", strconv.Itoa(cfg.FrameRate),
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}
