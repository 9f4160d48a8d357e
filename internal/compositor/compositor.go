// Package compositor renders timelines into raw RGBA frames.
package compositor

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/metrics"
)

type action func()

const (
	defaultWidth     = 1920
	defaultHeight    = 1080
	defaultFrameRate = 30
	defaultChanSize  = 64

	baseTileWidth  = 640
	baseTileHeight = 360
)

// FrameSink receives rendered raw frames. It must not block.
type FrameSink interface {
	SendFrame(frame []byte)
}

// Actor is responsible for rendering timeline frames and, once connected to
// a sink, feeding it at a steady cadence independent of the operator-facing
// playback clock.
type Actor struct {
	actorC    chan action
	width     int
	height    int
	frameRate int
	cache     *AssetCache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// mutable state, owned by the actor goroutine

	timeline     *domain.Timeline
	frameCount   uint64
	sink         FrameSink
	streamCancel context.CancelFunc
	streamPos    time.Duration
}

// NewActorParams contains the parameters for building a compositor actor.
type NewActorParams struct {
	Width     int // defaults to 1920
	Height    int // defaults to 1080
	FrameRate int // defaults to 30
	ChanSize  int // defaults to 64
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewActor creates a new compositor actor and starts its loop.
func NewActor(ctx context.Context, params NewActorParams) *Actor {
	actor := &Actor{
		actorC:    make(chan action, cmp.Or(params.ChanSize, defaultChanSize)),
		width:     cmp.Or(params.Width, defaultWidth),
		height:    cmp.Or(params.Height, defaultHeight),
		frameRate: cmp.Or(params.FrameRate, defaultFrameRate),
		cache:     NewAssetCache(params.Logger.With("component", "asset_cache")),
		metrics:   params.Metrics,
		logger:    params.Logger,
	}

	go actor.actorLoop(ctx)

	return actor
}

// UpdateTimeline replaces the stored timeline and pre-loads every
// still-image asset it references. Preloading is best-effort.
func (a *Actor) UpdateTimeline(timeline domain.Timeline) {
	cloned := timeline.Clone()

	a.actorC <- func() {
		a.timeline = &cloned

		var paths []string
		for _, track := range cloned.Tracks {
			for _, clip := range track.Clips {
				if clip.Type == domain.ClipTypeImage && clip.AssetPath != "" {
					paths = append(paths, clip.AssetPath)
				}
			}
		}
		if len(paths) > 0 {
			a.cache.Preload(paths)
		}
	}
}

// RenderFrame renders the frame at the given timeline position, forwards it
// to the connected sink if any, and returns it. The frame counter
// increments unconditionally.
func (a *Actor) RenderFrame(pos time.Duration) *image.RGBA {
	resultC := make(chan *image.RGBA, 1)
	a.actorC <- func() {
		resultC <- a.renderAndForward(pos)
	}
	return <-resultC
}

// RenderAsync renders the frame at the given timeline position without
// blocking the caller. If the mailbox is full rendering is already behind,
// and the request is dropped so the caller's clock keeps ticking.
func (a *Actor) RenderAsync(pos time.Duration) {
	select {
	case a.actorC <- func() { a.renderAndForward(pos) }:
	default:
	}
}

// FrameCount returns the number of frames rendered so far.
func (a *Actor) FrameCount() uint64 {
	resultC := make(chan uint64, 1)
	a.actorC <- func() { resultC <- a.frameCount }
	return <-resultC
}

// Connect connects the compositor's output to a sink and starts a
// free-running render loop on its own timer, decoupled from the playback
// clock, so the sink keeps receiving frames even while playback is paused.
// The loop wraps over the timeline duration.
func (a *Actor) Connect(sink FrameSink) {
	a.actorC <- func() {
		if a.streamCancel != nil {
			a.streamCancel()
		}

		ctx, cancel := context.WithCancel(context.Background())
		a.sink = sink
		a.streamCancel = cancel
		a.streamPos = 0

		go a.streamLoop(ctx)
	}
}

// Disconnect stops the free-running render loop and detaches the sink.
func (a *Actor) Disconnect() {
	a.actorC <- func() {
		if a.streamCancel != nil {
			a.streamCancel()
			a.streamCancel = nil
		}
		a.sink = nil
	}
}

// streamLoop drives the transport-feeding clock. Each tick advances the
// stream position by one frame interval and renders on the actor goroutine.
func (a *Actor) streamLoop(ctx context.Context) {
	interval := time.Second / time.Duration(a.frameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.actorC <- func() {
				if a.sink == nil {
					return
				}

				a.streamPos += interval
				if a.streamPos >= a.duration() {
					a.streamPos = 0
				}
				a.renderAndForward(a.streamPos)
			}
		}
	}
}

func (a *Actor) actorLoop(ctx context.Context) {
	for {
		select {
		case act := <-a.actorC:
			act()
		case <-ctx.Done():
			if a.streamCancel != nil {
				a.streamCancel()
			}
			return
		}
	}
}

func (a *Actor) duration() time.Duration {
	if a.timeline == nil {
		return domain.MinTimelineDuration
	}
	return a.timeline.Duration()
}

func (a *Actor) renderAndForward(pos time.Duration) *image.RGBA {
	frame := a.renderFrame(pos)

	a.frameCount++
	if a.metrics != nil {
		a.metrics.IncFramesRendered()
	}

	if a.sink != nil {
		a.sink.SendFrame(frame.Pix)
	}

	return frame
}

// renderFrame produces the composited frame for the given position. It is
// deterministic given the timeline, the position and the asset cache
// contents, and always returns a frame of the configured resolution.
func (a *Actor) renderFrame(pos time.Duration) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	fillRect(frame, frame.Bounds(), colorBackground, 1)

	switch {
	case a.timeline == nil || a.timeline.IsEmpty():
		a.paintIdle(frame)
	default:
		active := activeClips(*a.timeline, pos)
		if len(active) == 0 {
			a.paintNoContent(frame, pos)
		} else {
			for _, clip := range active {
				a.paintClipSafe(frame, clip, pos)
			}
		}
	}

	a.paintInfoOverlay(frame, pos)

	return frame
}

// activeClips returns the clips active at the given position, ordered by
// (track render order, z-index) ascending. Video tracks render first as the
// background layer, overlay tracks on top. Audio tracks have no visual
// representation.
func activeClips(timeline domain.Timeline, pos time.Duration) []domain.Clip {
	type layeredClip struct {
		trackOrder int
		clip       domain.Clip
	}

	var layered []layeredClip
	appendActive := func(track domain.Track, order int) {
		for _, clip := range track.Clips {
			if clip.Active(pos) {
				layered = append(layered, layeredClip{trackOrder: order, clip: clip})
			}
		}
	}

	for _, track := range timeline.Tracks {
		if track.Kind == domain.TrackKindVideo {
			appendActive(track, 0)
		}
	}
	for _, track := range timeline.Tracks {
		if track.Kind == domain.TrackKindOverlay {
			appendActive(track, 1)
		}
	}

	slices.SortStableFunc(layered, func(a, b layeredClip) int {
		if c := cmp.Compare(a.trackOrder, b.trackOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.clip.ZIndex, b.clip.ZIndex)
	})

	clips := make([]domain.Clip, len(layered))
	for i, lc := range layered {
		clips[i] = lc.clip
	}
	return clips
}

// paintClipSafe paints a single clip, containing any failure to that clip:
// a failed clip is replaced with a visible error tile and never aborts the
// rest of the frame.
func (a *Actor) paintClipSafe(frame *image.RGBA, clip domain.Clip, pos time.Duration) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("paint clip: %v", r)
			}
		}()
		return a.paintClip(frame, clip, pos)
	}()
	if err != nil {
		a.logger.Warn("Clip render failed", "clip_id", clip.ID, "type", clip.Type, "err", err)
		a.paintErrorTile(frame, clip)
	}
}

func (a *Actor) paintClip(frame *image.RGBA, clip domain.Clip, _ time.Duration) error {
	// Rotation applies to image clips only. Generated placeholder tiles and
	// text stay axis-aligned.
	rect := tileRect(clip)
	opacity := clip.Transform.Opacity

	switch clip.Type {
	case domain.ClipTypeCamera:
		fillRect(frame, rect, colorCameraTile, opacity)
		drawBorder(frame, rect, colorBorder, 2)
		drawTextCentered(frame, rect, "CAM "+clip.CameraID, colorText)
	case domain.ClipTypeVideo:
		fillRect(frame, rect, colorVideoTile, opacity)
		drawBorder(frame, rect, colorBorder, 2)
		drawTextCentered(frame, rect, "VIDEO "+filepath.Base(clip.AssetPath), colorText)
	case domain.ClipTypeImage:
		img, ok := a.cache.Get(clip.AssetPath)
		if !ok {
			// The asset has not been resolved (yet). Stand in with a named
			// placeholder rather than blocking the render on disk I/O.
			fillRect(frame, rect, colorVideoTile, opacity)
			drawBorder(frame, rect, colorBorder, 2)
			drawTextCentered(frame, rect, "IMAGE "+filepath.Base(clip.AssetPath), colorText)
			return nil
		}
		rect = imageRect(clip, img)
		if clip.Transform.Rotation != 0 {
			drawImageRotated(frame, img, rect, clip.Transform.Rotation, opacity)
		} else {
			drawImageScaled(frame, img, rect, opacity)
		}
	case domain.ClipTypeText:
		col := colorText
		if clip.TextColor != "" {
			col = parseHexColor(clip.TextColor)
		}
		drawText(frame, clip.Transform.X, clip.Transform.Y+basicFontAscent, clip.Text, scaleColor(col, opacity))
	default:
		return fmt.Errorf("unknown clip type %q", clip.Type)
	}

	return nil
}

func (a *Actor) paintErrorTile(frame *image.RGBA, clip domain.Clip) {
	rect := tileRect(clip)
	fillRect(frame, rect, colorErrorTile, 1)
	drawBorder(frame, rect, colorText, 2)
	drawTextCentered(frame, rect, "RENDER ERROR", colorText)
}

func (a *Actor) paintIdle(frame *image.RGBA) {
	fillRect(frame, frame.Bounds(), colorIdle, 1)
	drawTextCentered(frame, frame.Bounds(), "VistterStudio - waiting for timeline", colorText)
}

func (a *Actor) paintNoContent(frame *image.RGBA, pos time.Duration) {
	fillRect(frame, frame.Bounds(), colorNoContent, 1)
	drawTextCentered(frame, frame.Bounds(), "No active content at "+formatTimecode(pos), colorText)
}

// paintInfoOverlay composites the fixed informational bar: timecode, frame
// counter and live indicator.
func (a *Actor) paintInfoOverlay(frame *image.RGBA, pos time.Duration) {
	const barHeight = 28
	bar := image.Rect(0, a.height-barHeight, a.width, a.height)
	fillRect(frame, bar, colorBackground, 0.8)

	y := a.height - barHeight/2 + basicFontAscent/2
	drawText(frame, 12, y, formatTimecode(pos), colorText)
	drawText(frame, 160, y, fmt.Sprintf("frame %d", a.frameCount), colorText)

	if a.sink != nil {
		drawText(frame, a.width-80, y, "● LIVE", colorLive)
	}
}

// basicFontAscent is the ascent of the bitmap face used for overlay text.
const basicFontAscent = 11

// tileRect returns the placement rectangle for a generated placeholder
// tile, anchored at the clip's position and scaled by its transform.
func tileRect(clip domain.Clip) image.Rectangle {
	return scaledRect(clip, baseTileWidth, baseTileHeight)
}

// imageRect returns the placement rectangle for a still image, preserving
// the image's natural dimensions scaled by the clip's transform.
func imageRect(clip domain.Clip, img image.Image) image.Rectangle {
	return scaledRect(clip, img.Bounds().Dx(), img.Bounds().Dy())
}

func scaledRect(clip domain.Clip, width, height int) image.Rectangle {
	scale := clip.Transform.Scale
	if scale <= 0 {
		scale = 1
	}

	w := max(int(float64(width)*scale), 1)
	h := max(int(float64(height)*scale), 1)
	x := clip.Transform.X
	y := clip.Transform.Y

	return image.Rect(x, y, x+w, y+h)
}

func formatTimecode(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
