package compositor

import (
	"bytes"
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
	"github.com/nickdnj/VistterStudio-sub000/internal/testhelpers"
)

type collectingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *collectingSink) SendFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newTestActor(t *testing.T) *Actor {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewActor(ctx, NewActorParams{
		Width:     320,
		Height:    180,
		FrameRate: 30,
		Logger:    testhelpers.NewNopLogger(),
	})
}

func TestRenderFrameResolution(t *testing.T) {
	testCases := []struct {
		name     string
		timeline *domain.Timeline
		pos      time.Duration
	}{
		{
			name: "no timeline loaded",
		},
		{
			name:     "empty timeline",
			timeline: &domain.Timeline{},
		},
		{
			name: "no active content at position",
			timeline: &domain.Timeline{Tracks: []domain.Track{{
				ID:    "main",
				Kind:  domain.TrackKindVideo,
				Clips: []domain.Clip{{ID: "c1", Type: domain.ClipTypeCamera, Duration: 5 * time.Second}},
			}}},
			pos: 30 * time.Second,
		},
		{
			name: "image asset not loadable",
			timeline: &domain.Timeline{Tracks: []domain.Track{{
				ID:   "overlay",
				Kind: domain.TrackKindOverlay,
				Clips: []domain.Clip{{
					ID:        "c1",
					Type:      domain.ClipTypeImage,
					Duration:  time.Minute,
					AssetPath: "/nonexistent/logo.png",
				}},
			}}},
			pos: time.Second,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actor := newTestActor(t)
			if tc.timeline != nil {
				actor.UpdateTimeline(*tc.timeline)
			}

			frame := actor.RenderFrame(tc.pos)

			require.NotNil(t, frame)
			assert.Equal(t, 320, frame.Bounds().Dx())
			assert.Equal(t, 180, frame.Bounds().Dy())
		})
	}
}

func TestRenderFrameDeterministic(t *testing.T) {
	timeline := domain.Timeline{Tracks: []domain.Track{
		{
			ID:    "main",
			Kind:  domain.TrackKindVideo,
			Clips: []domain.Clip{{ID: "cam", Type: domain.ClipTypeCamera, CameraID: "1", Duration: time.Minute}},
		},
		{
			ID:   "titles",
			Kind: domain.TrackKindOverlay,
			Clips: []domain.Clip{{
				ID:        "title",
				Type:      domain.ClipTypeText,
				Duration:  time.Minute,
				Text:      "Hello",
				TextColor: "#00ff00",
				Transform: domain.Transform{X: 20, Y: 20, Scale: 1, Opacity: 1},
			}},
		},
	}}

	actor1 := newTestActor(t)
	actor2 := newTestActor(t)
	actor1.UpdateTimeline(timeline)
	actor2.UpdateTimeline(timeline)

	frame1 := actor1.RenderFrame(15 * time.Second)
	frame2 := actor2.RenderFrame(15 * time.Second)

	assert.True(t, bytes.Equal(frame1.Pix, frame2.Pix), "same timeline and position must produce identical pixels")
}

func TestRenderFrameAppliesImageRotation(t *testing.T) {
	path := writeTestPNG(t)

	render := func(rotation float64) *image.RGBA {
		actor := newTestActor(t)
		_, err := actor.cache.Load(path)
		require.NoError(t, err)

		actor.UpdateTimeline(domain.Timeline{Tracks: []domain.Track{{
			ID:   "overlay",
			Kind: domain.TrackKindOverlay,
			Clips: []domain.Clip{{
				ID:        "logo",
				Type:      domain.ClipTypeImage,
				Duration:  time.Minute,
				AssetPath: path,
				Transform: domain.Transform{X: 50, Y: 50, Scale: 4, Opacity: 1, Rotation: rotation},
			}},
		}}})

		return actor.RenderFrame(time.Second)
	}

	rotated := render(90)
	unrotated := render(0)

	assert.False(t, bytes.Equal(rotated.Pix, unrotated.Pix), "a quarter turn moves the image's marked corner")
	assert.True(t, bytes.Equal(rotated.Pix, render(90).Pix), "rotation renders deterministically")
}

func TestActiveClipsOrdering(t *testing.T) {
	videoTrack := domain.Track{
		ID:    "main",
		Kind:  domain.TrackKindVideo,
		Clips: []domain.Clip{{ID: "base", Type: domain.ClipTypeCamera, Duration: time.Minute}},
	}
	overlayTrack := domain.Track{
		ID:   "titles",
		Kind: domain.TrackKindOverlay,
		Clips: []domain.Clip{{
			ID:       "title",
			Type:     domain.ClipTypeText,
			Start:    10 * time.Second,
			Duration: 5 * time.Second,
			ZIndex:   1,
		}},
	}

	for _, tracks := range [][]domain.Track{
		{videoTrack, overlayTrack},
		{overlayTrack, videoTrack},
	} {
		clips := activeClips(domain.Timeline{Tracks: tracks}, 15*time.Second)

		require.Len(t, clips, 2)
		assert.Equal(t, "base", clips[0].ID, "video content renders below overlays regardless of track order")
		assert.Equal(t, "title", clips[1].ID)
	}

	// The overlay ends at 15s exclusive, so just past it only the base remains.
	clips := activeClips(domain.Timeline{Tracks: []domain.Track{videoTrack, overlayTrack}}, 15*time.Second+time.Millisecond)
	require.Len(t, clips, 1)
	assert.Equal(t, "base", clips[0].ID)
}

func TestActiveClipsZIndex(t *testing.T) {
	timeline := domain.Timeline{Tracks: []domain.Track{
		{
			ID:   "overlays",
			Kind: domain.TrackKindOverlay,
			Clips: []domain.Clip{
				{ID: "top", Type: domain.ClipTypeText, Duration: time.Minute, ZIndex: 5},
				{ID: "bottom", Type: domain.ClipTypeText, Duration: time.Minute, ZIndex: 1},
			},
		},
		{
			ID:    "music",
			Kind:  domain.TrackKindAudio,
			Clips: []domain.Clip{{ID: "song", Type: domain.ClipType("audio"), Duration: time.Minute}},
		},
	}}

	clips := activeClips(timeline, time.Second)

	require.Len(t, clips, 2, "audio clips have no visual representation")
	assert.Equal(t, "bottom", clips[0].ID)
	assert.Equal(t, "top", clips[1].ID)
}

func TestFrameCount(t *testing.T) {
	actor := newTestActor(t)

	require.Zero(t, actor.FrameCount())

	actor.RenderFrame(0)
	actor.RenderFrame(time.Second)
	actor.RenderFrame(2 * time.Second)

	assert.Equal(t, uint64(3), actor.FrameCount())
}

func TestRenderAsyncDoesNotBlockWhenBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	actor := NewActor(ctx, NewActorParams{
		Width:    320,
		Height:   180,
		ChanSize: 1,
		Logger:   testhelpers.NewNopLogger(),
	})

	// Occupy the actor goroutine, then fill the one-slot mailbox.
	release := make(chan struct{})
	actor.actorC <- func() { <-release }
	actor.actorC <- func() {}

	done := make(chan struct{})
	go func() {
		actor.RenderAsync(time.Second)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RenderAsync blocked on a full mailbox")
	}

	close(release)
	assert.Zero(t, actor.FrameCount(), "an overflowing render request is dropped, not queued")
}

func TestConnect(t *testing.T) {
	actor := newTestActor(t)
	sink := &collectingSink{}

	actor.Connect(sink)

	require.Eventually(
		t,
		func() bool { return sink.count() >= 3 },
		2*time.Second,
		10*time.Millisecond,
		"connected sink should receive a steady stream of frames",
	)

	sink.mu.Lock()
	frameLen := len(sink.frames[0])
	sink.mu.Unlock()
	assert.Equal(t, 320*180*4, frameLen, "frames are raw RGBA at the configured resolution")

	actor.Disconnect()

	// Drain any in-flight tick, then verify the stream has stopped.
	time.Sleep(100 * time.Millisecond)
	countAfterStop := sink.count()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, countAfterStop, sink.count(), "no frames after disconnect")
}
