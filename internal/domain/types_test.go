package domain_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
)

func TestTimelineDuration(t *testing.T) {
	testCases := []struct {
		name     string
		timeline domain.Timeline
		want     time.Duration
	}{
		{
			name:     "empty timeline",
			timeline: domain.Timeline{},
			want:     time.Minute,
		},
		{
			name: "clips shorter than the minimum",
			timeline: domain.Timeline{Tracks: []domain.Track{
				{Kind: domain.TrackKindVideo, Clips: []domain.Clip{
					{Start: 0, Duration: 10 * time.Second},
				}},
			}},
			want: time.Minute,
		},
		{
			name: "clips longer than the minimum",
			timeline: domain.Timeline{Tracks: []domain.Track{
				{Kind: domain.TrackKindVideo, Clips: []domain.Clip{
					{Start: 0, Duration: 45 * time.Second},
					{Start: 30 * time.Second, Duration: 50 * time.Second},
				}},
				{Kind: domain.TrackKindOverlay, Clips: []domain.Clip{
					{Start: time.Second, Duration: 5 * time.Second},
				}},
			}},
			want: 80 * time.Second,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.timeline.Duration())
		})
	}
}

func TestClipActive(t *testing.T) {
	clip := domain.Clip{Start: 10 * time.Second, Duration: 5 * time.Second}

	assert.False(t, clip.Active(9*time.Second))
	assert.True(t, clip.Active(10*time.Second), "interval start is inclusive")
	assert.True(t, clip.Active(14*time.Second))
	assert.False(t, clip.Active(15*time.Second), "interval end is exclusive")
}

func TestTimelineClone(t *testing.T) {
	timeline := domain.Timeline{Tracks: []domain.Track{
		{ID: "main", Kind: domain.TrackKindVideo, Clips: []domain.Clip{{ID: "c1"}}},
	}}

	cloned := timeline.Clone()
	cloned.Tracks[0].Clips[0].ID = "changed"

	assert.Equal(t, "c1", timeline.Tracks[0].Clips[0].ID)
}

func TestTimelineClipCount(t *testing.T) {
	timeline := domain.Timeline{Tracks: []domain.Track{
		{Clips: []domain.Clip{{}, {}}},
		{Clips: []domain.Clip{{}}},
	}}

	assert.Equal(t, 3, timeline.ClipCount())
	assert.False(t, timeline.IsEmpty())
	assert.True(t, domain.Timeline{}.IsEmpty())
}

func TestDestinationConfigLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("Starting live stream", "config", domain.DestinationConfig{
		Platform:  domain.PlatformYouTube,
		StreamKey: "super-secret-key",
		Width:     1920,
	})

	assert.Contains(t, buf.String(), "youtube")
	assert.NotContains(t, buf.String(), "super-secret-key", "stream keys must never reach log output")
}
