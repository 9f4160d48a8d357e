package domain

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// AppName is the name of the application.
const AppName = "vistterstudio"

// MinTimelineDuration is the minimum duration of any timeline, applied even
// when the timeline is empty or its clips end earlier.
const MinTimelineDuration = time.Minute

// TrackKind identifies the role of a track in the render order.
type TrackKind string

const (
	TrackKindVideo   TrackKind = "video"
	TrackKindOverlay TrackKind = "overlay"
	TrackKindAudio   TrackKind = "audio"
)

// ClipType identifies the content a clip refers to.
type ClipType string

const (
	ClipTypeCamera ClipType = "camera"
	ClipTypeImage  ClipType = "image"
	ClipTypeVideo  ClipType = "video"
	ClipTypeText   ClipType = "text"
)

// Transform holds the placement of a clip in the output frame.
type Transform struct {
	X        int
	Y        int
	Scale    float64
	Opacity  float64
	Rotation float64
}

// Clip is a timed reference to visual or audio content placed on a track.
//
// A clip is active during the half-open interval [Start, Start+Duration).
type Clip struct {
	ID        string
	Type      ClipType
	TrackID   string
	ZIndex    int
	Start     time.Duration
	Duration  time.Duration
	AssetPath string // set for image and video clips
	CameraID  string // set for camera clips
	Text      string // set for text clips
	TextColor string // optional hex colour for text clips
	Transform Transform
}

// Active returns true if the clip is active at the given timeline position.
func (c Clip) Active(pos time.Duration) bool {
	return pos >= c.Start && pos < c.Start+c.Duration
}

// End returns the end of the clip's active interval.
func (c Clip) End() time.Duration {
	return c.Start + c.Duration
}

// Track is an ordered lane of clips of one kind.
type Track struct {
	ID    string
	Kind  TrackKind
	Clips []Clip
}

// Clone performs a deep copy of the track.
func (t Track) Clone() Track {
	t.Clips = slices.Clone(t.Clips)
	return t
}

// Timeline is the full set of tracks and clips representing one broadcast
// program. It is replaced wholesale on each update, never patched in place.
type Timeline struct {
	Tracks []Track
}

// Clone performs a deep copy of the timeline.
func (t Timeline) Clone() Timeline {
	tracks := make([]Track, len(t.Tracks))
	for i, track := range t.Tracks {
		tracks[i] = track.Clone()
	}
	return Timeline{Tracks: tracks}
}

// Duration returns the derived duration of the timeline: the largest clip
// end offset, but never less than [MinTimelineDuration].
func (t Timeline) Duration() time.Duration {
	d := MinTimelineDuration
	for _, track := range t.Tracks {
		for _, clip := range track.Clips {
			if end := clip.End(); end > d {
				d = end
			}
		}
	}
	return d
}

// ClipCount returns the total number of clips across all tracks.
func (t Timeline) ClipCount() int {
	var n int
	for _, track := range t.Tracks {
		n += len(track.Clips)
	}
	return n
}

// IsEmpty returns true if the timeline holds no clips.
func (t Timeline) IsEmpty() bool {
	return t.ClipCount() == 0
}

// PlaybackState is the operator-facing playback clock.
type PlaybackState struct {
	Position time.Duration
	Playing  bool
	Looping  bool
	Rate     float64
}

// Platform identifies a live-streaming destination platform.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformTwitch   Platform = "twitch"
	PlatformFacebook Platform = "facebook"
	PlatformCustom   Platform = "custom"
)

// DestinationConfig holds the configuration for a live-streaming
// destination.
type DestinationConfig struct {
	Platform    Platform
	StreamKey   string
	RTMPURL     string // required only for PlatformCustom
	Width       int
	Height      int
	FrameRate   int
	BitrateKbps int
	CodecParams []string
}

// LogValue implements slog.LogValuer. The stream key is deliberately
// omitted so it can never end up in log output.
func (c DestinationConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("platform", string(c.Platform)),
		slog.String("url", c.RTMPURL),
		slog.Int("width", c.Width),
		slog.Int("height", c.Height),
		slog.Int("framerate", c.FrameRate),
		slog.Int("bitrate_kbps", c.BitrateKbps),
	)
}

// RecordingConfig holds the encoding settings for a local recording.
type RecordingConfig struct {
	Width       int
	Height      int
	FrameRate   int
	BitrateKbps int
	Format      string // container format, e.g. "mp4"
}

// BroadcastSession is the live state while actively transmitting to a
// destination. At most one exists at a time.
type BroadcastSession struct {
	ID        uuid.UUID
	StartedAt time.Time
	Config    DestinationConfig
}

// RecordingSession is the state of an in-progress local recording. Its
// lifecycle is independent of any broadcast session.
type RecordingSession struct {
	ID         string
	StartedAt  time.Time
	OutputPath string
	Config     RecordingConfig
}

// RecordingInfo summarises a finished or on-disk recording.
type RecordingInfo struct {
	ID        string
	Filename  string
	SizeBytes int64
	Duration  time.Duration
	Width     int
	Height    int
	StartTime time.Time
}

// ConnectionStatus reflects the transport's view of the outbound stream.
type ConnectionStatus string

const (
	ConnectionStatusOffline   ConnectionStatus = "offline"
	ConnectionStatusStarting  ConnectionStatus = "starting"
	ConnectionStatusStreaming ConnectionStatus = "streaming"
	ConnectionStatusStalled   ConnectionStatus = "stalled"
)

// HealthSnapshot holds point-in-time derived metrics about transport
// throughput. It is recomputed per health tick and never persisted.
type HealthSnapshot struct {
	FramesSent          uint64
	FramesDropped       uint64
	BytesSent           uint64
	AverageFps          float64
	DropRatePercent     float64
	BufferHealthPercent float64
	ConnectionStatus    ConnectionStatus
}

// StatusSnapshot is the periodic operator-facing view of the engine.
type StatusSnapshot struct {
	Live        bool
	Recording   bool
	Playback    PlaybackState
	Uptime      time.Duration
	ClipCount   int
	Viewers     int
	BitrateKbps int
}
