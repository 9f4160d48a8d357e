package domain

import "time"

// TimelineDocument is the wire representation of a timeline as pushed by
// the editor. Clips arrive as a single flat list and are grouped into
// tracks by their track ID.
type TimelineDocument struct {
	Clips      []ClipDocument `json:"clips"`
	DurationMs int64          `json:"duration,omitempty"`
}

// ClipDocument is the wire representation of a single clip.
type ClipDocument struct {
	ID          string  `json:"id,omitempty"`
	StartTimeMs int64   `json:"startTimeMs"`
	DurationMs  int64   `json:"durationMs"`
	Type        string  `json:"type"`
	TrackID     string  `json:"trackId"`
	ZIndex      int     `json:"zIndex,omitempty"`
	X           int     `json:"x,omitempty"`
	Y           int     `json:"y,omitempty"`
	Scale       float64 `json:"scale,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
	Rotation    float64 `json:"rotation,omitempty"`
	AssetPath   string  `json:"assetPath,omitempty"`
	Camera      string  `json:"camera,omitempty"`
	Text        string  `json:"text,omitempty"`
	TextColor   string  `json:"textColor,omitempty"`
}

// ToTimeline converts the document into a [Timeline]. Tracks are created in
// order of first appearance of their ID. A track containing any camera or
// video clip is a video track, a track of audio clips is an audio track,
// and anything else is an overlay track.
func (d TimelineDocument) ToTimeline() Timeline {
	var timeline Timeline
	indexByID := make(map[string]int)

	for _, doc := range d.Clips {
		i, ok := indexByID[doc.TrackID]
		if !ok {
			i = len(timeline.Tracks)
			indexByID[doc.TrackID] = i
			timeline.Tracks = append(timeline.Tracks, Track{
				ID:   doc.TrackID,
				Kind: TrackKindOverlay,
			})
		}

		track := &timeline.Tracks[i]
		track.Clips = append(track.Clips, doc.toClip())

		switch ClipType(doc.Type) {
		case ClipTypeCamera, ClipTypeVideo:
			track.Kind = TrackKindVideo
		default:
			if doc.Type == "audio" && track.Kind == TrackKindOverlay {
				track.Kind = TrackKindAudio
			}
		}
	}

	return timeline
}

func (doc ClipDocument) toClip() Clip {
	scale := doc.Scale
	if scale == 0 {
		scale = 1
	}
	opacity := doc.Opacity
	if opacity == 0 {
		opacity = 1
	}

	return Clip{
		ID:        doc.ID,
		Type:      ClipType(doc.Type),
		TrackID:   doc.TrackID,
		ZIndex:    doc.ZIndex,
		Start:     time.Duration(doc.StartTimeMs) * time.Millisecond,
		Duration:  time.Duration(doc.DurationMs) * time.Millisecond,
		AssetPath: doc.AssetPath,
		CameraID:  doc.Camera,
		Text:      doc.Text,
		TextColor: doc.TextColor,
		Transform: Transform{
			X:        doc.X,
			Y:        doc.Y,
			Scale:    scale,
			Opacity:  opacity,
			Rotation: doc.Rotation,
		},
	}
}
