package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
)

// Name identifies a kind of event.
type Name string

const (
	EventNameTimelineChanged   Name = "timeline_changed"
	EventNamePlaybackStarted   Name = "playback_started"
	EventNamePlaybackPaused    Name = "playback_paused"
	EventNamePlaybackStopped   Name = "playback_stopped"
	EventNamePlaybackSeeked    Name = "playback_seeked"
	EventNameBroadcastStarted  Name = "broadcast_started"
	EventNameBroadcastStopped  Name = "broadcast_stopped"
	EventNameBroadcastError    Name = "broadcast_error"
	EventNameRecordingStarted  Name = "recording_started"
	EventNameRecordingStopped  Name = "recording_stopped"
	EventNameRecordingError    Name = "recording_error"
	EventNameStreamStalled     Name = "stream_stalled"
	EventNameHealthUpdated     Name = "health_updated"
	EventNameStatusUpdated     Name = "status_updated"
	EventNameEncoderDiagnostic Name = "encoder_diagnostic"
)

// Event represents something which happened in the engine.
type Event interface {
	EventName() Name
}

// TimelineChangedEvent is emitted when the active timeline is replaced.
type TimelineChangedEvent struct {
	ClipCount int
	Duration  time.Duration
}

// EventName implements the Event interface.
func (e TimelineChangedEvent) EventName() Name { return EventNameTimelineChanged }

// PlaybackStartedEvent is emitted when playback starts.
type PlaybackStartedEvent struct {
	Position time.Duration
}

// EventName implements the Event interface.
func (e PlaybackStartedEvent) EventName() Name { return EventNamePlaybackStarted }

// PlaybackPausedEvent is emitted when playback pauses.
type PlaybackPausedEvent struct {
	Position time.Duration
}

// EventName implements the Event interface.
func (e PlaybackPausedEvent) EventName() Name { return EventNamePlaybackPaused }

// PlaybackStoppedEvent is emitted when playback stops and resets to zero.
type PlaybackStoppedEvent struct{}

// EventName implements the Event interface.
func (e PlaybackStoppedEvent) EventName() Name { return EventNamePlaybackStopped }

// PlaybackSeekedEvent is emitted after a seek completes.
type PlaybackSeekedEvent struct {
	Position time.Duration
}

// EventName implements the Event interface.
func (e PlaybackSeekedEvent) EventName() Name { return EventNamePlaybackSeeked }

// BroadcastStartedEvent is emitted when a broadcast session is live.
type BroadcastStartedEvent struct {
	SessionID uuid.UUID
	Platform  domain.Platform
}

// EventName implements the Event interface.
func (e BroadcastStartedEvent) EventName() Name { return EventNameBroadcastStarted }

// BroadcastStoppedEvent is emitted when a broadcast session ends.
type BroadcastStoppedEvent struct {
	SessionID uuid.UUID
}

// EventName implements the Event interface.
func (e BroadcastStoppedEvent) EventName() Name { return EventNameBroadcastStopped }

// BroadcastErrorEvent is emitted when the live encoder reports a fatal
// condition mid-session. The session remains flagged live until an explicit
// stop.
type BroadcastErrorEvent struct {
	Err error
}

// EventName implements the Event interface.
func (e BroadcastErrorEvent) EventName() Name { return EventNameBroadcastError }

// RecordingStartedEvent is emitted when a recording session starts.
type RecordingStartedEvent struct {
	RecordingID string
	OutputPath  string
}

// EventName implements the Event interface.
func (e RecordingStartedEvent) EventName() Name { return EventNameRecordingStarted }

// RecordingStoppedEvent is emitted when a recording session ends.
type RecordingStoppedEvent struct {
	Info domain.RecordingInfo
}

// EventName implements the Event interface.
func (e RecordingStoppedEvent) EventName() Name { return EventNameRecordingStopped }

// RecordingErrorEvent is emitted when the recording encoder reports a fatal
// condition mid-session.
type RecordingErrorEvent struct {
	Err error
}

// EventName implements the Event interface.
func (e RecordingErrorEvent) EventName() Name { return EventNameRecordingError }

// StreamStalledEvent is emitted when frames were flowing but none have been
// sent recently while still marked streaming. It is a signal to the
// operator, not an automatic recovery trigger.
type StreamStalledEvent struct {
	LastFrameAt time.Time
}

// EventName implements the Event interface.
func (e StreamStalledEvent) EventName() Name { return EventNameStreamStalled }

// HealthUpdatedEvent carries a fresh transport health snapshot.
type HealthUpdatedEvent struct {
	Health domain.HealthSnapshot
}

// EventName implements the Event interface.
func (e HealthUpdatedEvent) EventName() Name { return EventNameHealthUpdated }

// StatusUpdatedEvent carries a fresh engine status snapshot.
type StatusUpdatedEvent struct {
	Status domain.StatusSnapshot
}

// EventName implements the Event interface.
func (e StatusUpdatedEvent) EventName() Name { return EventNameStatusUpdated }

// EncoderDiagnosticEvent carries a non-authoritative hint scraped from the
// encoder's diagnostic output. It must never be treated as a correctness
// signal.
type EncoderDiagnosticEvent struct {
	Component string
	Hint      string
}

// EventName implements the Event interface.
func (e EncoderDiagnosticEvent) EventName() Name { return EventNameEncoderDiagnostic }
