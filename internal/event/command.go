package event

import (
	"time"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
)

// Command is an instruction from the control plane to the engine.
type Command interface {
	Name() string
}

// CommandUpdateTimeline replaces the active timeline.
type CommandUpdateTimeline struct {
	Document domain.TimelineDocument
}

// Name implements the Command interface.
func (c CommandUpdateTimeline) Name() string { return "update_timeline" }

// CommandPlay starts playback.
type CommandPlay struct{}

// Name implements the Command interface.
func (c CommandPlay) Name() string { return "play" }

// CommandPause pauses playback.
type CommandPause struct{}

// Name implements the Command interface.
func (c CommandPause) Name() string { return "pause" }

// CommandStop stops playback and resets the position to zero.
type CommandStop struct{}

// Name implements the Command interface.
func (c CommandStop) Name() string { return "stop" }

// CommandSeekTo moves the playback position.
type CommandSeekTo struct {
	Position time.Duration
}

// Name implements the Command interface.
func (c CommandSeekTo) Name() string { return "seek_to" }

// CommandToggleLoop flips looping playback.
type CommandToggleLoop struct{}

// Name implements the Command interface.
func (c CommandToggleLoop) Name() string { return "toggle_loop" }

// CommandStartBroadcast goes live with the given destination config.
type CommandStartBroadcast struct {
	Config        domain.DestinationConfig
	WithRecording bool
}

// Name implements the Command interface.
func (c CommandStartBroadcast) Name() string { return "start_broadcast" }

// CommandStopBroadcast ends the live broadcast.
type CommandStopBroadcast struct{}

// Name implements the Command interface.
func (c CommandStopBroadcast) Name() string { return "stop_broadcast" }

// CommandStartRecording starts a local recording.
type CommandStartRecording struct{}

// Name implements the Command interface.
func (c CommandStartRecording) Name() string { return "start_recording" }

// CommandStopRecording ends the local recording.
type CommandStopRecording struct{}

// Name implements the Command interface.
func (c CommandStopRecording) Name() string { return "stop_recording" }
