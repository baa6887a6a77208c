package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - single inbound vocabulary for the daemon loop
// ============================================================================
// Everything that can change PlayerState arrives as an Event: receiver
// reports translated by the topic router, transport requests from IPC/UI,
// snapshot requests from the WebSocket server, and the daemon's own ticks.
// The reducer consumes these; nothing else mutates state.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an Event with its arrival time so the reducer stays pure
// (it never reads the clock itself).
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at the convergence cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// ==============================
// Receiver reports (from the topic router)
// ==============================

// PlayStarted corresponds to play_start / play_resume.
type PlayStarted struct{}

func (PlayStarted) eventMarker() {}

// PlayEnded corresponds to play_end / play_flush.
type PlayEnded struct{}

func (PlayEnded) eventMarker() {}

// ActiveEnded corresponds to active_end: the AirPlay session is gone.
type ActiveEnded struct{}

func (ActiveEnded) eventMarker() {}

type TitleChanged struct {
	Title string `json:"title"`
}

func (TitleChanged) eventMarker() {}

type ArtistChanged struct {
	Artist string `json:"artist"`
}

func (ArtistChanged) eventMarker() {}

type AlbumChanged struct {
	Album string `json:"album"`
}

func (AlbumChanged) eventMarker() {}

// ArtworkChanged carries the raw cover image bytes, undecoded.
type ArtworkChanged struct {
	Data []byte
}

func (ArtworkChanged) eventMarker() {}

// VolumeReported is a parsed volume report. Both the primary and the
// fallback topic produce this same event; last write wins.
type VolumeReported struct {
	VolumeDB float64 `json:"volume_db"`
	MinDB    float64 `json:"min_db"`
	MaxDB    float64 `json:"max_db"`
}

func (VolumeReported) eventMarker() {}

// ==============================
// Transport requests (from IPC / UI)
// ==============================

type PlayRequested struct{}
type PauseRequested struct{}
type StopRequested struct{}
type PlayPauseRequested struct{}
type NextTrackRequested struct{}
type PreviousTrackRequested struct{}
type VolumeUpRequested struct{}
type VolumeDownRequested struct{}

func (PlayRequested) eventMarker()          {}
func (PauseRequested) eventMarker()         {}
func (StopRequested) eventMarker()          {}
func (PlayPauseRequested) eventMarker()     {}
func (NextTrackRequested) eventMarker()     {}
func (PreviousTrackRequested) eventMarker() {}
func (VolumeUpRequested) eventMarker()      {}
func (VolumeDownRequested) eventMarker()    {}

// SetVolumeRequested asks the daemon to drive the receiver to a normalized
// level via the closed convergence loop.
type SetVolumeRequested struct {
	Level float64 `json:"level"` // 0.0 - 1.0
}

func (SetVolumeRequested) eventMarker() {}

// ==============================
// Infrastructure events
// ==============================

// RequestStateSnapshot asks the reducer for a coherent snapshot, delivered
// through the effects layer so the reducer stays pure.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// PublishFailed is emitted by the effects layer when a remote command could
// not be published. The reducer leaves state untouched; the failure has
// already been logged on the host's generic error path.
type PublishFailed struct {
	Token string
	Err   error
	At    time.Time
}

func (PublishFailed) eventMarker() {}

// ============================================================================
// JSON envelope - IPC wire format
// ============================================================================
// Only transport requests travel over IPC; receiver reports originate on the
// bus and have no external producer.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON envelope into a concrete Event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "play":
		return PlayRequested{}, nil
	case "pause":
		return PauseRequested{}, nil
	case "stop":
		return StopRequested{}, nil
	case "play_pause":
		return PlayPauseRequested{}, nil
	case "next_track":
		return NextTrackRequested{}, nil
	case "previous_track":
		return PreviousTrackRequested{}, nil
	case "volume_up":
		return VolumeUpRequested{}, nil
	case "volume_down":
		return VolumeDownRequested{}, nil

	case "set_volume":
		var e SetVolumeRequested
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetVolumeRequested: %w", err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case PlayRequested:
		env.Type = "play"
	case PauseRequested:
		env.Type = "pause"
	case StopRequested:
		env.Type = "stop"
	case PlayPauseRequested:
		env.Type = "play_pause"
	case NextTrackRequested:
		env.Type = "next_track"
	case PreviousTrackRequested:
		env.Type = "previous_track"
	case VolumeUpRequested:
		env.Type = "volume_up"
	case VolumeDownRequested:
		env.Type = "volume_down"

	case SetVolumeRequested:
		env.Type = "set_volume"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetVolumeRequested: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
