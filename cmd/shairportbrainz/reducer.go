package main

import (
	"fmt"
	"time"
)

// This file implements the reducer building blocks:
//
//   - Commands: side effects requested by the reducer (remote publishes,
//     snapshot replies)
//   - Broadcasts: externally visible state-change notifications
//   - Reduce(): computes next state + commands + broadcasts, with no I/O
//
// The reducer must be pure: no I/O, no blocking, no clock reads. The daemon
// loop executes Commands and forwards Broadcasts to the notification hub.

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdSendRemote publishes one command token on the receiver's remote topic.
// Both explicit user volume steps and the convergence loop go through this
// same command; there is no other control path to the receiver.
type CmdSendRemote struct {
	Token string
}

func (CmdSendRemote) commandMarker()   {}
func (c CmdSendRemote) String() string { return fmt.Sprintf("CmdSendRemote(%s)", c.Token) }

// CmdSnapshotReply delivers a reducer-built snapshot to a requester.
// The channel send happens in the effects layer to keep the reducer pure.
type CmdSnapshotReply struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdSnapshotReply) commandMarker() {}
func (CmdSnapshotReply) String() string { return "CmdSnapshotReply()" }

// ==============================
// Broadcasts (state-change notifications)
// ==============================

// StateBroadcast is a fire-and-forget notification that externally visible
// state changed. Delivery is best-effort and unordered relative to later
// mutations; consumers that need coherence take a snapshot.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastStatusChanged announces a playback status transition.
type BroadcastStatusChanged struct {
	Status PlaybackStatus
	At     time.Time
}

func (BroadcastStatusChanged) broadcastMarker() {}

// BroadcastMetadataChanged announces new track metadata (or its clearing).
type BroadcastMetadataChanged struct {
	Title       string
	Artist      string
	Album       string
	ArtworkHash string
	At          time.Time
}

func (BroadcastMetadataChanged) broadcastMarker() {}

// BroadcastVolumeChanged announces a new displayed volume. VolumeDB is
// rounded to the broadcast precision; internal state keeps full precision.
type BroadcastVolumeChanged struct {
	Level      float64
	LevelKnown bool
	VolumeDB   float64
	At         time.Time
}

func (BroadcastVolumeChanged) broadcastMarker() {}

// BroadcastConvergeRejected reports a set-volume request that was dropped
// because the envelope or current volume is still unknown. Non-fatal: the
// requester is not informed beyond this event and the daemon's warning log.
type BroadcastConvergeRejected struct {
	Level  float64
	Reason string
	At     time.Time
}

func (BroadcastConvergeRejected) broadcastMarker() {}

// BroadcastConvergeFinished reports the end of a convergence loop, reached
// or exhausted. Exhaustion is a soft failure.
type BroadcastConvergeFinished struct {
	Reached      bool
	TargetDB     float64
	VolumeDB     float64
	AttemptsUsed int
	At           time.Time
}

func (BroadcastConvergeFinished) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ConvergeConfig parameterizes the closed-loop set-volume machine.
type ConvergeConfig struct {
	ToleranceDB float64
	MaxAttempts int
}

// ReduceResult is the output of Reduce().
type ReduceResult struct {
	State      *PlayerState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce applies one event to the player state.
//
// Rules:
//   - no I/O, no blocking, no mutation outside the returned state
//   - the daemon loop executes Commands and turns failures back into Events
func Reduce(s *PlayerState, e Event, cfg ConvergeConfig) ReduceResult {
	if s == nil {
		s = &PlayerState{}
	}
	if te, ok := e.(TimedEvent); ok {
		return reduce(s, te.Event, te.At, cfg)
	}
	if t, ok := e.(Tick); ok {
		return reduce(s, t, t.Now, cfg)
	}
	return reduce(s, e, time.Time{}, cfg)
}

func reduce(s *PlayerState, e Event, at time.Time, cfg ConvergeConfig) ReduceResult {
	var cmds []Command
	var bcs []StateBroadcast

	status := func(next PlaybackStatus) {
		hadMetadata := s.Title != "" || s.Artist != "" || s.Album != "" || len(s.Artwork) > 0
		if s.setStatus(next) {
			bcs = append(bcs, BroadcastStatusChanged{Status: next, At: at})
		}
		// An idle set clears metadata even when the status is unchanged, so
		// stale metadata written while idle never survives an active_end.
		if next == StatusIdle && hadMetadata {
			bcs = append(bcs, metadataBroadcast(s, at))
		}
	}

	switch ev := e.(type) {
	case Tick:
		if s.Converge.Phase == ConvergeActive {
			cmd, bc := stepConverge(s, at, cfg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			if bc != nil {
				bcs = append(bcs, bc)
			}
		}

	case PlayStarted:
		status(StatusPlaying)

	case PlayEnded:
		status(StatusPaused)

	case ActiveEnded:
		status(StatusIdle)

	case TitleChanged:
		if s.Title != ev.Title {
			s.Title = ev.Title
			bcs = append(bcs, metadataBroadcast(s, at))
		}

	case ArtistChanged:
		if s.Artist != ev.Artist {
			s.Artist = ev.Artist
			bcs = append(bcs, metadataBroadcast(s, at))
		}

	case AlbumChanged:
		if s.Album != ev.Album {
			s.Album = ev.Album
			bcs = append(bcs, metadataBroadcast(s, at))
		}

	case ArtworkChanged:
		if s.setArtwork(ev.Data) {
			bcs = append(bcs, metadataBroadcast(s, at))
		}

	case VolumeReported:
		prev := s.Volume

		if s.applyVolumeReport(ev.VolumeDB, ev.MinDB, ev.MaxDB) {
			// The displayed level depends on the bounds too, so a bound
			// change is always visible; only sub-precision moves of the
			// volume reading itself are suppressed.
			boundsChanged := prev.MinDB != ev.MinDB || prev.MaxDB != ev.MaxDB
			if !prev.Complete() || boundsChanged || roundDB(ev.VolumeDB) != roundDB(prev.VolumeDB) {
				level, known := s.VolumeLevel()
				bcs = append(bcs, BroadcastVolumeChanged{
					Level:      level,
					LevelKnown: known,
					VolumeDB:   roundDB(ev.VolumeDB),
					At:         at,
				})
			}
		}

	case PlayRequested:
		cmds = append(cmds, CmdSendRemote{Token: remotePlay})
		status(StatusPlaying)

	case PauseRequested:
		cmds = append(cmds, CmdSendRemote{Token: remotePause})
		status(StatusPaused)

	case StopRequested:
		cmds = append(cmds, CmdSendRemote{Token: remoteStop})
		status(StatusIdle)

	case PlayPauseRequested:
		if s.Status == StatusPlaying {
			cmds = append(cmds, CmdSendRemote{Token: remotePause})
			status(StatusPaused)
		} else {
			cmds = append(cmds, CmdSendRemote{Token: remotePlay})
			status(StatusPlaying)
		}

	case NextTrackRequested:
		// The receiver's own reports are authoritative for track changes.
		cmds = append(cmds, CmdSendRemote{Token: remoteNext})

	case PreviousTrackRequested:
		cmds = append(cmds, CmdSendRemote{Token: remotePrevious})

	case VolumeUpRequested:
		cmds = append(cmds, CmdSendRemote{Token: remoteVolumeUp})

	case VolumeDownRequested:
		cmds = append(cmds, CmdSendRemote{Token: remoteVolumeDown})

	case SetVolumeRequested:
		switch {
		case !s.Volume.MinKnown || !s.Volume.MaxKnown:
			bcs = append(bcs, BroadcastConvergeRejected{
				Level: ev.Level, Reason: "volume envelope unknown", At: at,
			})
		case !s.Volume.VolumeKnown:
			bcs = append(bcs, BroadcastConvergeRejected{
				Level: ev.Level, Reason: "current volume unknown", At: at,
			})
		default:
			// A new request supersedes any in-flight convergence; the two
			// loops must never race on the same receiver.
			s.Converge = ConvergeState{
				Phase:        ConvergeActive,
				TargetDB:     taperedDBFromLevel(ev.Level, s.Volume),
				AttemptsLeft: cfg.MaxAttempts,
			}
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdSnapshotReply{Reply: ev.Reply, Snapshot: snapshotOf(s)})

	case PublishFailed:
		// Already logged by the effects layer; nothing to undo locally.

	default:
		// Unknown event: no-op.
	}

	return ReduceResult{State: s, Commands: cmds, Broadcasts: bcs}
}

// stepConverge advances the closed-loop set-volume machine by one attempt.
// Called once per tick while Phase == ConvergeActive; each tick either
// confirms success, burns an attempt waiting for a report, or issues exactly
// one relative step command in the direction of the residual.
func stepConverge(s *PlayerState, at time.Time, cfg ConvergeConfig) (Command, StateBroadcast) {
	c := &s.Converge

	if !s.Volume.VolumeKnown {
		// Report lost or not yet arrived: wait one interval, on budget.
		if c.AttemptsLeft <= 0 {
			c.Phase = ConvergeExhausted
			return nil, BroadcastConvergeFinished{
				Reached:      false,
				TargetDB:     c.TargetDB,
				VolumeDB:     s.Volume.VolumeDB,
				AttemptsUsed: cfg.MaxAttempts,
				At:           at,
			}
		}
		c.AttemptsLeft--
		return nil, nil
	}

	diff := c.TargetDB - s.Volume.VolumeDB
	if diff <= cfg.ToleranceDB && diff >= -cfg.ToleranceDB {
		c.Phase = ConvergeReached
		return nil, BroadcastConvergeFinished{
			Reached:      true,
			TargetDB:     c.TargetDB,
			VolumeDB:     s.Volume.VolumeDB,
			AttemptsUsed: cfg.MaxAttempts - c.AttemptsLeft,
			At:           at,
		}
	}

	if c.AttemptsLeft <= 0 {
		c.Phase = ConvergeExhausted
		return nil, BroadcastConvergeFinished{
			Reached:      false,
			TargetDB:     c.TargetDB,
			VolumeDB:     s.Volume.VolumeDB,
			AttemptsUsed: cfg.MaxAttempts,
			At:           at,
		}
	}

	c.AttemptsLeft--
	token := remoteVolumeUp
	if diff < 0 {
		token = remoteVolumeDown
	}
	return CmdSendRemote{Token: token}, nil
}

func metadataBroadcast(s *PlayerState, at time.Time) BroadcastMetadataChanged {
	return BroadcastMetadataChanged{
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		ArtworkHash: s.ArtworkHash(),
		At:          at,
	}
}
