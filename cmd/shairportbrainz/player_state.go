package main

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
)

// PlaybackStatus is the player's observed transport state.
//
// The machine is cyclic and terminal-free: Idle -> Playing -> Paused -> ...
// driven entirely by receiver reports (and optimistic local transport
// commands).
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

// VolumeEnvelope is the receiver's reported volume range, in dB.
// Each value may independently be unknown until a report has carried it; a
// normalized level is only derivable once all three are known.
type VolumeEnvelope struct {
	VolumeDB    float64
	VolumeKnown bool

	MinDB    float64
	MinKnown bool

	MaxDB    float64
	MaxKnown bool
}

// Complete reports whether all three envelope values have been observed.
func (e VolumeEnvelope) Complete() bool {
	return e.VolumeKnown && e.MinKnown && e.MaxKnown
}

// ConvergePhase is the state of the closed-loop set-volume machine.
type ConvergePhase int

const (
	ConvergeIdle ConvergePhase = iota
	ConvergeActive
	ConvergeReached
	ConvergeExhausted
)

func (p ConvergePhase) String() string {
	switch p {
	case ConvergeActive:
		return "converging"
	case ConvergeReached:
		return "reached"
	case ConvergeExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// ConvergeState tracks an in-flight set-volume convergence. A new set-volume
// request supersedes whatever is here; there is never more than one loop.
type ConvergeState struct {
	Phase        ConvergePhase
	TargetDB     float64
	AttemptsLeft int
}

// PlayerState is the single daemon-owned state container.
//
// It is mutated only by the reducer, which runs on the daemon goroutine;
// everything outside the loop sees it through StateSnapshot copies.
type PlayerState struct {
	Status PlaybackStatus

	// Metadata is only meaningful while Status != StatusIdle; entering Idle
	// clears all four fields in the same reduction.
	Title   string
	Artist  string
	Album   string
	Artwork []byte

	Volume   VolumeEnvelope
	Converge ConvergeState
}

// setStatus updates the transport state and clears metadata on Idle so stale
// track info never outlives the session that produced it. The clear happens
// on every idle set, even when the status is unchanged (metadata topics set
// fields regardless of status). Returns true if the status itself changed.
func (s *PlayerState) setStatus(status PlaybackStatus) bool {
	changed := s.Status != status
	s.Status = status
	if status == StatusIdle {
		s.Title = ""
		s.Artist = ""
		s.Album = ""
		s.Artwork = nil
	}
	return changed
}

// setArtwork replaces the artwork blob. Returns true if the bytes changed.
func (s *PlayerState) setArtwork(data []byte) bool {
	if bytes.Equal(s.Artwork, data) {
		return false
	}
	s.Artwork = data
	return true
}

// applyVolumeReport records a parsed volume report. Returns true if any
// envelope value changed.
func (s *PlayerState) applyVolumeReport(volumeDB, minDB, maxDB float64) bool {
	prev := s.Volume
	s.Volume = VolumeEnvelope{
		VolumeDB: volumeDB, VolumeKnown: true,
		MinDB: minDB, MinKnown: true,
		MaxDB: maxDB, MaxKnown: true,
	}
	return prev != s.Volume
}

// VolumeLevel returns the normalized 0..1 level for display. The level is
// unknown (ok=false) until the full envelope has been observed.
func (s *PlayerState) VolumeLevel() (level float64, ok bool) {
	if !s.Volume.Complete() {
		return 0, false
	}
	return taperedLevelFromDB(s.Volume.VolumeDB, s.Volume.MaxDB, true, true), true
}

// ArtworkHash returns an MD5 hex digest of the artwork for change detection,
// or "" if no artwork is present.
func (s *PlayerState) ArtworkHash() string {
	if len(s.Artwork) == 0 {
		return ""
	}
	sum := md5.Sum(s.Artwork)
	return hex.EncodeToString(sum[:])
}

// StateSnapshot is a copy-safe view of PlayerState handed to IPC and
// WebSocket clients. MediaContentType and SupportedFeatures mirror the
// entity contract of the home-automation host this daemon feeds.
type StateSnapshot struct {
	Status string `json:"status"`

	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	ArtworkHash string `json:"artwork_hash,omitempty"`

	VolumeLevel      float64 `json:"volume_level"`
	VolumeLevelKnown bool    `json:"volume_level_known"`
	VolumeDB         float64 `json:"volume_db"`
	MinDB            float64 `json:"min_db"`
	MaxDB            float64 `json:"max_db"`
	EnvelopeKnown    bool    `json:"envelope_known"`

	ConvergePhase string `json:"converge_phase"`

	MediaContentType  string   `json:"media_content_type"`
	SupportedFeatures []string `json:"supported_features"`
}

// supportedFeatures is static: the receiver's remote channel defines it.
var supportedFeatures = []string{
	"play", "pause", "stop",
	"next_track", "previous_track",
	"volume_step", "volume_set",
}

// snapshotOf builds a StateSnapshot from the daemon-owned state.
func snapshotOf(s *PlayerState) StateSnapshot {
	level, known := s.VolumeLevel()
	return StateSnapshot{
		Status:      s.Status.String(),
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		ArtworkHash: s.ArtworkHash(),

		VolumeLevel:      level,
		VolumeLevelKnown: known,
		VolumeDB:         s.Volume.VolumeDB,
		MinDB:            s.Volume.MinDB,
		MaxDB:            s.Volume.MaxDB,
		EnvelopeKnown:    s.Volume.Complete(),

		ConvergePhase: s.Converge.Phase.String(),

		MediaContentType:  "music",
		SupportedFeatures: supportedFeatures,
	}
}
