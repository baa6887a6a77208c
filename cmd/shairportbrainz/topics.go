package main

// shairport-sync MQTT topic suffixes, relative to the configured base topic.
// These match the names shairport-sync publishes when built with MQTT support.
const (
	topicPlayStart  = "play_start"
	topicPlayResume = "play_resume"
	topicPlayEnd    = "play_end"
	topicPlayFlush  = "play_flush"
	topicActiveEnd  = "active_end"

	topicArtist = "artist"
	topicAlbum  = "album"
	topicTitle  = "title"
	topicCover  = "cover"

	// Volume reports: ssnc/pvol is the native channel; volume is a fallback
	// some shairport-sync builds publish instead. Both carry the same
	// "airplay_volume,volume,lowest_volume,highest_volume" payload.
	topicVolumePrimary  = "ssnc/pvol"
	topicVolumeFallback = "volume"

	// topicRemote is the publish side: one command token per message.
	topicRemote = "remote"

	// topicAvailability is where this daemon announces its own liveness
	// (retained online/offline plus a matching last-will).
	topicAvailability = "controller/status"
)

// Remote command tokens accepted by shairport-sync on the remote topic.
const (
	remotePlay       = "play"
	remotePause      = "pause"
	remoteStop       = "stop"
	remoteNext       = "nextitem"
	remotePrevious   = "previtem"
	remoteVolumeUp   = "volumeup"
	remoteVolumeDown = "volumedown"
)
