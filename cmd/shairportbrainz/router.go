package main

import (
	"log/slog"
	"strings"
)

// TopicRouter subscribes to the receiver's MQTT topic tree and translates
// incoming messages into Events for the daemon loop. It owns no state of its
// own; all interpretation beyond payload parsing happens in the reducer.
type TopicRouter struct {
	bus    MessageBus
	base   string
	events chan<- Event
	logger *slog.Logger

	unsubscribes []func()
}

// NewTopicRouter builds a router for the receiver publishing under base
// (e.g. "shairport/living-room"). Call Subscribe to start receiving.
func NewTopicRouter(bus MessageBus, base string, events chan<- Event, logger *slog.Logger) *TopicRouter {
	return &TopicRouter{
		bus:    bus,
		base:   strings.TrimSuffix(base, "/"),
		events: events,
		logger: logger,
	}
}

// routes returns the suffix -> event builder dispatch table. Builders that
// return nil drop the message (used for unparseable payloads).
func (r *TopicRouter) routes() []struct {
	suffix string
	build  func(payload []byte) Event
} {
	return []struct {
		suffix string
		build  func(payload []byte) Event
	}{
		{topicPlayStart, func([]byte) Event { return PlayStarted{} }},
		{topicPlayResume, func([]byte) Event { return PlayStarted{} }},
		{topicPlayEnd, func([]byte) Event { return PlayEnded{} }},
		{topicPlayFlush, func([]byte) Event { return PlayEnded{} }},
		{topicActiveEnd, func([]byte) Event { return ActiveEnded{} }},
		{topicTitle, func(p []byte) Event { return TitleChanged{Title: string(p)} }},
		{topicArtist, func(p []byte) Event { return ArtistChanged{Artist: string(p)} }},
		{topicAlbum, func(p []byte) Event { return AlbumChanged{Album: string(p)} }},
		{topicCover, r.buildArtwork},
		{topicVolumePrimary, r.buildVolume},
		{topicVolumeFallback, r.buildVolume},
	}
}

func (r *TopicRouter) buildArtwork(payload []byte) Event {
	// Copy: the MQTT client may reuse the payload buffer after the handler
	// returns, and the artwork bytes live on in player state.
	data := make([]byte, len(payload))
	copy(data, payload)
	return ArtworkChanged{Data: data}
}

// buildVolume parses the receiver's volume report. Both the ssnc/pvol and
// legacy volume topics carry the same comma-separated payload.
func (r *TopicRouter) buildVolume(payload []byte) Event {
	volumeDB, minDB, maxDB, err := parseVolumeReport(string(payload))
	if err != nil {
		r.logger.Warn("ignoring malformed volume report", "payload", string(payload), "error", err)
		return nil
	}
	return VolumeReported{VolumeDB: volumeDB, MinDB: minDB, MaxDB: maxDB}
}

// Subscribe registers all topic handlers. On partial failure every already
// acquired subscription is released before returning the error.
func (r *TopicRouter) Subscribe() error {
	for _, route := range r.routes() {
		build := route.build
		topic := r.base + "/" + route.suffix

		unsub, err := r.bus.Subscribe(topic, func(topic string, payload []byte) {
			ev := build(payload)
			if ev == nil {
				return
			}
			r.events <- ev
		})
		if err != nil {
			r.Unsubscribe()
			return err
		}
		r.unsubscribes = append(r.unsubscribes, unsub)
	}

	r.logger.Info("topic router subscribed", "base", r.base, "topics", len(r.unsubscribes))
	return nil
}

// Unsubscribe releases every subscription the router holds. Safe to call
// repeatedly and after a failed Subscribe.
func (r *TopicRouter) Unsubscribe() {
	for _, unsub := range r.unsubscribes {
		unsub()
	}
	r.unsubscribes = nil
}

// RemoteTopic is where outgoing command tokens are published.
func (r *TopicRouter) RemoteTopic() string {
	return r.base + "/" + topicRemote
}
