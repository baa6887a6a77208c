package main

import (
	"reflect"
	"testing"
)

func newTestRouter(t *testing.T, bus *fakeBus) (*TopicRouter, chan Event) {
	t.Helper()
	events := make(chan Event, 16)
	return NewTopicRouter(bus, "shairport", events, testLogger()), events
}

func TestTopicRouter_EventMapping(t *testing.T) {
	bus := newFakeBus()
	router, events := newTestRouter(t, bus)

	if err := router.Subscribe(); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer router.Unsubscribe()

	tests := []struct {
		topic   string
		payload string
		want    Event
	}{
		{"shairport/play_start", "", PlayStarted{}},
		{"shairport/play_resume", "", PlayStarted{}},
		{"shairport/play_end", "", PlayEnded{}},
		{"shairport/play_flush", "", PlayEnded{}},
		{"shairport/active_end", "", ActiveEnded{}},
		{"shairport/title", "So What", TitleChanged{Title: "So What"}},
		{"shairport/artist", "Miles Davis", ArtistChanged{Artist: "Miles Davis"}},
		{"shairport/album", "Kind of Blue", AlbumChanged{Album: "Kind of Blue"}},
		{"shairport/ssnc/pvol", "-20.00,-15.00,-30.00,0.00", VolumeReported{VolumeDB: -15, MinDB: -30, MaxDB: 0}},
		{"shairport/volume", "-20.00,-15.00,-30.00,0.00", VolumeReported{VolumeDB: -15, MinDB: -30, MaxDB: 0}},
	}

	for _, tt := range tests {
		bus.deliver(tt.topic, tt.payload)

		select {
		case got := <-events:
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s: got %#v, want %#v", tt.topic, got, tt.want)
			}
		default:
			t.Errorf("%s: no event emitted", tt.topic)
		}
	}
}

func TestTopicRouter_ArtworkCopied(t *testing.T) {
	bus := newFakeBus()
	router, events := newTestRouter(t, bus)

	if err := router.Subscribe(); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer router.Unsubscribe()

	payload := []byte{0xff, 0xd8, 0x01}
	bus.mu.Lock()
	handler := bus.handlers["shairport/cover"]
	bus.mu.Unlock()
	handler("shairport/cover", payload)

	ev := <-events
	art, ok := ev.(ArtworkChanged)
	if !ok {
		t.Fatalf("expected ArtworkChanged, got %T", ev)
	}

	// Mutating the broker's buffer after delivery must not affect the event.
	payload[0] = 0x00
	if art.Data[0] != 0xff {
		t.Errorf("artwork bytes were not copied out of the broker buffer")
	}
}

func TestTopicRouter_MalformedVolumeIgnored(t *testing.T) {
	bus := newFakeBus()
	router, events := newTestRouter(t, bus)

	if err := router.Subscribe(); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer router.Unsubscribe()

	bus.deliver("shairport/ssnc/pvol", "not,a,volume")
	bus.deliver("shairport/ssnc/pvol", "")

	select {
	case ev := <-events:
		t.Fatalf("expected malformed reports to be dropped, got %#v", ev)
	default:
	}

	// A good report after garbage still flows through.
	bus.deliver("shairport/ssnc/pvol", "-20,-15,-30,0")
	select {
	case ev := <-events:
		if _, ok := ev.(VolumeReported); !ok {
			t.Fatalf("expected VolumeReported, got %T", ev)
		}
	default:
		t.Fatalf("expected an event for the valid report")
	}
}

func TestTopicRouter_UnsubscribeReleasesAll(t *testing.T) {
	bus := newFakeBus()
	router, _ := newTestRouter(t, bus)

	if err := router.Subscribe(); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if got := bus.subscriptionCount(); got == 0 {
		t.Fatalf("expected subscriptions after Subscribe, got %d", got)
	}

	router.Unsubscribe()
	if got := bus.subscriptionCount(); got != 0 {
		t.Errorf("expected 0 subscriptions after Unsubscribe, got %d", got)
	}

	// Idempotent.
	router.Unsubscribe()
}

func TestTopicRouter_PartialFailureRollsBack(t *testing.T) {
	bus := newFakeBus()
	bus.failSubscribe["shairport/title"] = true
	router, _ := newTestRouter(t, bus)

	if err := router.Subscribe(); err == nil {
		t.Fatalf("expected subscribe to fail")
	}

	// Every subscription acquired before the failure must have been released.
	if got := bus.subscriptionCount(); got != 0 {
		t.Errorf("expected 0 subscriptions after failed Subscribe, got %d", got)
	}
}

func TestTopicRouter_RemoteTopic(t *testing.T) {
	bus := newFakeBus()
	router, _ := newTestRouter(t, bus)

	if got := router.RemoteTopic(); got != "shairport/remote" {
		t.Errorf("expected shairport/remote, got %q", got)
	}

	trailing := NewTopicRouter(bus, "shairport/den/", nil, testLogger())
	if got := trailing.RemoteTopic(); got != "shairport/den/remote" {
		t.Errorf("expected trailing slash trimmed, got %q", got)
	}
}
