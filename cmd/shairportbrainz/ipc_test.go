package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestIPC_RoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	events := make(chan Event, 16)
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runIPCServer(ctx, socketPath, events, logger)
	}()

	// Wait for the listener to come up.
	waitUntil(t, 2*time.Second, func() bool {
		return SendIPCEvent(socketPath, PlayPauseRequested{}) == nil
	}, "IPC server did not come up")

	select {
	case ev := <-events:
		if _, ok := ev.(PlayPauseRequested); !ok {
			t.Fatalf("expected PlayPauseRequested, got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered to daemon channel")
	}

	if err := SendIPCEvent(socketPath, SetVolumeRequested{Level: 0.6}); err != nil {
		t.Fatalf("send set_volume: %v", err)
	}
	select {
	case ev := <-events:
		sv, ok := ev.(SetVolumeRequested)
		if !ok {
			t.Fatalf("expected SetVolumeRequested, got %T", ev)
		}
		if sv.Level != 0.6 {
			t.Errorf("expected level 0.6, got %v", sv.Level)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered to daemon channel")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("IPC server did not stop on context cancel")
	}
}
