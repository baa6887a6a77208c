package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop - Reducer-driven "Player Brain"
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place that executes side effects (MQTT publishes).
//   - Publish failures are turned into Events and fed back into the reducer.
//   - The tick cadence doubles as the inter-attempt delay of the set-volume
//     convergence loop, so there is exactly one timing source in the daemon.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Receives Events from the topic router, IPC server, and WS snapshot requests
//   - Emits Tick events on a fixed cadence
//   - Reduces events into (state, commands, broadcasts)
//   - Executes commands against the MQTT bus and feeds observations back
//   - Forwards broadcasts to the notification channel (best effort)
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	bus MessageBus,
	remoteTopic string,
	cfg ConvergeConfig,
	stepInterval time.Duration,
	state *PlayerState,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		state = &PlayerState{}
	}

	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}
	enqueueCommands := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		cmdQueue = append(cmdQueue, cmds...)
	}

	publishBroadcasts := func(bcs []StateBroadcast) {
		for _, bc := range bcs {
			logBroadcast(logger, bc)
			if broadcasts == nil {
				continue
			}
			// Never let a slow consumer stall event processing.
			select {
			case broadcasts <- bc:
			default:
				logger.Warn("broadcast channel full; dropping state broadcast")
			}
		}
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			enqueueCommands(rr.Commands)
			publishBroadcasts(rr.Broadcasts)
		}
	}

	// Execute all queued commands, enqueuing observation events.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(bus, remoteTopic, cmd, logger, func(obs Event) {
				enqueueEvent(obs)
			})

			// Observations should be reduced promptly so the reducer can emit
			// follow-up commands (if any).
			flushEvents()
		}
	}

	// Main loop
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			enqueueEvent(Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}

// logBroadcast gives non-fatal outcomes a log line; routine state changes
// stay at debug so the daemon is quiet in steady state.
func logBroadcast(logger *slog.Logger, bc StateBroadcast) {
	switch b := bc.(type) {
	case BroadcastConvergeRejected:
		logger.Warn("set-volume request rejected", "level", b.Level, "reason", b.Reason)
	case BroadcastConvergeFinished:
		if b.Reached {
			logger.Debug("volume convergence reached target",
				"target_db", b.TargetDB, "volume_db", b.VolumeDB, "attempts", b.AttemptsUsed)
		} else {
			logger.Warn("volume convergence gave up",
				"target_db", b.TargetDB, "volume_db", b.VolumeDB, "attempts", b.AttemptsUsed)
		}
	case BroadcastStatusChanged:
		logger.Debug("playback status changed", "status", b.Status.String())
	case BroadcastVolumeChanged:
		logger.Debug("volume changed", "volume_db", b.VolumeDB, "level", b.Level)
	case BroadcastMetadataChanged:
		logger.Debug("metadata changed", "title", b.Title, "artist", b.Artist, "album", b.Album)
	}
}
