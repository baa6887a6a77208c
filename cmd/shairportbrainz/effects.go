package main

import (
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command (side effect) against
// external systems (the MQTT remote topic) and emits observation Events via
// onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced
//   by the daemon loop.
// - The daemon loop is responsible for sequencing:
//   Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	bus MessageBus,
	remoteTopic string,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		// No place to report observations/errors; nothing sensible to do.
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdSendRemote:
		if bus == nil {
			onEvent(PublishFailed{Token: c.Token, Err: errNoBus{}, At: now})
			return
		}
		if err := bus.Publish(remoteTopic, []byte(c.Token)); err != nil {
			logger.Error("remote publish failed", "token", c.Token, "topic", remoteTopic, "error", err)
			onEvent(PublishFailed{Token: c.Token, Err: err, At: now})
			return
		}
		logger.Debug("remote command published", "token", c.Token, "topic", remoteTopic)

	case CmdSnapshotReply:
		// Deliver the reducer-produced snapshot to the requester. The channel
		// send lives here so the reducer stays pure.
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the effects worker indefinitely.
		select {
		case c.Reply <- c.Snapshot:
			// delivered
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

// errNoBus indicates the daemon was asked to publish without a message bus.
type errNoBus struct{}

func (errNoBus) Error() string { return "no message bus" }
