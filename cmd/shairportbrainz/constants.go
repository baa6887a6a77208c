package main

// Closed-loop volume convergence configuration
const (
	defaultToleranceDB    = 0.5 // Stop when |target - current| is within this (dB)
	defaultMaxAttempts    = 50  // Attempt budget per set-volume request
	defaultStepIntervalMS = 200 // Delay between convergence attempts (ms)

	// volumeFloorDB is the target used for level <= 0 when the receiver has
	// not yet reported its minimum volume.
	volumeFloorDB = -30.0

	// volumeBroadcastPrecisionDB rounds volume broadcasts so bursty reports
	// that differ below audibility don't fan out to every client.
	volumeBroadcastPrecisionDB = 0.1
)

// Channel and queue sizing
const (
	defaultEventBuf = 256 // inbound daemon event queue
)
