package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// shairport-sync reports absolute volume in dB on its status channel but only
// accepts relative volumeup/volumedown tokens on its control channel, so all
// conversions here deal with the receiver's native tapered (perceptual) curve:
//
//	level = 10^((volume_db - max_db) / 20)
//
// This matches shairport-sync's default "dasl_tapered" volume mapping.

// taperedLevelFromDB converts a dB reading into a normalized 0..1 level.
// Returns 0.0 when either value is unknown; the result is clamped to [0, 1]
// so out-of-envelope readings never produce an impossible level.
func taperedLevelFromDB(volumeDB, maxDB float64, volumeKnown, maxKnown bool) float64 {
	if !volumeKnown || !maxKnown {
		return 0.0
	}
	level := math.Pow(10, (volumeDB-maxDB)/20)
	return math.Min(1.0, math.Max(0.0, level))
}

// taperedDBFromLevel converts a normalized 0..1 level into a target dB value.
// A non-positive level (or an unknown max) maps to the reported minimum, or
// to the fixed volumeFloorDB floor if no minimum has been observed yet.
func taperedDBFromLevel(level float64, env VolumeEnvelope) float64 {
	if !env.MaxKnown || level <= 0 {
		if env.MinKnown {
			return env.MinDB
		}
		return volumeFloorDB
	}
	return env.MaxDB + 20*math.Log10(level)
}

// parseVolumeReport parses a shairport-sync volume report payload:
//
//	airplay_volume,volume,lowest_volume,highest_volume
//
// Only fields 2-4 are consumed. Extra trailing fields are tolerated.
func parseVolumeReport(payload string) (volumeDB, minDB, maxDB float64, err error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 4 {
		return 0, 0, 0, fmt.Errorf("volume report has %d fields, want at least 4", len(parts))
	}

	volumeDB, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse volume field: %w", err)
	}
	minDB, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse lowest_volume field: %w", err)
	}
	maxDB, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse highest_volume field: %w", err)
	}

	return volumeDB, minDB, maxDB, nil
}

// roundDB rounds a dB value to the broadcast precision.
func roundDB(db float64) float64 {
	return math.Round(db/volumeBroadcastPrecisionDB) * volumeBroadcastPrecisionDB
}
