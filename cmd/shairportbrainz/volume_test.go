package main

import (
	"math"
	"testing"
)

func TestTaperedLevelFromDB_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		volumeDB float64
		maxDB    float64
		want     float64
	}{
		{"at max", 0.0, 0.0, 1.0},
		{"15 below max", -15.0, 0.0, 0.17782794100389226},
		{"20 below max", -20.0, 0.0, 0.1},
		{"40 below max", -40.0, 0.0, 0.01},
		{"nonzero max", -26.0, -6.0, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := taperedLevelFromDB(tt.volumeDB, tt.maxDB, true, true)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("taperedLevelFromDB(%v, %v) = %v, want %v", tt.volumeDB, tt.maxDB, got, tt.want)
			}
		})
	}
}

func TestTaperedLevelFromDB_UnknownReturnsZero(t *testing.T) {
	if got := taperedLevelFromDB(-10, 0, false, true); got != 0.0 {
		t.Errorf("expected 0.0 with unknown volume, got %v", got)
	}
	if got := taperedLevelFromDB(-10, 0, true, false); got != 0.0 {
		t.Errorf("expected 0.0 with unknown max, got %v", got)
	}
}

func TestTaperedLevelFromDB_ClampsAboveMax(t *testing.T) {
	// A reading above the reported max must not produce a level above 1.
	if got := taperedLevelFromDB(5.0, 0.0, true, true); got != 1.0 {
		t.Errorf("expected clamp to 1.0, got %v", got)
	}
}

func TestTaperedDBFromLevel_ZeroLevelFallsToMin(t *testing.T) {
	env := VolumeEnvelope{MinDB: -30, MinKnown: true, MaxDB: 0, MaxKnown: true}
	if got := taperedDBFromLevel(0, env); got != -30 {
		t.Errorf("expected min_db for level 0, got %v", got)
	}

	// Without a reported minimum, the fixed floor applies.
	if got := taperedDBFromLevel(0, VolumeEnvelope{MaxDB: 0, MaxKnown: true}); got != volumeFloorDB {
		t.Errorf("expected floor %v for level 0 without min, got %v", volumeFloorDB, got)
	}
}

func TestTaperedDBFromLevel_UnknownMaxFallsToMin(t *testing.T) {
	env := VolumeEnvelope{MinDB: -30, MinKnown: true}
	if got := taperedDBFromLevel(0.5, env); got != -30 {
		t.Errorf("expected min_db with unknown max, got %v", got)
	}
}

func TestTapered_RoundTrip(t *testing.T) {
	env := VolumeEnvelope{MinDB: -30, MinKnown: true, MaxDB: 0, MaxKnown: true}
	for _, level := range []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1.0} {
		db := taperedDBFromLevel(level, env)
		back := taperedLevelFromDB(db, env.MaxDB, true, true)
		if math.Abs(back-level) > 1e-12 {
			t.Errorf("round trip for level %v: db=%v back=%v", level, db, back)
		}
	}
}

func TestParseVolumeReport(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantVol float64
		wantMin float64
		wantMax float64
		wantErr bool
	}{
		{"typical", "-20.00,-15.00,-30.00,0.00", -15.0, -30.0, 0.0, false},
		{"spaces", " -20.00 , -15.00 , -30.00 , 0.00 ", -15.0, -30.0, 0.0, false},
		{"extra fields tolerated", "-20,-15,-30,0,junk", -15.0, -30.0, 0.0, false},
		{"too few fields", "-20,-15,-30", 0, 0, 0, true},
		{"empty", "", 0, 0, 0, true},
		{"non-numeric volume", "-20,abc,-30,0", 0, 0, 0, true},
		{"non-numeric min", "-20,-15,abc,0", 0, 0, 0, true},
		{"non-numeric max", "-20,-15,-30,abc", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol, min, max, err := parseVolumeReport(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if vol != tt.wantVol || min != tt.wantMin || max != tt.wantMax {
				t.Errorf("got (%v, %v, %v), want (%v, %v, %v)",
					vol, min, max, tt.wantVol, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRoundDB(t *testing.T) {
	if got := roundDB(-12.04); got != -12.0 {
		t.Errorf("roundDB(-12.04) = %v, want -12.0", got)
	}
	if got := roundDB(-11.96); math.Abs(got-(-12.0)) > 1e-9 {
		t.Errorf("roundDB(-11.96) = %v, want -12.0", got)
	}
	if got := roundDB(-11.94); math.Abs(got-(-11.9)) > 1e-9 {
		t.Errorf("roundDB(-11.94) = %v, want -11.9", got)
	}
}
