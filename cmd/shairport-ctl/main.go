package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// shairport-ctl - Command-line IPC Client
// ============================================================================
// This tool sends transport requests to the shairportbrainz daemon via IPC.
//
// Usage:
//   shairport-ctl play
//   shairport-ctl pause
//   shairport-ctl set-volume 0.6
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/shairportbrainz.sock)
// ============================================================================

// Request types (duplicated from the daemon package for a standalone binary)
type Request interface{}

type PlayRequested struct{}
type PauseRequested struct{}
type StopRequested struct{}
type PlayPauseRequested struct{}
type NextTrackRequested struct{}
type PreviousTrackRequested struct{}
type VolumeUpRequested struct{}
type VolumeDownRequested struct{}

type SetVolumeRequested struct {
	Level float64 `json:"level"`
}

// EventEnvelope wraps requests for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/shairportbrainz.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var req Request

	switch args[0] {
	case "play":
		req = PlayRequested{}

	case "pause":
		req = PauseRequested{}

	case "stop":
		req = StopRequested{}

	case "play-pause", "toggle":
		req = PlayPauseRequested{}

	case "next":
		req = NextTrackRequested{}

	case "previous", "prev":
		req = PreviousTrackRequested{}

	case "volume-up", "up":
		req = VolumeUpRequested{}

	case "volume-down", "down":
		req = VolumeDownRequested{}

	case "set-volume", "set":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-volume requires a level between 0.0 and 1.0\n")
			os.Exit(1)
		}
		level, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid level: %v\n", err)
			os.Exit(1)
		}
		if level < 0 || level > 1 {
			fmt.Fprintf(os.Stderr, "error: level must be between 0.0 and 1.0\n")
			os.Exit(1)
		}
		req = SetVolumeRequested{Level: level}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendRequest(socketPath, req); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

func sendRequest(socketPath string, req Request) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalRequest(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	// Send request (line-delimited JSON)
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalRequest(req Request) ([]byte, error) {
	var env EventEnvelope

	switch r := req.(type) {
	case PlayRequested:
		env.Type = "play"

	case PauseRequested:
		env.Type = "pause"

	case StopRequested:
		env.Type = "stop"

	case PlayPauseRequested:
		env.Type = "play_pause"

	case NextTrackRequested:
		env.Type = "next_track"

	case PreviousTrackRequested:
		env.Type = "previous_track"

	case VolumeUpRequested:
		env.Type = "volume_up"

	case VolumeDownRequested:
		env.Type = "volume_down"

	case SetVolumeRequested:
		env.Type = "set_volume"
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal SetVolumeRequested: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown request type: %T", req)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `shairport-ctl - Control shairportbrainz daemon via IPC

Usage:
  shairport-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/shairportbrainz.sock)

Commands:
  play                    Start playback
  pause                   Pause playback
  stop                    Stop playback
  play-pause, toggle      Toggle between play and pause
  next                    Skip to next track
  previous, prev          Skip to previous track
  volume-up, up           Single volume step up
  volume-down, down       Single volume step down
  set-volume, set <lvl>   Converge to volume level 0.0-1.0 (e.g., 0.6)
  help, -h, --help        Show this help message

Examples:
  shairport-ctl play-pause
  shairport-ctl set-volume 0.5
  shairport-ctl -socket /var/run/shairportbrainz.sock next
`)
}
