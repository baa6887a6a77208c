package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// state-listen connects to the shairportbrainz state WebSocket and prints
// state events as they arrive. Handy for debugging the daemon without a UI.

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3001/ws/state", "shairportbrainz state WebSocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of formatted output")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// Ping/pong keepalive; the daemon pings us too, gorilla answers those
	// automatically in ReadMessage.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				fmt.Printf("%s\n", string(message))
				continue
			}
			printEvent(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// printEvent formats one state event per line, with a fallback to pretty JSON
// for event types this tool doesn't know.
func printEvent(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "state_init":
		var data struct {
			Status      string  `json:"status"`
			Title       string  `json:"title"`
			Artist      string  `json:"artist"`
			Album       string  `json:"album"`
			VolumeLevel float64 `json:"volume_level"`
			VolumeKnown bool    `json:"volume_level_known"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Printf("[INIT] status=%s title=%q artist=%q album=%q volume=%.2f known=%v\n",
			data.Status, data.Title, data.Artist, data.Album, data.VolumeLevel, data.VolumeKnown)
		return

	case "status_changed":
		var data struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Printf("[STATUS] %s\n", data.Status)
		return

	case "metadata_changed":
		var data struct {
			Title       string `json:"title"`
			Artist      string `json:"artist"`
			Album       string `json:"album"`
			ArtworkHash string `json:"artwork_hash"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Printf("[METADATA] title=%q artist=%q album=%q artwork=%s\n",
			data.Title, data.Artist, data.Album, data.ArtworkHash)
		return

	case "volume_changed":
		var data struct {
			Level      float64 `json:"level"`
			LevelKnown bool    `json:"level_known"`
			VolumeDB   float64 `json:"volume_db"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		fmt.Printf("[VOLUME] %.2f (%.1f dB, known=%v)\n", data.Level, data.VolumeDB, data.LevelKnown)
		return

	case "converge_finished":
		var data struct {
			Reached      bool    `json:"reached"`
			TargetDB     float64 `json:"target_db"`
			VolumeDB     float64 `json:"volume_db"`
			AttemptsUsed int     `json:"attempts_used"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			break
		}
		outcome := "REACHED"
		if !data.Reached {
			outcome = "GAVE UP"
		}
		fmt.Printf("[CONVERGE] %s target=%.1f dB current=%.1f dB attempts=%d\n",
			outcome, data.TargetDB, data.VolumeDB, data.AttemptsUsed)
		return
	}

	// Unknown or unparseable: pretty print the whole frame.
	var jsonData map[string]any
	if err := json.Unmarshal(message, &jsonData); err == nil {
		prettyJSON, _ := json.MarshalIndent(jsonData, "", "  ")
		fmt.Printf("[EVENT]\n%s\n\n", string(prettyJSON))
	} else {
		fmt.Printf("[TEXT] %s\n", string(message))
	}
}
