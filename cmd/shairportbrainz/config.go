package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the shairportbrainz daemon.
//
// Design goals:
// - Make the config file the primary configuration surface.
// - Keep flags for small overrides and for environments where a file is awkward.
// - Keep defaults and validation centralized so the rest of the code can
//   assume a well-formed config.
type Config struct {
	// MQTT broker and receiver topic configuration
	MQTT MQTTConfig `yaml:"mqtt"`

	// Closed-loop set-volume configuration
	Volume VolumeConfig `yaml:"volume"`

	// IPC configuration (used by shairport-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket server configuration
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type MQTTConfig struct {
	// BrokerURL is a paho broker URL, e.g. "tcp://127.0.0.1:1883".
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`

	// Topic is the receiver's base topic as configured in shairport-sync,
	// e.g. "shairport/living-room".
	Topic string `yaml:"topic"`
}

type VolumeConfig struct {
	ToleranceDB    float64 `yaml:"tolerance_db"`
	MaxAttempts    int     `yaml:"max_attempts"`
	StepIntervalMS int     `yaml:"step_interval_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		MQTT: MQTTConfig{
			BrokerURL: "tcp://127.0.0.1:1883",
			ClientID:  "shairportbrainz",
			Topic:     "shairport",
		},
		Volume: VolumeConfig{
			ToleranceDB:    defaultToleranceDB,
			MaxAttempts:    defaultMaxAttempts,
			StepIntervalMS: defaultStepIntervalMS,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/shairportbrainz.sock",
		},
		StateWS: StateWSConfig{
			Port: 3001,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - A leading "~" in the path is expanded against $HOME.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if the pointer is
// non-nil (even if it carries a zero value). main.go decides which flags exist.
type FlagOverrides struct {
	MQTTBrokerURL *string
	MQTTClientID  *string
	MQTTUsername  *string
	MQTTPassword  *string
	MQTTTopic     *string

	VolToleranceDB    *float64
	VolMaxAttempts    *int
	VolStepIntervalMS *int

	IPCSocketPath *string
	StateWSPort   *int

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.MQTTBrokerURL != nil {
		cfg.MQTT.BrokerURL = *o.MQTTBrokerURL
	}
	if o.MQTTClientID != nil {
		cfg.MQTT.ClientID = *o.MQTTClientID
	}
	if o.MQTTUsername != nil {
		cfg.MQTT.Username = *o.MQTTUsername
	}
	if o.MQTTPassword != nil {
		cfg.MQTT.Password = *o.MQTTPassword
	}
	if o.MQTTTopic != nil {
		cfg.MQTT.Topic = *o.MQTTTopic
	}

	if o.VolToleranceDB != nil {
		cfg.Volume.ToleranceDB = *o.VolToleranceDB
	}
	if o.VolMaxAttempts != nil {
		cfg.Volume.MaxAttempts = *o.VolMaxAttempts
	}
	if o.VolStepIntervalMS != nil {
		cfg.Volume.StepIntervalMS = *o.VolStepIntervalMS
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Port = *o.StateWSPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// MQTT
	if c.MQTT.BrokerURL == "" {
		return errors.New("mqtt.broker_url must not be empty")
	}
	if c.MQTT.ClientID == "" {
		return errors.New("mqtt.client_id must not be empty")
	}
	if c.MQTT.Topic == "" {
		return errors.New("mqtt.topic must not be empty")
	}
	if strings.HasPrefix(c.MQTT.Topic, "/") {
		return errors.New("mqtt.topic must not start with '/'")
	}
	if strings.ContainsAny(c.MQTT.Topic, "+#") {
		return errors.New("mqtt.topic must not contain wildcards")
	}

	// Volume
	if c.Volume.ToleranceDB <= 0 {
		return errors.New("volume.tolerance_db must be > 0")
	}
	if c.Volume.MaxAttempts <= 0 {
		return errors.New("volume.max_attempts must be > 0")
	}
	if c.Volume.StepIntervalMS <= 0 {
		return errors.New("volume.step_interval_ms must be > 0")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// StateWS
	if c.StateWS.Port <= 0 || c.StateWS.Port > 65535 {
		return errors.New("state_ws.port must be between 1 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToConvergeConfig converts file config into the reducer's convergence config.
func (c *Config) ToConvergeConfig() ConvergeConfig {
	return ConvergeConfig{
		ToleranceDB: c.Volume.ToleranceDB,
		MaxAttempts: c.Volume.MaxAttempts,
	}
}

// StepInterval returns the tick cadence of the daemon loop.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.Volume.StepIntervalMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
