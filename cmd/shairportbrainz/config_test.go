package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}
	if cfg.Volume.ToleranceDB != defaultToleranceDB {
		t.Errorf("expected default tolerance %v, got %v", defaultToleranceDB, cfg.Volume.ToleranceDB)
	}
	if cfg.StepInterval() != time.Duration(defaultStepIntervalMS)*time.Millisecond {
		t.Errorf("unexpected step interval %v", cfg.StepInterval())
	}
}

func TestLoadConfigFile_MergesOverDefaults(t *testing.T) {
	path := writeTestConfig(t, `
mqtt:
  broker_url: tcp://broker.home.arpa:1883
  topic: shairport/den
logging:
  level: debug
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.MQTT.BrokerURL != "tcp://broker.home.arpa:1883" {
		t.Errorf("unexpected broker url %q", cfg.MQTT.BrokerURL)
	}
	if cfg.MQTT.Topic != "shairport/den" {
		t.Errorf("unexpected topic %q", cfg.MQTT.Topic)
	}
	// File did not set these: defaults must survive.
	if cfg.Volume.MaxAttempts != defaultMaxAttempts {
		t.Errorf("expected default max_attempts, got %d", cfg.Volume.MaxAttempts)
	}
	if cfg.IPC.SocketPath != "/tmp/shairportbrainz.sock" {
		t.Errorf("expected default socket path, got %q", cfg.IPC.SocketPath)
	}
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeTestConfig(t, `
mqtt:
  broker_url: tcp://127.0.0.1:1883
  brokre_url_typo: oops
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeTestConfig(t, `
mqtt:
  broker_url: tcp://127.0.0.1:1883
---
mqtt:
  broker_url: tcp://other:1883
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected trailing document to be rejected")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	topic := "shairport/den"
	tolerance := 1.0
	overrides := FlagOverrides{
		MQTTTopic:      &topic,
		VolToleranceDB: &tolerance,
	}
	overrides.Apply(&cfg)

	if cfg.MQTT.Topic != "shairport/den" {
		t.Errorf("topic override not applied: %q", cfg.MQTT.Topic)
	}
	if cfg.Volume.ToleranceDB != 1.0 {
		t.Errorf("tolerance override not applied: %v", cfg.Volume.ToleranceDB)
	}
	// Untouched fields keep their values.
	if cfg.MQTT.BrokerURL != "tcp://127.0.0.1:1883" {
		t.Errorf("broker url unexpectedly changed: %q", cfg.MQTT.BrokerURL)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker url", func(c *Config) { c.MQTT.BrokerURL = "" }},
		{"empty client id", func(c *Config) { c.MQTT.ClientID = "" }},
		{"empty topic", func(c *Config) { c.MQTT.Topic = "" }},
		{"leading slash topic", func(c *Config) { c.MQTT.Topic = "/shairport" }},
		{"wildcard topic", func(c *Config) { c.MQTT.Topic = "shairport/#" }},
		{"zero tolerance", func(c *Config) { c.Volume.ToleranceDB = 0 }},
		{"negative tolerance", func(c *Config) { c.Volume.ToleranceDB = -0.5 }},
		{"zero attempts", func(c *Config) { c.Volume.MaxAttempts = 0 }},
		{"zero step interval", func(c *Config) { c.Volume.StepIntervalMS = 0 }},
		{"empty socket path", func(c *Config) { c.IPC.SocketPath = "" }},
		{"bad ws port", func(c *Config) { c.StateWS.Port = 70000 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestConfig_ToConvergeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cc := cfg.ToConvergeConfig()
	if cc.ToleranceDB != cfg.Volume.ToleranceDB || cc.MaxAttempts != cfg.Volume.MaxAttempts {
		t.Errorf("converge config mismatch: %+v", cc)
	}
}
