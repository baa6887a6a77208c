package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("ShairportBrainz v%s\n", version)
	fmt.Println("MQTT media-player daemon for shairport-sync receivers")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  shairportbrainz [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that mirrors a shairport-sync receiver's MQTT topic tree into")
	fmt.Println("  a media-player state (playback status, track metadata, volume) and")
	fmt.Println("  drives the receiver through its remote command topic. Set-volume")
	fmt.Println("  requests are converged with relative volumeup/volumedown steps.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -mqtt-broker-url string")
	fmt.Println("        MQTT broker URL (default \"tcp://127.0.0.1:1883\")")
	fmt.Println()
	fmt.Println("  -mqtt-client-id string")
	fmt.Println("        MQTT client identifier (default \"shairportbrainz\")")
	fmt.Println()
	fmt.Println("  -mqtt-username string")
	fmt.Println("        MQTT username (optional)")
	fmt.Println()
	fmt.Println("  -mqtt-password string")
	fmt.Println("        MQTT password (optional)")
	fmt.Println()
	fmt.Println("  -mqtt-topic string")
	fmt.Println("        Receiver base topic as configured in shairport-sync (default \"shairport\")")
	fmt.Println()
	fmt.Println("  -vol-tolerance-db float")
	fmt.Printf("        Set-volume convergence tolerance in dB (default %.1f)\n", defaultToleranceDB)
	fmt.Println()
	fmt.Println("  -vol-max-attempts int")
	fmt.Printf("        Maximum volume step attempts per set-volume request (default %d)\n", defaultMaxAttempts)
	fmt.Println()
	fmt.Println("  -vol-step-interval-ms int")
	fmt.Printf("        Delay between volume step attempts in ms (default %d)\n", defaultStepIntervalMS)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/shairportbrainz.sock\")")
	fmt.Println()
	fmt.Println("  -state-ws-port int")
	fmt.Println("        State WebSocket listener port (default 3001)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start daemon with default settings")
	fmt.Println("  shairportbrainz")
	fmt.Println()
	fmt.Println("  # Use a config file with an ad-hoc broker override")
	fmt.Println("  shairportbrainz -config ~/.config/shairportbrainz.yaml -mqtt-broker-url tcp://broker.home.arpa:1883")
	fmt.Println()
	fmt.Println("  # Receiver publishing under a custom topic")
	fmt.Println("  shairportbrainz -mqtt-topic shairport/living-room")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - shairport-sync must be built with MQTT support and configured to")
	fmt.Println("    publish parsed metadata plus remote control (mqtt.publish_parsed,")
	fmt.Println("    mqtt.enable_remote in shairport-sync.conf)")
	fmt.Println("  - Volume reports arrive on <topic>/ssnc/pvol (or legacy <topic>/volume)")
	fmt.Println("  - Set-volume uses relative volumeup/volumedown steps; a request may")
	fmt.Println("    finish without reaching the target (logged as a warning)")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		mqttBrokerURL = flag.String("mqtt-broker-url", "", "MQTT broker URL")
		mqttClientID  = flag.String("mqtt-client-id", "", "MQTT client identifier")
		mqttUsername  = flag.String("mqtt-username", "", "MQTT username")
		mqttPassword  = flag.String("mqtt-password", "", "MQTT password")
		mqttTopic     = flag.String("mqtt-topic", "", "Receiver base topic")

		volToleranceDB    = flag.Float64("vol-tolerance-db", 0, "Set-volume convergence tolerance in dB")
		volMaxAttempts    = flag.Int("vol-max-attempts", 0, "Maximum volume step attempts")
		volStepIntervalMS = flag.Int("vol-step-interval-ms", 0, "Delay between volume step attempts in ms")

		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		stateWSPort   = flag.Int("state-ws-port", 0, "State WebSocket listener port")

		logLevelStr = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Build config: defaults, then file, then flag overrides. Only flags the
	// user actually set are applied.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mqtt-broker-url":
			overrides.MQTTBrokerURL = mqttBrokerURL
		case "mqtt-client-id":
			overrides.MQTTClientID = mqttClientID
		case "mqtt-username":
			overrides.MQTTUsername = mqttUsername
		case "mqtt-password":
			overrides.MQTTPassword = mqttPassword
		case "mqtt-topic":
			overrides.MQTTTopic = mqttTopic
		case "vol-tolerance-db":
			overrides.VolToleranceDB = volToleranceDB
		case "vol-max-attempts":
			overrides.VolMaxAttempts = volMaxAttempts
		case "vol-step-interval-ms":
			overrides.VolStepIntervalMS = volStepIntervalMS
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "state-ws-port":
			overrides.StateWSPort = stateWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stderr, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Central event bus feeding the daemon loop.
	events := make(chan Event, defaultEventBuf)

	// Connect to broker. Availability is announced (and willed) on a topic
	// beside the receiver's tree so dashboards can track the daemon itself.
	bus, err := NewMQTTBus(MQTTBusConfig{
		BrokerURL:         cfg.MQTT.BrokerURL,
		ClientID:          cfg.MQTT.ClientID,
		Username:          cfg.MQTT.Username,
		Password:          cfg.MQTT.Password,
		AvailabilityTopic: cfg.MQTT.Topic + "/" + topicAvailability,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to MQTT broker", "broker", cfg.MQTT.BrokerURL, "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	router := NewTopicRouter(bus, cfg.MQTT.Topic, events, logger)
	if err := router.Subscribe(); err != nil {
		logger.Error("failed to subscribe to receiver topics", "error", err)
		os.Exit(1)
	}
	defer router.Unsubscribe()

	// State WebSocket server. Broadcasts flow: reducer -> daemon loop ->
	// broadcasts channel -> RunBroadcaster -> hub -> clients.
	wsServer := NewServer(logger, events, ServerConfig{})
	broadcasts := make(chan StateBroadcast, 128)

	mux := http.NewServeMux()
	wsServer.Register(mux, "/ws/state")
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StateWS.Port),
		Handler: mux,
	}

	logger.Info("listening",
		"mqtt_broker", cfg.MQTT.BrokerURL,
		"topic", cfg.MQTT.Topic,
		"ipc", cfg.IPC.SocketPath,
		"state_ws_port", cfg.StateWS.Port)
	logger.Debug("configuration",
		"vol_tolerance_db", cfg.Volume.ToleranceDB,
		"vol_max_attempts", cfg.Volume.MaxAttempts,
		"vol_step_interval_ms", cfg.Volume.StepIntervalMS,
		"log_level", cfg.Logging.Level,
		"version", version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsServer.Hub().Run(gctx)
		return nil
	})

	g.Go(func() error {
		RunBroadcaster(gctx, wsServer.Hub(), broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})

	g.Go(func() error {
		ln, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			return fmt.Errorf("state ws listen: %w", err)
		}
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("state ws serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		runDaemon(gctx, events, bus, router.RemoteTopic(), cfg.ToConvergeConfig(),
			cfg.StepInterval(), &PlayerState{}, broadcasts, logger)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
