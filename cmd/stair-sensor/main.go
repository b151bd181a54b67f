// Command stair-sensor detects stair transitions from linear acceleration and
// barometric pressure and publishes them to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/activity"
	"github.com/sweeney/stair-sensor/internal/config"
	"github.com/sweeney/stair-sensor/internal/emit"
	"github.com/sweeney/stair-sensor/internal/eventlog"
	"github.com/sweeney/stair-sensor/internal/gpio"
	"github.com/sweeney/stair-sensor/internal/logging"
	"github.com/sweeney/stair-sensor/internal/logic"
	"github.com/sweeney/stair-sensor/internal/mqtt"
	"github.com/sweeney/stair-sensor/internal/sensor"
	"github.com/sweeney/stair-sensor/internal/status"
	"github.com/sweeney/stair-sensor/internal/web"
)

const serviceName = "stair-sensor"

// redisMaxLen caps the event stream.
const redisMaxLen = 10000

func main() {
	cfg := config.Default()
	if err := cfg.LoadFromEnv(config.EnvPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	printState := flag.Bool("print-state", false, "Print the session switch state and exit")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, *printState, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg config.Config, printState bool, logger *zap.Logger) error {
	// Initialize GPIO
	var switchReader gpio.Reader
	if cfg.SwitchPin >= 0 {
		r, err := gpio.NewRealReader(gpio.DefaultChip, cfg.SwitchPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		switchReader = r
	}

	// Print state mode
	if printState {
		if switchReader == nil {
			return errors.New("print-state needs --switch-pin")
		}
		on, err := switchReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("switch: %s\n", stateString(on))
		return nil
	}

	// Initialize MQTT
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		Username:   cfg.MQTTUsername,
		Password:   cfg.MQTTPassword,
		Device:     cfg.Device,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	events := eventlog.New(cfg.EventLogSize)

	sinks := []emit.Sink{{Name: "mqtt", Emitter: emit.Publisher(client)}}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		sinks = append(sinks, emit.Sink{Name: "redis", Emitter: emit.NewRedisStream(rdb, cfg.RedisStream, redisMaxLen)})
		logger.Info("redis event stream enabled", zap.String("addr", cfg.RedisAddr), zap.String("stream", cfg.RedisStream))
	}
	sinks = append(sinks, emit.Sink{Name: "eventlog", Emitter: events})

	redisStream := ""
	if cfg.RedisAddr != "" {
		redisStream = cfg.RedisStream
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Device:          cfg.Device,
		PollMs:          cfg.Poll.Milliseconds(),
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		Broker:          cfg.Broker,
		HTTPPort:        cfg.HTTPAddr,
		IMUTopic:        cfg.IMUTopicOrDefault(),
		BaroBus:         cfg.BaroBus,
		SwitchPin:       cfg.SwitchPin,
		RedisStream:     redisStream,
		RejectNonFinite: cfg.RejectNonFinite,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(client.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	} else {
		logger.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, events, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	var baro sensor.Source
	if cfg.BaroBus == "off" {
		baro = sensor.Disabled("barometer")
	} else {
		baro = sensor.NewBarometerSource(cfg.BaroBus, uint16(cfg.BaroAddr), cfg.BaroInterval, logger)
	}

	d := &daemon{
		accel:        sensor.NewIMUSource(client, cfg.IMUTopicOrDefault(), logger),
		pressure:     baro,
		switchReader: switchReader,
		publisher:    client,
		mqttStatus:   client,
		emitter:      emit.NewFanout(logger, sinks...),
		events:       events,
		tracker:      tracker,
		recognizer:   activity.NewMQTTRecognizer(client, mqtt.TransitionTopic(cfg.Device), cfg.ActivityPermission, logger),
		logger:       logger,
		logicCfg:     logic.Config{RejectNonFinite: cfg.RejectNonFinite},
		heartbeat:    cfg.Heartbeat,
		loc:          cfg.Location(),
		newID:        uuid.NewString,
	}

	logger.Info("started",
		zap.String("device", cfg.Device),
		zap.String("broker", cfg.Broker),
		zap.String("imu_topic", cfg.IMUTopicOrDefault()),
		zap.String("baro_bus", cfg.BaroBus),
		zap.Int("switch_pin", cfg.SwitchPin),
		zap.Duration("heartbeat", cfg.Heartbeat))

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.runLoop(time.Now, ticker.C, sigCh)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
