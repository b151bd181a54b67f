// Package config holds the daemon configuration.
// Defaults come from Default, STAIR_* environment variables override them,
// and command-line flags override both.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "STAIR"

// Config contains all daemon settings.
type Config struct {
	// Device scopes MQTT topics so events stay addressed to this device.
	Device string

	// MQTT
	Broker       string
	ClientID     string
	MQTTUsername string
	MQTTPassword string
	BufferSize   int // messages kept while disconnected

	// Sensors
	IMUTopic     string // empty derives activity/<device>/imu/linear
	BaroBus      string // I²C bus name; "off" disables the barometer
	BaroAddr     int
	BaroInterval time.Duration

	// Session switch
	SwitchPin int // BCM pin; negative disables the switch and auto-starts a session
	Poll      time.Duration

	Heartbeat time.Duration
	HTTPAddr  string

	// Optional Redis stream sink; empty address disables it.
	RedisAddr   string
	RedisStream string

	LogLevel  string
	LogFormat string

	RejectNonFinite    bool
	ActivityPermission bool
	EventLogSize       int
	Timezone           string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device:             "stair-sensor",
		Broker:             "tcp://127.0.0.1:1883",
		ClientID:           "stair-sensor",
		BufferSize:         100,
		BaroBus:            "",
		BaroAddr:           0x76,
		BaroInterval:       200 * time.Millisecond,
		SwitchPin:          -1,
		Poll:               100 * time.Millisecond,
		Heartbeat:          15 * time.Minute,
		HTTPAddr:           ":8080",
		RedisStream:        "stairs:events",
		LogLevel:           "info",
		LogFormat:          "json",
		ActivityPermission: true,
		EventLogSize:       200,
		Timezone:           "Local",
	}
}

// LoadFromEnv applies environment overrides named <prefix>_<FIELD>.
// Malformed numeric values are reported and leave the field unchanged.
func (c *Config) LoadFromEnv(prefix string) error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(prefix + "_" + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(prefix + "_" + name); v != "" {
			n, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = int(n)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(prefix + "_" + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(prefix + "_" + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", prefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("DEVICE", &c.Device)
	str("BROKER", &c.Broker)
	str("CLIENT_ID", &c.ClientID)
	str("MQTT_USERNAME", &c.MQTTUsername)
	str("MQTT_PASSWORD", &c.MQTTPassword)
	num("BUFFER_SIZE", &c.BufferSize)
	str("IMU_TOPIC", &c.IMUTopic)
	str("BARO_BUS", &c.BaroBus)
	num("BARO_ADDR", &c.BaroAddr)
	dur("BARO_INTERVAL", &c.BaroInterval)
	num("SWITCH_PIN", &c.SwitchPin)
	dur("POLL", &c.Poll)
	dur("HEARTBEAT", &c.Heartbeat)
	str("HTTP", &c.HTTPAddr)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_STREAM", &c.RedisStream)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	boolean("REJECT_NON_FINITE", &c.RejectNonFinite)
	boolean("ACTIVITY_PERMISSION", &c.ActivityPermission)
	num("EVENT_LOG_SIZE", &c.EventLogSize)
	str("TZ", &c.Timezone)

	return errors.Join(errs...)
}

// RegisterFlags binds every field to a flag, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Device, "device", c.Device, "Device name used in MQTT topics")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address")
	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "MQTT client ID")
	fs.StringVar(&c.MQTTUsername, "mqtt-username", c.MQTTUsername, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.IntVar(&c.BufferSize, "buffer", c.BufferSize, "Messages buffered while the broker is unreachable")
	fs.StringVar(&c.IMUTopic, "imu-topic", c.IMUTopic, "MQTT topic carrying linear acceleration (empty derives from --device)")
	fs.StringVar(&c.BaroBus, "baro-bus", c.BaroBus, `I2C bus for the BMP280 barometer ("" = first bus, "off" disables)`)
	fs.IntVar(&c.BaroAddr, "baro-addr", c.BaroAddr, "I2C address of the barometer")
	fs.DurationVar(&c.BaroInterval, "baro-interval", c.BaroInterval, "Barometer sampling interval")
	fs.IntVar(&c.SwitchPin, "switch-pin", c.SwitchPin, "BCM pin of the session switch (-1 auto-starts a session)")
	fs.DurationVar(&c.Poll, "poll", c.Poll, "Switch polling and status refresh interval")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for the event stream (empty to disable)")
	fs.StringVar(&c.RedisStream, "redis-stream", c.RedisStream, "Redis stream name")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: json or console")
	fs.BoolVar(&c.RejectNonFinite, "reject-non-finite", c.RejectNonFinite, "Drop NaN/Inf sensor samples")
	fs.BoolVar(&c.ActivityPermission, "activity-permission", c.ActivityPermission, "Allow activity-transition recognition")
	fs.IntVar(&c.EventLogSize, "event-log", c.EventLogSize, "Entries kept in the event list")
	fs.StringVar(&c.Timezone, "tz", c.Timezone, "Time zone for event list time stamps")
}

// Validate reports configuration errors that would prevent startup.
func (c Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device must not be empty"))
	}
	if c.Broker == "" {
		errs = append(errs, errors.New("broker must not be empty"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer must be positive, got %d", c.BufferSize))
	}
	if c.EventLogSize <= 0 {
		errs = append(errs, fmt.Errorf("event-log must be positive, got %d", c.EventLogSize))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.BaroBus != "off" && c.BaroInterval <= 0 {
		errs = append(errs, fmt.Errorf("baro-interval must be positive, got %v", c.BaroInterval))
	}
	if c.BaroAddr < 0 || c.BaroAddr > 0x7f {
		errs = append(errs, fmt.Errorf("baro-addr out of range: %#x", c.BaroAddr))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("tz: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to Local.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IMUTopicOrDefault returns the acceleration topic for this device.
func (c Config) IMUTopicOrDefault() string {
	if c.IMUTopic != "" {
		return c.IMUTopic
	}
	return "activity/" + c.Device + "/imu/linear"
}
