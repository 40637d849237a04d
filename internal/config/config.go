// Package config loads the kiosk device configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	MachineID string         `mapstructure:"machine_id"`
	Devices   []DeviceConfig `mapstructure:"devices"`
	Reader    ReaderConfig   `mapstructure:"reader"`
	Presence  PresenceConfig `mapstructure:"presence"`
	Printer   PrinterConfig  `mapstructure:"printer"`
	Gateway   GatewayConfig  `mapstructure:"gateway"`
	Logger    LoggerConfig   `mapstructure:"logger"`
	HealthLog string         `mapstructure:"health_log"`
	Autostart bool           `mapstructure:"autostart"`
}

// DeviceConfig is the line setup for one logical device. Name is the role
// the kiosk gives it (QR, RFID, HUMAN_SENSOR, PRINTER).
type DeviceConfig struct {
	Name     string `mapstructure:"name"`
	Port     string `mapstructure:"port"`
	Baud     int    `mapstructure:"baud"`
	StopBits int    `mapstructure:"stopbits"`
	DataBits int    `mapstructure:"databit"`
	Parity   string `mapstructure:"parity"`
}

// Well-known device names.
const (
	DeviceHumanSensor = "HUMAN_SENSOR"
	DevicePrinter     = "PRINTER"
)

type ReaderConfig struct {
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type PresenceConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

type PrinterConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DPI          int           `mapstructure:"dpi"`
	WidthMM      int           `mapstructure:"width_mm"`
}

// GatewayConfig holds the websocket listener settings. An empty Token
// disables authentication.
type GatewayConfig struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Device returns the first device configured under name, compared
// case-insensitively.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("reader.read_timeout", 100*time.Millisecond)
	v.SetDefault("presence.poll_interval", 50*time.Millisecond)
	v.SetDefault("presence.read_timeout", 100*time.Millisecond)
	v.SetDefault("printer.write_timeout", 5*time.Second)
	v.SetDefault("printer.dpi", 180)
	v.SetDefault("printer.width_mm", 80)
	v.SetDefault("gateway.addr", "127.0.0.1:8765")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("health_log", "@every 1m")
	v.SetDefault("autostart", true)
}

// New returns a viper instance with defaults, the search path and the
// KIOSK_SERIAL_ environment prefix configured. file overrides the search.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("kiosk-serial")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/kiosk-serial")
		v.AddConfigPath("/etc/kiosk-serial")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("KIOSK_SERIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, and decodes v into a Config. A missing
// file is not an error when no explicit file was requested.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is New followed by Load.
func LoadFile(file string) (*Config, error) {
	return Load(New(file))
}
