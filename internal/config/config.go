// Package config loads the daemon configuration file. Everything has a
// working default for the production board; the YAML file only needs the
// values that differ.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/fieldnode/fndh-power/internal/health"
	"github.com/fieldnode/fndh-power/internal/power"
)

// Config is the daemon configuration.
type Config struct {
	// Listen is the RPC listen address. An empty host means the interface
	// facing ProbeAddr is discovered at startup.
	Listen string `yaml:"listen"`

	// ProbeAddr is the remote address used to discover the local
	// interface IP when Listen has no host part.
	ProbeAddr string `yaml:"probe_addr"`

	// Broker is the MQTT broker URL. Empty disables telemetry.
	Broker string `yaml:"broker"`

	// LogFile is the rotating log file path. Empty logs to stderr only.
	LogFile string `yaml:"logfile"`

	// Bus device names.
	SPIDev string `yaml:"spi_dev"`
	I2CBus string `yaml:"i2c_bus"`

	// SPIHz is the SPI clock rate. The ADC front end is slow.
	SPIHz int64 `yaml:"spi_hz"`

	// Calibration scales raw ADC counts to volts and milliamps.
	Calibration power.Calibration `yaml:"calibration"`

	// Thresholds are the environment alarm limits used by the health check.
	Thresholds health.Thresholds `yaml:"thresholds"`

	// Delays, in milliseconds.
	SettleMs     int `yaml:"settle_ms"`     // chip select to SPI frame
	SwitchMs     int `yaml:"switch_ms"`     // between outputs in bulk switching
	ConversionMs int `yaml:"conversion_ms"` // environment sensor conversion
	MonitorSec   int `yaml:"monitor_sec"`   // monitor loop period
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		Listen:       ":19999",
		ProbeAddr:    "10.128.0.1:1",
		SPIDev:       "SPI0.0",
		I2CBus:       "1",
		SPIHz:        10000,
		Calibration:  power.DefaultCalibration,
		Thresholds:   health.DefaultThresholds,
		SettleMs:     10,
		SwitchMs:     50,
		ConversionMs: 50,
		MonitorSec:   30,
	}
}

// Load reads the YAML file at path over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Calibration.FullScaleVolts <= 0 {
		return fmt.Errorf("calibration full_scale_volts must be positive, got %v", c.Calibration.FullScaleVolts)
	}
	if c.Calibration.CountsPerMilliamp <= 0 {
		return fmt.Errorf("calibration counts_per_milliamp must be positive, got %v", c.Calibration.CountsPerMilliamp)
	}
	if c.SettleMs < 0 || c.SwitchMs < 0 || c.ConversionMs < 0 || c.MonitorSec < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}
