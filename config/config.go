package config

import (
	"fmt"
	"os"
	"time"

	"github.com/calvinmclean/dispenser/firmware/controller"
	"gopkg.in/yaml.v3"
)

// Config represents the host application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	API     APIConfig     `yaml:"api"`
	History HistoryConfig `yaml:"history"`
	TWChart TWChartConfig `yaml:"twchart"`
	Mock    MockConfig    `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// APIConfig contains the REST API configuration. An empty address disables the API.
type APIConfig struct {
	Address string `yaml:"address"`
}

// HistoryConfig contains the reading history database configuration. An empty path disables history.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// TWChartConfig contains the TWChart upload configuration. An empty address disables uploads.
type TWChartConfig struct {
	Address string `yaml:"address"`
	Probes  string `yaml:"probes"`
}

// MockConfig contains the simulated dispenser configuration.
type MockConfig struct {
	DispenseMode     string        `yaml:"dispense_mode"`     // "literal" or "metered"
	ReferenceWeight  float32       `yaml:"reference_weight"`  // Calibration reference weight (g)
	RawPerGram       float32       `yaml:"raw_per_gram"`      // Simulated load cell gain
	Temperature      float32       `yaml:"temperature"`       // Simulated liquid temperature (C)
	PulsesPerStep    int           `yaml:"pulses_per_step"`   // Flow sensor pulses per pump step
	PumpStep         time.Duration `yaml:"pump_step"`         // Time between simulated flow pulses bursts
	TimeScale        float64       `yaml:"time_scale"`        // Speeds up firmware delays
	CalibrationGuard bool          `yaml:"calibration_guard"` // Drop dispense commands while calibrating
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/rfcomm0",
			BaudRate: 9600,
		},
		API: APIConfig{
			Address: "",
		},
		History: HistoryConfig{
			Path: "",
		},
		TWChart: TWChartConfig{
			Address: "",
			Probes:  "1=Liquid",
		},
		Mock: MockConfig{
			DispenseMode:    controller.DispenseModeMetered.String(),
			ReferenceWeight: controller.DefaultConfig().ReferenceWeight,
			RawPerGram:      420,
			Temperature:     21.5,
			PulsesPerStep:   10,
			PumpStep:        50 * time.Millisecond,
			TimeScale:       1,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseDispenseMode parses the mock dispense mode.
func (c MockConfig) ParseDispenseMode() (controller.DispenseMode, error) {
	switch c.DispenseMode {
	case controller.DispenseModeLiteral.String():
		return controller.DispenseModeLiteral, nil
	case controller.DispenseModeMetered.String():
		return controller.DispenseModeMetered, nil
	default:
		return controller.DispenseModeLiteral, fmt.Errorf("invalid dispense mode: %q", c.DispenseMode)
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.TWChart.Probes == "" {
		c.TWChart.Probes = def.TWChart.Probes
	}

	if c.Mock.DispenseMode == "" {
		c.Mock.DispenseMode = def.Mock.DispenseMode
	}
	if c.Mock.ReferenceWeight == 0 {
		c.Mock.ReferenceWeight = def.Mock.ReferenceWeight
	}
	if c.Mock.RawPerGram == 0 {
		c.Mock.RawPerGram = def.Mock.RawPerGram
	}
	if c.Mock.PulsesPerStep == 0 {
		c.Mock.PulsesPerStep = def.Mock.PulsesPerStep
	}
	if c.Mock.PumpStep == 0 {
		c.Mock.PumpStep = def.Mock.PumpStep
	}
	if c.Mock.TimeScale == 0 {
		c.Mock.TimeScale = def.Mock.TimeScale
	}
}
