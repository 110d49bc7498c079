package machine

import (
	"encoding/json"
	"os"
)

// ProcessConfig names a single assembly program to load as a process.
type ProcessConfig struct {
	Path string `json:"path"`
}

// DeviceConfig is an opaque device descriptor; the core only forwards
// it to whichever external driver constructs devices from it.
type DeviceConfig struct {
	Kind string                 `json:"kind"`
	Opts map[string]interface{} `json:"opts,omitempty"`
}

// Config is the JSON-driven process/device configurator described at
// the core's boundary (§6.3). It is consumed only by the external
// driver (cmd/x86sim); the core never reads it directly.
type Config struct {
	UIEnabled bool            `json:"ui_enabled"`
	Processes []ProcessConfig `json:"processes"`
	Devices   []DeviceConfig  `json:"devices"`
}

// LoadConfig reads and parses a JSON config file. A missing or
// malformed file is a peripheral I/O failure per the error taxonomy:
// the caller is expected to log it and continue with zero processes.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
