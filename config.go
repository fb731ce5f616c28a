package hive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds global defaults for newly-created Worlds, exposed as a
// package-level singleton with setter methods.
var Config config

type config struct {
	DefaultTracking TrackingMode `json:"-"`
	LogLevel        string       `json:"logLevel"`
	MetricsEnabled  bool         `json:"metricsEnabled"`
}

// SetDefaultTracking configures the tracking mode newly-created storages
// start with when no explicit Track call is made.
func (c *config) SetDefaultTracking(mode TrackingMode) {
	c.DefaultTracking = mode
}

// configFile mirrors config's JSON-visible fields for HuJSON decoding.
type configFile struct {
	LogLevel       string `json:"logLevel"`
	MetricsEnabled bool   `json:"metricsEnabled"`
}

// LoadFile reads a HuJSON (JSON-with-comments-and-trailing-commas)
// document and merges it into Config. HuJSON's tolerance matters here
// because this file sits next to a workload's YAML definition and gets
// hand-edited by operators who want to leave themselves notes.
func LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("hive: reading config %s: %w", path, err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("hive: parsing config %s: %w", path, err)
	}
	cf := configFile{LogLevel: Config.LogLevel, MetricsEnabled: Config.MetricsEnabled}
	if err := json.Unmarshal(std, &cf); err != nil {
		return fmt.Errorf("hive: decoding config %s: %w", path, err)
	}
	Config.LogLevel = cf.LogLevel
	Config.MetricsEnabled = cf.MetricsEnabled
	return nil
}
