// Package config loads the shelfview configuration file: the serial link
// parameters and the parallel per-rail calibration sequences.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shelf-data/shelfview/internal/serialmux"
	"github.com/shelf-data/shelfview/internal/shelf"
)

// DefaultConfigPath is the path to the canonical configuration file.
const DefaultConfigPath = "config/shelfview.json"

// SerialSection configures the serial link. Omitted fields fall back to the
// link defaults when normalized.
type SerialSection struct {
	PortPath    string  `json:"port_path"`
	BaudRate    int     `json:"baud_rate,omitempty"`
	DataBits    int     `json:"data_bits,omitempty"`
	StopBits    float64 `json:"stop_bits,omitempty"`
	Parity      string  `json:"parity,omitempty"`
	FlowControl string  `json:"flow_control,omitempty"`
}

// ShelfSection holds the per-rail configuration as parallel sequences: index
// i of every array describes the same rail. ImagePaths is presentation-only
// and may be shorter than the others.
type ShelfSection struct {
	IDs            []string `json:"ids"`
	MACAddresses   []string `json:"mac_addresses"`
	EmptyDistances []int    `json:"rail_empty_distance"`
	FullDistances  []int    `json:"rail_full_distance"`
	ItemLengths    []int    `json:"item_length"`
	ImagePaths     []string `json:"image_path,omitempty"`

	AllowPartial bool `json:"allow_partial,omitempty"`
}

// Config is the root of the configuration file.
type Config struct {
	Serial SerialSection `json:"serial"`
	Shelf  ShelfSection  `json:"shelf"`
}

// Load reads and validates a configuration file. The file must have a .json
// extension and stay under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors. Serial port
// options are only normalized, not required: the serial section may be left
// empty when the link is configured from the settings store instead.
func (c *Config) Validate() error {
	if _, err := c.PortOptions(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if len(c.Shelf.IDs) == 0 {
		return fmt.Errorf("shelf: ids must not be empty")
	}
	return nil
}

// PortOptions converts the serial section into normalized port options.
func (c *Config) PortOptions() (serialmux.PortOptions, error) {
	opts := serialmux.PortOptions{
		BaudRate:    c.Serial.BaudRate,
		DataBits:    c.Serial.DataBits,
		StopBits:    c.Serial.StopBits,
		Parity:      c.Serial.Parity,
		FlowControl: c.Serial.FlowControl,
	}
	return opts.Normalize()
}

// ShelfConfig converts the shelf section into the registry's configuration.
func (c *Config) ShelfConfig() shelf.Config {
	return shelf.Config{
		IDs:            c.Shelf.IDs,
		MACAddresses:   c.Shelf.MACAddresses,
		EmptyDistances: c.Shelf.EmptyDistances,
		FullDistances:  c.Shelf.FullDistances,
		ItemLengths:    c.Shelf.ItemLengths,
		ImagePaths:     c.Shelf.ImagePaths,
		AllowPartial:   c.Shelf.AllowPartial,
	}
}
