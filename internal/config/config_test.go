package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelfview.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `{
	"serial": {
		"port_path": "/dev/ttyACM0",
		"baud_rate": 115200,
		"flow_control": "RTS/CTS"
	},
	"shelf": {
		"ids": ["0001", "0a"],
		"mac_addresses": ["AC:23:3F:AA:00:01", "AC:23:3F:AA:00:02"],
		"rail_empty_distance": [500, 480],
		"rail_full_distance": [100, 90],
		"item_length": [40, 35],
		"image_path": ["cola.png", "water.png"]
	}
}`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Serial.PortPath != "/dev/ttyACM0" {
		t.Errorf("port path = %q", cfg.Serial.PortPath)
	}

	opts, err := cfg.PortOptions()
	if err != nil {
		t.Fatalf("PortOptions failed: %v", err)
	}
	if opts.BaudRate != 115200 {
		t.Errorf("baud = %d", opts.BaudRate)
	}
	if opts.DataBits != 8 {
		t.Errorf("data bits default not applied: %d", opts.DataBits)
	}
	if opts.FlowControl != "RTSCTS" {
		t.Errorf("flow control = %q, want RTSCTS", opts.FlowControl)
	}

	sc := cfg.ShelfConfig()
	if len(sc.IDs) != 2 || sc.IDs[1] != "0a" {
		t.Errorf("shelf IDs = %v", sc.IDs)
	}
	if sc.ItemLengths[1] != 35 {
		t.Errorf("item lengths = %v", sc.ItemLengths)
	}
}

func TestLoadDefaultsOnlySerial(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"serial": {"port_path": "/dev/ttyACM0"},
		"shelf": {
			"ids": ["0001"],
			"mac_addresses": ["AC:23:3F:AA:00:01"],
			"rail_empty_distance": [500],
			"rail_full_distance": [100],
			"item_length": [40]
		}
	}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opts, err := cfg.PortOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.BaudRate != 115200 || opts.Parity != "N" || opts.StopBits != 1 {
		t.Errorf("serial defaults not applied: %+v", opts)
	}
}

func TestLoadRejectsBadExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelfview.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-json extension")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"serial": `)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadRejectsEmptyShelf(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"serial": {"port_path": "/dev/ttyACM0"}, "shelf": {}}`)); err == nil {
		t.Error("expected error for empty shelf section")
	}
}

func TestLoadRejectsBadSerialOptions(t *testing.T) {
	if _, err := Load(writeConfig(t, `{
		"serial": {"port_path": "/dev/ttyACM0", "parity": "Q"},
		"shelf": {
			"ids": ["0001"],
			"mac_addresses": ["AC:23:3F:AA:00:01"],
			"rail_empty_distance": [500],
			"rail_full_distance": [100],
			"item_length": [40]
		}
	}`)); err == nil {
		t.Error("expected error for invalid parity")
	}
}
