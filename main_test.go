package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixtureLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.txt")
	content := "#[ESL_ID:0001][DISTANCE:120]\r\n\n[BATTERY:87]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := loadFixtureLines(path)
	if err != nil {
		t.Fatalf("loadFixtureLines failed: %v", err)
	}

	want := []string{"#[ESL_ID:0001][DISTANCE:120]", "[BATTERY:87]"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLoadFixtureLinesMissingFile(t *testing.T) {
	if _, err := loadFixtureLines(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing fixtures file")
	}
}
