package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDistance(t *testing.T) {
	ev := Decode("#[ESL_ID:0a][DISTANCE:120]")
	require.IsType(t, Distance{}, ev)
	d := ev.(Distance)
	assert.Equal(t, "000A", d.ESLID)
	assert.Equal(t, 120, d.Distance)
}

func TestDecodeBattery(t *testing.T) {
	ev := Decode("#[ESL_ID:1F][BATTERY:87]")
	require.IsType(t, Battery{}, ev)
	b := ev.(Battery)
	assert.Equal(t, "001F", b.ESLID)
	assert.Equal(t, 87, b.Level)
}

func TestDecodeDisconnected(t *testing.T) {
	for _, line := range []string{
		"#[ESL_ID:0a][TAG DISCONNECTED]",
		"#[ESL_ID:0a][tag disconnected]",
		"#[ESL_ID:0a][ TAG DISCONNECTED ]",
	} {
		ev := Decode(line)
		require.IsType(t, Disconnected{}, ev, "line %q", line)
		assert.Equal(t, "000A", ev.(Disconnected).ESLID)
	}
}

func TestDecodeUnclassified(t *testing.T) {
	lines := []string{
		"hello world",                    // no sentinel
		"",                               // empty
		"#",                              // sentinel only
		"#[ESL_ID:0a]",                   // missing second field
		"#[ESL_ID:0a][VOLTAGE:3]",        // unknown key
		"#[ESL_ID:0a][DISTANCE:twelve]",  // non-integer payload
		"#[ESL_ID:0a][BATTERY:]",         // empty payload
		"#[ESL_ID:zz][DISTANCE:120]",     // unparseable ID
		"#[SENSOR:0a][DISTANCE:120]",     // wrong first key
		"#[ESL_ID][DISTANCE:120]",        // first field without value
		"#ESL_ID:0a DISTANCE:120",        // no brackets at all
		"#[ESL_ID:0a][TAG DISCONNECTED:1]", // disconnect with payload
	}
	for _, line := range lines {
		ev := Decode(line)
		require.IsType(t, Unclassified{}, ev, "line %q", line)
		assert.Equal(t, line, ev.(Unclassified).Raw, "raw text must be preserved verbatim")
	}
}

// Decode must classify every input without panicking, whatever bytes arrive
// on the wire.
func TestDecodeIsTotal(t *testing.T) {
	inputs := []string{
		"#[", "#]", "#[[", "#]]][[", "#[ESL_ID:0a][",
		"#[:::][:::]", "\x00\xff#[ESL_ID", "#[ESL_ID:0a][DISTANCE:120",
		"[ESL_ID:0a][DISTANCE:120]", "####", "#[][]",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Decode(in) }, "input %q", in)
		assert.NotNil(t, Decode(in))
	}
}

func TestDecodeIgnoresExtraFields(t *testing.T) {
	ev := Decode("#[ESL_ID:0a][DISTANCE:42][RSSI:-60]")
	require.IsType(t, Distance{}, ev)
	assert.Equal(t, 42, ev.(Distance).Distance)
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0a", "000A", true},
		{"0A", "000A", true},
		{" 0a ", "000A", true},
		{"ffff", "FFFF", true},
		{"0", "0000", true},
		{"12345", "12345", true}, // wider than four digits passes through
		{"zz", "", false},
		{"", "", false},
		{"-1", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalID(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestCanonicalIDIdempotent(t *testing.T) {
	for _, in := range []string{"0a", "1F", "ffff", "0001", "7"} {
		first, ok := CanonicalID(in)
		require.True(t, ok)
		second, ok := CanonicalID(first)
		require.True(t, ok)
		assert.Equal(t, first, second)
	}
}
