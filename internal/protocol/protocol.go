// Package protocol decodes the bracket-delimited ASCII line protocol spoken
// by the ESL rail controller. Lines look like:
//
//	#[ESL_ID:0a][DISTANCE:120]
//	#[ESL_ID:0a][BATTERY:87]
//	#[ESL_ID:0a][TAG DISCONNECTED]
//
// Decoding is total: anything that does not match the grammar degrades to an
// Unclassified event carrying the raw text, never an error.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Event is the closed set of decoded line variants. Exactly one concrete
// type is produced per input line; consumers switch over the concrete types
// so that a new variant forces a review of every switch.
type Event interface {
	event()
}

// Distance is a distance reading (millimetres) from a rail's sensor.
type Distance struct {
	ESLID    string
	Distance int
}

// Battery is a battery level report from a rail's tag.
type Battery struct {
	ESLID string
	Level int
}

// Disconnected reports that a rail's tag dropped off the radio link.
type Disconnected struct {
	ESLID string
}

// Unclassified carries any line that does not match the protocol grammar.
// It never carries an ESL ID, even when the raw text contained one: typed
// events are the only carriers of structured fields.
type Unclassified struct {
	Raw string
}

func (Distance) event()     {}
func (Battery) event()      {}
func (Disconnected) event() {}
func (Unclassified) event() {}

// CanonicalID normalises a hex ESL identifier to its 4-digit uppercase form.
// It reports false when the input is not parseable as hex. The output is a
// fixed point: CanonicalID(CanonicalID(x)) == CanonicalID(x).
func CanonicalID(s string) (string, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04X", v), true
}

// Decode classifies one raw line from the serial link.
func Decode(line string) Event {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return Unclassified{Raw: line}
	}

	fields := bracketFields(trimmed[1:])
	if len(fields) < 2 {
		return Unclassified{Raw: line}
	}

	key, value, ok := splitField(fields[0])
	if !ok || !strings.EqualFold(key, "ESL_ID") {
		return Unclassified{Raw: line}
	}
	id, ok := CanonicalID(value)
	if !ok {
		// Unparseable IDs drop the ID entirely rather than passing the
		// raw value through.
		return Unclassified{Raw: line}
	}

	second := fields[1]
	if strings.EqualFold(strings.TrimSpace(second), "TAG DISCONNECTED") {
		return Disconnected{ESLID: id}
	}

	key, value, ok = splitField(second)
	if !ok {
		return Unclassified{Raw: line}
	}
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "DISTANCE":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Unclassified{Raw: line}
		}
		return Distance{ESLID: id, Distance: n}
	case "BATTERY":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Unclassified{Raw: line}
		}
		return Battery{ESLID: id, Level: n}
	}
	return Unclassified{Raw: line}
}

// bracketFields extracts the substrings enclosed in [ ] pairs. The scan is
// non-nested: each field runs from an opening bracket to the next closing
// bracket, whatever characters sit in between.
func bracketFields(s string) []string {
	var fields []string
	for {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			break
		}
		rest := s[open+1:]
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		fields = append(fields, rest[:end])
		s = rest[end+1:]
	}
	return fields
}

// splitField separates a KEY:VALUE field. Only the first colon-separated
// segment after the key is the value; later segments are ignored.
func splitField(field string) (key, value string, ok bool) {
	parts := strings.Split(field, ":")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
