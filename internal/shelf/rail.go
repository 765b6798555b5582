// Package shelf models the physical rail rig: per-rail calibration and live
// occupancy state, plus the registry that routes decoded events to rails.
package shelf

import "fmt"

// Calibration describes the geometry of one rail. Distances are in the same
// unit the sensor reports (millimetres); ItemLength is the depth one item
// occupies on the rail.
type Calibration struct {
	EmptyDistance int `json:"rail_empty_distance"`
	FullDistance  int `json:"rail_full_distance"`
	ItemLength    int `json:"item_length"`
}

// Rail tracks one shelf slot. The identity is the canonical ESL ID; the MAC
// address is only used to build reconnect commands. State mutates exclusively
// through the Apply methods, which the registry calls from its dispatch path.
type Rail struct {
	id        string
	mac       string
	imagePath string

	cal       Calibration
	tolerance int
	maxItems  int

	itemCount int
	connected bool
}

// NewRail builds a rail from its calibration. The ID must already be
// canonical. Calibrations that cannot yield a sane item count are rejected.
func NewRail(id, mac string, cal Calibration, imagePath string) (*Rail, error) {
	if cal.ItemLength <= 0 {
		return nil, fmt.Errorf("rail %s: item length must be positive, got %d", id, cal.ItemLength)
	}
	if cal.EmptyDistance < cal.FullDistance {
		return nil, fmt.Errorf("rail %s: empty distance %d is closer than full distance %d",
			id, cal.EmptyDistance, cal.FullDistance)
	}
	return &Rail{
		id:        id,
		mac:       mac,
		imagePath: imagePath,
		cal:       cal,
		tolerance: cal.ItemLength / 4,
		maxItems:  (cal.EmptyDistance - cal.FullDistance) / cal.ItemLength,
	}, nil
}

// ID returns the canonical ESL ID.
func (r *Rail) ID() string { return r.id }

// MAC returns the tag's radio address.
func (r *Rail) MAC() string { return r.mac }

// ImagePath returns the product image reference for presentation layers.
func (r *Rail) ImagePath() string { return r.imagePath }

// MaxItems returns the item capacity derived from the calibration.
func (r *Rail) MaxItems() int { return r.maxItems }

// ItemCount returns the last computed occupancy.
func (r *Rail) ItemCount() int { return r.itemCount }

// Connected reports whether the tag was live at the last telemetry event.
func (r *Rail) Connected() bool { return r.connected }

// ApplyDistance converts a distance reading into an item count, clamps it to
// [0, MaxItems] and stores it. A distance reading always implies the tag is
// alive, so the rail is marked connected. Returns the new count.
func (r *Rail) ApplyDistance(distance int) int {
	n := (r.cal.EmptyDistance - distance + r.tolerance) / r.cal.ItemLength
	if n < 0 {
		n = 0
	}
	if n > r.maxItems {
		n = r.maxItems
	}
	r.itemCount = n
	r.connected = true
	return n
}

// ApplyBattery marks the rail connected. The battery level itself is only
// surfaced to presentation layers; it does not affect occupancy.
func (r *Rail) ApplyBattery() {
	r.connected = true
}

// ApplyDisconnected marks the rail disconnected. The item count is frozen at
// its last known value rather than reset.
func (r *Rail) ApplyDisconnected() {
	r.connected = false
}

// MeasureCommand returns the controller command that forces a distance
// measurement on this rail.
func (r *Rail) MeasureCommand() string {
	return fmt.Sprintf("esl_c force_measure %s", r.id)
}

// ConnectCommand returns the controller command that re-establishes the ACL
// link to this rail's tag.
func (r *Rail) ConnectCommand() string {
	return fmt.Sprintf("esl_c acl connect_addr 1 %s", r.mac)
}
