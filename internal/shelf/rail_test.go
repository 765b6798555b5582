package shelf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRail(t *testing.T) *Rail {
	t.Helper()
	rail, err := NewRail("000A", "C0:FF:EE:00:00:01", Calibration{
		EmptyDistance: 500,
		FullDistance:  100,
		ItemLength:    40,
	}, "")
	require.NoError(t, err)
	return rail
}

func TestNewRailDerivedValues(t *testing.T) {
	rail := testRail(t)
	assert.Equal(t, 10, rail.MaxItems())
	assert.Equal(t, 0, rail.ItemCount())
	assert.False(t, rail.Connected())
}

func TestNewRailRejectsBadCalibration(t *testing.T) {
	_, err := NewRail("000A", "", Calibration{EmptyDistance: 500, FullDistance: 100, ItemLength: 0}, "")
	assert.Error(t, err)

	_, err = NewRail("000A", "", Calibration{EmptyDistance: 100, FullDistance: 500, ItemLength: 40}, "")
	assert.Error(t, err)
}

func TestApplyDistance(t *testing.T) {
	rail := testRail(t)

	// raw = (500 - 120 + 10) / 40 = 9
	got := rail.ApplyDistance(120)
	assert.Equal(t, 9, got)
	assert.Equal(t, 9, rail.ItemCount())
	assert.True(t, rail.Connected())
}

func TestApplyDistanceClamps(t *testing.T) {
	rail := testRail(t)

	// Far beyond the empty distance: clamp to zero.
	assert.Equal(t, 0, rail.ApplyDistance(10_000))

	// Closer than the full distance: clamp to capacity.
	assert.Equal(t, 10, rail.ApplyDistance(0))
}

// Occupancy must never increase as the sensor reads a larger distance.
func TestApplyDistanceMonotonic(t *testing.T) {
	rail := testRail(t)
	prev := rail.MaxItems()
	for d := 0; d <= 700; d += 5 {
		n := rail.ApplyDistance(d)
		assert.LessOrEqual(t, n, prev, "distance %d", d)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, rail.MaxItems())
		prev = n
	}
}

func TestApplyBattery(t *testing.T) {
	rail := testRail(t)
	rail.ApplyDistance(120)
	rail.ApplyDisconnected()

	rail.ApplyBattery()
	assert.True(t, rail.Connected())
	assert.Equal(t, 9, rail.ItemCount(), "battery report must not touch the count")
}

func TestApplyDisconnectedFreezesCount(t *testing.T) {
	rail := testRail(t)
	rail.ApplyDistance(120)

	rail.ApplyDisconnected()
	assert.False(t, rail.Connected())
	assert.Equal(t, 9, rail.ItemCount())
}

func TestCommands(t *testing.T) {
	rail := testRail(t)
	assert.Equal(t, "esl_c force_measure 000A", rail.MeasureCommand())
	assert.Equal(t, "esl_c acl connect_addr 1 C0:FF:EE:00:00:01", rail.ConnectCommand())
}
