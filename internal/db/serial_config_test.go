package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp(filepath.Join("..", "..", "migrations")))
	return db
}

func TestSerialConfigCRUD(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateSerialConfig(&SerialConfig{
		Name:        "bench rig",
		PortPath:    "/dev/ttyUSB0",
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "N",
		FlowControl: "RTSCTS",
		Enabled:     true,
		Description: "shelf rig on the bench",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := db.GetSerialConfig(int(id))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bench rig", got.Name)
	assert.Equal(t, "/dev/ttyUSB0", got.PortPath)
	assert.True(t, got.Enabled)
	assert.NotZero(t, got.CreatedAt)

	got.BaudRate = 9600
	got.Enabled = false
	require.NoError(t, db.UpdateSerialConfig(got))

	updated, err := db.GetSerialConfig(int(id))
	require.NoError(t, err)
	assert.Equal(t, 9600, updated.BaudRate)
	assert.False(t, updated.Enabled)

	require.NoError(t, db.DeleteSerialConfig(int(id)))
	gone, err := db.GetSerialConfig(int(id))
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGetEnabledSerialConfigsOrder(t *testing.T) {
	db := testDB(t)

	for _, c := range []SerialConfig{
		{Name: "first", PortPath: "/dev/ttyUSB0", Enabled: true},
		{Name: "disabled", PortPath: "/dev/ttyUSB1"},
		{Name: "second", PortPath: "/dev/ttyUSB2", Enabled: true},
	} {
		c := c
		_, err := db.CreateSerialConfig(&c)
		require.NoError(t, err)
	}

	enabled, err := db.GetEnabledSerialConfigs()
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "first", enabled[0].Name)
	assert.Equal(t, "second", enabled[1].Name)
}

func TestUpdateMissingConfig(t *testing.T) {
	db := testDB(t)

	err := db.UpdateSerialConfig(&SerialConfig{ID: 99, Name: "ghost"})
	assert.Error(t, err)
	assert.Error(t, db.DeleteSerialConfig(99))
}
