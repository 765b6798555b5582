package db

import (
	"database/sql"
	"fmt"
)

// SerialConfig is a named serial-link configuration for the rail controller.
// Exactly one enabled configuration is applied at a time; the oldest enabled
// entry wins when several are enabled.
type SerialConfig struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	PortPath    string  `json:"port_path"`
	BaudRate    int     `json:"baud_rate"`
	DataBits    int     `json:"data_bits"`
	StopBits    float64 `json:"stop_bits"`
	Parity      string  `json:"parity"`
	FlowControl string  `json:"flow_control"`
	Enabled     bool    `json:"enabled"`
	Description string  `json:"description"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

const serialConfigColumns = `id, name, port_path, baud_rate, data_bits, stop_bits, parity, flow_control, enabled, description, created_at, updated_at`

func scanSerialConfig(row interface{ Scan(...any) error }) (SerialConfig, error) {
	var c SerialConfig
	var enabled int
	err := row.Scan(&c.ID, &c.Name, &c.PortPath, &c.BaudRate, &c.DataBits, &c.StopBits,
		&c.Parity, &c.FlowControl, &enabled, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Enabled = enabled == 1
	return c, nil
}

// GetSerialConfigs returns all serial configurations, oldest first.
func (db *DB) GetSerialConfigs() ([]SerialConfig, error) {
	rows, err := db.Query(`SELECT ` + serialConfigColumns + `
	          FROM esl_serial_config
	          ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query serial configs: %w", err)
	}
	defer rows.Close()

	var configs []SerialConfig
	for rows.Next() {
		c, err := scanSerialConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan serial config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// GetSerialConfig returns a single serial configuration by ID, or nil when
// there is no such row.
func (db *DB) GetSerialConfig(id int) (*SerialConfig, error) {
	row := db.QueryRow(`SELECT `+serialConfigColumns+`
	          FROM esl_serial_config
	          WHERE id = ?`, id)

	c, err := scanSerialConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get serial config: %w", err)
	}
	return &c, nil
}

// GetEnabledSerialConfigs returns all enabled serial configurations, oldest
// first.
func (db *DB) GetEnabledSerialConfigs() ([]SerialConfig, error) {
	rows, err := db.Query(`SELECT ` + serialConfigColumns + `
	          FROM esl_serial_config
	          WHERE enabled = 1
	          ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled serial configs: %w", err)
	}
	defer rows.Close()

	var configs []SerialConfig
	for rows.Next() {
		c, err := scanSerialConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan serial config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// CreateSerialConfig creates a new serial configuration and returns its ID.
func (db *DB) CreateSerialConfig(c *SerialConfig) (int64, error) {
	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	result, err := db.Exec(
		`INSERT INTO esl_serial_config (name, port_path, baud_rate, data_bits, stop_bits, parity, flow_control, enabled, description)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.FlowControl, enabled, c.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to create serial config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// UpdateSerialConfig updates an existing serial configuration.
func (db *DB) UpdateSerialConfig(c *SerialConfig) error {
	enabled := 0
	if c.Enabled {
		enabled = 1
	}

	result, err := db.Exec(
		`UPDATE esl_serial_config
	          SET name = ?, port_path = ?, baud_rate = ?, data_bits = ?, stop_bits = ?,
	              parity = ?, flow_control = ?, enabled = ?, description = ?,
	              updated_at = strftime('%s','now')
	          WHERE id = ?`,
		c.Name, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.FlowControl, enabled, c.Description, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update serial config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("serial config with ID %d not found", c.ID)
	}
	return nil
}

// DeleteSerialConfig deletes a serial configuration.
func (db *DB) DeleteSerialConfig(id int) error {
	result, err := db.Exec(`DELETE FROM esl_serial_config WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete serial config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("serial config with ID %d not found", id)
	}
	return nil
}
