package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// MQTTChecker reports whether the MQTT client holds a broker connection.
type MQTTChecker struct {
	isConnected func() bool
}

// NewMQTTChecker creates a new MQTT health checker.
func NewMQTTChecker(isConnected func() bool) *MQTTChecker {
	return &MQTTChecker{isConnected: isConnected}
}

// Name returns the checker name.
func (c *MQTTChecker) Name() string {
	return "mqtt"
}

// Check verifies the broker connection is up.
func (c *MQTTChecker) Check(ctx context.Context) error {
	if c.isConnected == nil || !c.isConnected() {
		return fmt.Errorf("mqtt broker not connected")
	}
	return nil
}
