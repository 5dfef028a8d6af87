package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag names for auth event counters.
const (
	MeasurementAuthEvents = "auth_events"

	TagAction  = "action"
	TagOutcome = "outcome"

	FieldCount = "count"
)

// NewAuthEventPoint builds the point recorded for a single auth event.
func NewAuthEventPoint(action, outcome string, at time.Time) *write.Point {
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementAuthEvents,
		map[string]string{
			TagAction:  action,
			TagOutcome: outcome,
		},
		map[string]interface{}{
			FieldCount: 1,
		},
		at,
	)
}

// WriteAuthEvent counts one auth event (login, logout, register...) with
// its outcome. Non-blocking; dropped silently when not connected.
//
// Example:
//
//	client.WriteAuthEvent("login", "success", time.Now())
func (c *Client) WriteAuthEvent(action, outcome string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewAuthEventPoint(action, outcome, at))
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
