package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// numericSnapshotFields are the telemetry.ToSimpleMap() keys written as
// InfluxDB fields. Of the remaining keys only status is written, as a
// tag; the others are not written at all.
var numericSnapshotFields = []string{
	"current", "voltage", "frequency", "power",
	"energy_lifetime", "energy_session", "temperature",
	"current_rating", "current_max_online", "current_max_offline",
}

// WriteTelemetry writes one point per numeric field in a processed
// telemetry snapshot (the output of protocol.Telemetry.ToSimpleMap),
// tagged by device serial and status.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteTelemetry(deviceSerial string, snapshot map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]interface{}, len(numericSnapshotFields))
	for _, key := range numericSnapshotFields {
		if v, ok := snapshot[key]; ok {
			if f, ok := toFloat(v); ok {
				fields[key] = f
			}
		}
	}
	if len(fields) == 0 {
		return
	}

	tags := map[string]string{"device_serial": deviceSerial}
	if status, ok := snapshot["status"].(string); ok {
		tags["status"] = status
	}

	point := write.NewPoint("juicebox_telemetry", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteCommand writes a synthesized or cloud-sourced command frame's
// amperage setpoints and counter, for comparing against telemetry
// later.
func (c *Client) WriteCommand(deviceSerial string, instantAmperage, offlineAmperage, counter int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"juicebox_command",
		map[string]string{"device_serial": deviceSerial},
		map[string]interface{}{
			"instant_amperage": instantAmperage,
			"offline_amperage": offlineAmperage,
			"counter":          counter,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteTelemetry/WriteCommand.
//
// Example:
//
//	client.WritePoint("admin_channel_latency",
//	    map[string]string{"device_serial": serial},
//	    map[string]interface{}{"milliseconds": 42.0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., a backfilled reading).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// toFloat converts the numeric dynamic types protocol.Telemetry.ToSimpleMap
// produces (int, float64) to float64, reporting false for anything else.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
