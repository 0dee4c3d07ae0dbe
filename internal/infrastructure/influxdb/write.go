package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// telemetryMeasurement is the measurement name for device telemetry points.
const telemetryMeasurement = "device_telemetry"

// WriteTelemetryMetric writes a single numeric telemetry field to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Dropped silently if the client is closed.
//
// Example:
//
//	client.WriteTelemetryMetric("860000000000001", "temp", 21.5)
func (c *Client) WriteTelemetryMetric(imei string, field string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		telemetryMeasurement,
		map[string]string{
			"imei": imei,
		},
		map[string]any{
			field: value,
		},
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)
}
