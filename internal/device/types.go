package device

import "time"

// Status is the liveness state of a device.
type Status string

// Valid device statuses. Lowercase on the wire and in storage.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether the status is a recognised value.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// Device represents a physical device known to the backend.
//
// Devices come into existence either through an explicit creation request
// or by auto-provisioning on the first inbound MQTT message for an unseen
// IMEI. They are never deleted automatically.
type Device struct {
	ID        int64     `json:"id"`
	IMEI      string    `json:"imei"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload is an arbitrary structured document attached to a data record.
// It round-trips through JSON; values are string/number/bool/null/array/object.
type Payload map[string]any

// DataRecord is one entry in a device's append-only message log.
//
// Records are immutable once written. DeviceID always refers to a device
// that existed at insert time (enforced by foreign key).
type DataRecord struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	Topic     string    `json:"topic"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
