package broadcast

import "time"

// MessageType identifies the kind of event carried by a Message.
type MessageType string

// Wire message types.
const (
	// TypeMQTTData is a raw inbound MQTT message relayed verbatim.
	TypeMQTTData MessageType = "mqtt_data"

	// TypeDeviceStatus is a device liveness transition.
	TypeDeviceStatus MessageType = "device_status"

	// TypeTelemetry is a device telemetry reading.
	TypeTelemetry MessageType = "telemetry"

	// TypeConnection is the welcome message sent to a newly registered
	// subscriber.
	TypeConnection MessageType = "connection"
)

// Message is the envelope every WebSocket frame carries.
type Message struct {
	Type MessageType `json:"type"`
	Data MessageData `json:"data"`
}

// MessageData is the payload of a Message. Fields are populated per type;
// unused fields are omitted from the JSON encoding.
type MessageData struct {
	IMEI      string `json:"imei,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewMQTTData builds a raw-relay message for an inbound MQTT frame.
func NewMQTTData(imei, topic string, payload any) Message {
	return Message{
		Type: TypeMQTTData,
		Data: MessageData{
			IMEI:      imei,
			Topic:     topic,
			Payload:   payload,
			Timestamp: timestamp(),
		},
	}
}

// NewDeviceStatus builds a liveness-transition message.
func NewDeviceStatus(imei, status string) Message {
	return Message{
		Type: TypeDeviceStatus,
		Data: MessageData{
			IMEI:      imei,
			Status:    status,
			Timestamp: timestamp(),
		},
	}
}

// NewTelemetry builds a telemetry message.
func NewTelemetry(imei string, payload any) Message {
	return Message{
		Type: TypeTelemetry,
		Data: MessageData{
			IMEI:      imei,
			Payload:   payload,
			Timestamp: timestamp(),
		},
	}
}

// NewConnection builds the welcome message for a new subscriber.
func NewConnection(text string) Message {
	return Message{
		Type: TypeConnection,
		Data: MessageData{
			Message:   text,
			Timestamp: timestamp(),
		},
	}
}
