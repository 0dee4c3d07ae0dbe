// Package ingest turns inbound MQTT traffic into stored records and
// WebSocket broadcasts.
//
// Every message on devices/{imei}/... auto-provisions the device if needed,
// marks it online, and appends the payload to its data log. Status and
// telemetry topics additionally fan out typed events to WebSocket clients.
//
// The pipeline is deliberately forgiving: a malformed payload, an unknown
// topic shape, or a storage hiccup affects only that one message. The
// subscription stays up and the next message is processed normally.
package ingest
