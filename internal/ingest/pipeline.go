package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/primisapp/primis-backend/internal/broadcast"
	"github.com/primisapp/primis-backend/internal/device"
	"github.com/primisapp/primis-backend/internal/infrastructure/logging"
	"github.com/primisapp/primis-backend/internal/infrastructure/mqtt"
)

// storageTimeout bounds each storage call made while handling one message.
// The MQTT handler runs in its own goroutine, so a slow disk stalls only
// the message being processed.
const storageTimeout = 5 * time.Second

// Broadcaster fans a message out to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(msg broadcast.Message)
}

// TelemetrySink records numeric telemetry values in a time-series store.
// Implemented by the InfluxDB client; optional.
type TelemetrySink interface {
	WriteTelemetryMetric(imei string, field string, value float64)
}

// Pipeline wires MQTT subscriptions to device storage and broadcasting.
type Pipeline struct {
	client  *mqtt.Client
	devices device.Repository
	hub     Broadcaster
	sink    TelemetrySink // nil when the time-series store is disabled
	logger  *logging.Logger

	qos          byte
	broadcastRaw bool
}

// Options configures optional pipeline behaviour.
type Options struct {
	// QoS is the subscription quality of service level.
	QoS byte

	// BroadcastRaw relays every inbound MQTT message to WebSocket clients
	// in addition to the typed status/telemetry events.
	BroadcastRaw bool

	// Sink receives numeric telemetry fields. May be nil.
	Sink TelemetrySink
}

// New creates a pipeline. The MQTT client may be nil in tests that drive
// HandleMessage directly.
func New(client *mqtt.Client, devices device.Repository, hub Broadcaster, logger *logging.Logger, opts Options) *Pipeline {
	return &Pipeline{
		client:       client,
		devices:      devices,
		hub:          hub,
		sink:         opts.Sink,
		logger:       logger.With("component", "ingest"),
		qos:          opts.QoS,
		broadcastRaw: opts.BroadcastRaw,
	}
}

// Start subscribes to the device topic tree.
//
// Three wildcard subscriptions cover the whole surface:
//
//	devices/+/data
//	devices/+/status
//	devices/+/telemetry
func (p *Pipeline) Start() error {
	topics := mqtt.Topics{}
	for _, topic := range []string{
		topics.AllDeviceData(),
		topics.AllDeviceStatus(),
		topics.AllDeviceTelemetry(),
	} {
		if err := p.client.Subscribe(topic, p.qos, p.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		p.logger.Info("subscribed", "topic", topic)
	}

	return nil
}

// HandleMessage processes one inbound MQTT message.
//
// The returned error is informational; the caller logs it and the
// subscription continues either way.
func (p *Pipeline) HandleMessage(topic string, raw []byte) error {
	payload := decodePayload(raw)

	imei, ok := mqtt.IMEIFromTopic(topic)
	if !ok {
		return fmt.Errorf("no imei in topic %q", topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	// A device that talks is a device that exists and is online.
	d, err := p.devices.CreateIfAbsent(ctx, imei, device.StatusOnline)
	if err != nil {
		return fmt.Errorf("provisioning device %s: %w", imei, err)
	}
	if _, err := p.devices.UpdateStatus(ctx, imei, device.StatusOnline); err != nil {
		p.logger.Error("failed to mark device online", "imei", imei, "error", err)
	}

	if _, err := p.devices.AppendData(ctx, imei, topic, payload); err != nil {
		p.logger.Error("failed to store device data", "imei", imei, "topic", topic, "error", err)
	}

	if p.broadcastRaw {
		p.hub.Broadcast(broadcast.NewMQTTData(imei, topic, payload))
	}

	if mqtt.TopicHasSegment(topic, mqtt.SegmentStatus) {
		p.handleStatus(ctx, imei, payload)
	}

	if mqtt.TopicHasSegment(topic, mqtt.SegmentTelemetry) {
		p.handleTelemetry(imei, payload)
	}

	p.logger.Debug("message processed", "imei", imei, "topic", topic, "device_id", d.ID)

	return nil
}

// handleStatus applies an explicit status report from the device.
//
// Only the exact strings "online" and "offline" count; anything else in the
// status field is stored with the message but changes nothing.
func (p *Pipeline) handleStatus(ctx context.Context, imei string, payload device.Payload) {
	reported, _ := payload["status"].(string)
	status := device.Status(reported)
	if !status.Valid() {
		return
	}

	if _, err := p.devices.UpdateStatus(ctx, imei, status); err != nil {
		p.logger.Error("failed to apply reported status", "imei", imei, "status", reported, "error", err)
		return
	}

	p.hub.Broadcast(broadcast.NewDeviceStatus(imei, string(status)))
}

// handleTelemetry broadcasts a telemetry reading and forwards its numeric
// fields to the time-series sink.
func (p *Pipeline) handleTelemetry(imei string, payload device.Payload) {
	p.hub.Broadcast(broadcast.NewTelemetry(imei, payload))

	if p.sink == nil {
		return
	}
	for field, value := range payload {
		switch v := value.(type) {
		case float64:
			p.sink.WriteTelemetryMetric(imei, field, v)
		case bool:
			metric := 0.0
			if v {
				metric = 1.0
			}
			p.sink.WriteTelemetryMetric(imei, field, metric)
		}
	}
}

// decodePayload parses the raw MQTT payload as a JSON object.
//
// Anything that is not a JSON object (plain text, a bare number, invalid
// JSON) is preserved as {"message": "<raw text>"} so no inbound data is
// ever discarded.
func decodePayload(raw []byte) device.Payload {
	var payload device.Payload
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return device.Payload{"message": string(raw)}
	}
	return payload
}
