package mqtt

import (
	"fmt"
	"strings"
)

// Topic structure for the Primis backend:
//
//	devices/{imei}/data       arbitrary device messages
//	devices/{imei}/status     device status updates ({"status":"online"|"offline"})
//	devices/{imei}/telemetry  sensor readings
//	primis/system/status      backend online/offline (LWT)
const (
	deviceTopicPrefix = "devices"

	// SegmentData, SegmentStatus, and SegmentTelemetry name the channel
	// segments the ingestion pipeline routes on.
	SegmentData      = "data"
	SegmentStatus    = "status"
	SegmentTelemetry = "telemetry"

	systemStatusTopic = "primis/system/status"

	// imeiSegmentIndex is the position of the IMEI in a device topic.
	imeiSegmentIndex = 1
)

// Topics provides methods for constructing MQTT topic strings.
// Using methods instead of string constants prevents typos and keeps
// the topic structure in one place.
type Topics struct{}

// DeviceData returns the data topic for a specific device.
func (Topics) DeviceData(imei string) string {
	return fmt.Sprintf("%s/%s/%s", deviceTopicPrefix, imei, SegmentData)
}

// DeviceStatus returns the status topic for a specific device.
func (Topics) DeviceStatus(imei string) string {
	return fmt.Sprintf("%s/%s/%s", deviceTopicPrefix, imei, SegmentStatus)
}

// DeviceTelemetry returns the telemetry topic for a specific device.
func (Topics) DeviceTelemetry(imei string) string {
	return fmt.Sprintf("%s/%s/%s", deviceTopicPrefix, imei, SegmentTelemetry)
}

// AllDeviceData returns the wildcard pattern matching every device's data topic.
func (Topics) AllDeviceData() string {
	return fmt.Sprintf("%s/+/%s", deviceTopicPrefix, SegmentData)
}

// AllDeviceStatus returns the wildcard pattern matching every device's status topic.
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/%s", deviceTopicPrefix, SegmentStatus)
}

// AllDeviceTelemetry returns the wildcard pattern matching every device's telemetry topic.
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/+/%s", deviceTopicPrefix, SegmentTelemetry)
}

// SystemStatus returns the backend's own status topic (used for LWT).
func (Topics) SystemStatus() string {
	return systemStatusTopic
}

// IMEIFromTopic extracts the device IMEI from a topic of the form
// "devices/{imei}/...". It returns false if the topic has too few
// segments or the IMEI segment is empty.
func IMEIFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) <= imeiSegmentIndex {
		return "", false
	}
	imei := parts[imeiSegmentIndex]
	if imei == "" {
		return "", false
	}
	return imei, true
}

// TopicHasSegment reports whether any segment of the topic equals the
// given literal segment.
func TopicHasSegment(topic, segment string) bool {
	for _, part := range strings.Split(topic, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
