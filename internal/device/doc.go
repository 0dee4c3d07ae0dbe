// Package device is the sole authority for device and device-data
// persistence in the Primis backend.
//
// Devices are keyed externally by IMEI (unique, indexed) and internally by a
// store-assigned integer ID. Device data is an append-only log: one record
// per successfully ingested MQTT message, never updated or deleted.
//
// There is no caching layer; every operation is a fresh read or write
// against SQLite. Uniqueness under concurrent auto-provisioning is enforced
// by the UNIQUE index on imei, not by application-level locking.
package device
