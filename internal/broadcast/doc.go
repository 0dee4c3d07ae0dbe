// Package broadcast fans messages out to connected WebSocket clients.
//
// The hub is transport-agnostic: anything implementing Subscriber can
// register. Delivery is best-effort; a subscriber whose Send fails is
// dropped from the hub rather than allowed to stall the others.
package broadcast
