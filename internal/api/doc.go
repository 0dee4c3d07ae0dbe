// Package api serves the HTTP surface of the Primis backend: device and
// user CRUD, login, health, and the WebSocket endpoint that live-streams
// device events.
//
// Routing is chi, one handler method per route. Handlers translate domain
// errors to HTTP status codes and never leak internal error text to
// clients.
package api
