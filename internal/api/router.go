package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routes builds the router and middleware chain.
//
// Device endpoints and the WebSocket are open; device clients and dashboards
// authenticate at the network layer. User management requires a token.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))
	r.Use(bodyLimit)
	r.Use(cors(s.cfg.API.CORS))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/auth/login", s.handleLogin)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/{imei}", s.handleGetDevice)
			r.Patch("/{imei}/status", s.handleUpdateDeviceStatus)
			r.Delete("/{imei}", s.handleDeleteDevice)
			r.Get("/{imei}/data", s.handleDeviceData)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticate(s.tokens))
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Patch("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})
	})

	r.Get(s.cfg.WebSocket.Path, s.handleWebSocket)

	return r
}
