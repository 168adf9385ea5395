// Package server exposes the HTTP read surface and the websocket entry point.
// Everything here is a projection; mutations only ever happen through the
// coordinator's message handlers.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sundialgames/weekender-backend/internal/config"
	"github.com/sundialgames/weekender-backend/internal/coordinator"
)

type Server struct {
	cfg   config.Config
	coord *coordinator.Coordinator
}

func NewServer(cfg config.Config, coord *coordinator.Coordinator) *Server {
	return &Server{cfg: cfg, coord: coord}
}

// HTTPServer wraps the routed handler in an http.Server with sane timeouts.
// Write timeout stays generous because websocket connections are long-lived.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
