/*
Package server implements the application's network transport layer.
It builds the HTTP server, configures timeouts, and wires the router to
the database service.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"Lifelog/internal/config"
	"Lifelog/internal/database"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db provides access to the database service and connection pool.
	db database.Service

	cfg *config.Config
}

// NewServer returns a configured *http.Server for cfg, serving the routes
// from routes.go.
func NewServer(cfg *config.Config, db database.Service) *http.Server {
	newApp := &Server{
		port: cfg.Port,
		db:   db,
		cfg:  cfg,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,      // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second, // Maximum duration for reading the entire request.
		WriteTimeout: 30 * time.Second, // Maximum duration before timing out writes of the response.
	}

	return server
}
