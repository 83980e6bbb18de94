package mockapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server runs an App on a local port.
type Server struct {
	app      *App
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Start listens on addr, such as "localhost:0" for any free port, and serves the app in the
// background. The listener is open when Start returns, so the app can be reached immediately.
func Start(addr string, app *App) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	s := &Server{
		app:      app,
		listener: listener,
		done:     make(chan struct{}),
		server: &http.Server{
			Handler:           app,
			ReadHeaderTimeout: 10 * time.Second, // arbitrary but non-infinite timeout to avoid Slowloris Attack
		},
	}
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Printf("Fixture server stopped: %s", err)
		}
	}()
	return s, nil
}

// URL returns the base URL of the lobby, ending in a slash.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String() + "/"
}

// Close ends the app's streams and shuts the server down, waiting a short time for requests
// in progress.
func (s *Server) Close() error {
	s.app.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
