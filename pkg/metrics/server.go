package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Exporter serves /metrics for a build or the query service.
type Exporter struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr before returning, so a taken port fails the command
// instead of a background goroutine.
func Listen(addr string) (*Exporter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	e := &Exporter{
		ln: ln,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
	logger := slog.Default().With("component", "metrics")
	go func() {
		logger.Info("serving metrics", "addr", e.Addr())
		if err := e.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return e, nil
}

// Addr is the bound address, useful when Listen was given port 0.
func (e *Exporter) Addr() string { return e.ln.Addr().String() }

func (e *Exporter) Shutdown(ctx context.Context) error { return e.srv.Shutdown(ctx) }
