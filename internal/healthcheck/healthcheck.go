package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// NormalizeListen trims the configured listen address; ":8080" style
// values pass through, a bare port gets the leading colon added.
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return ""
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// Server wraps the health HTTP server so callers only see Shutdown.
type Server struct {
	httpServer *http.Server
	addr       string
}

// Addr reports the bound listen address, useful when the configured
// port was 0.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// StartServer serves GET /healthz on listen until the returned server
// is shut down or ctx is canceled.
func StartServer(ctx context.Context, logger *slog.Logger, listen string, component string) (*Server, error) {
	listen = NormalizeListen(listen)
	if listen == "" {
		return nil, fmt.Errorf("health listen address is required")
	}
	component = strings.TrimSpace(component)
	if component == "" {
		component = "unknown"
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("health listen %s: %w", listen, err)
	}

	startedAt := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"component":  component,
			"started_at": startedAt.Format(time.RFC3339),
		})
	})

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if serveErr := httpServer.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			if logger != nil {
				logger.Warn(component+"_health_serve_error", "error", serveErr.Error())
			}
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info(component+"_health_server_start", "addr", ln.Addr().String())
	}
	return &Server{httpServer: httpServer, addr: ln.Addr().String()}, nil
}
