// Package server hosts the HTTP listeners and turns dispatch
// decisions into responses.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/dispatch"
	"github.com/vyrodovalexey/avaedge/internal/observability"
)

// Server runs the configured listeners and the optional metrics
// endpoint.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	accessLog  *AccessLogger
	logger     observability.Logger

	servers       []*http.Server
	metricsServer *http.Server
}

// NewServer creates a server for the given configuration and
// dispatcher.
func NewServer(cfg *config.Config, dispatcher *dispatch.Dispatcher, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		accessLog:  NewAccessLogger(logger),
		logger:     logger,
	}
}

// Start brings up all listeners. It returns once every listener is
// accepting; listener failures after that are reported through the
// logger and stop the process via the returned error channel.
func (s *Server) Start() (<-chan error, error) {
	errCh := make(chan error, len(s.cfg.Listen)+1)

	handler := rateLimitMiddleware(s.cfg.RateLimit, http.HandlerFunc(s.handle))

	for _, l := range s.cfg.Listen {
		srv := &http.Server{
			Addr:         l.Address,
			Handler:      handler,
			ReadTimeout:  l.ReadTimeout.Duration(),
			WriteTimeout: l.WriteTimeout.Duration(),
			IdleTimeout:  l.IdleTimeout.Duration(),
		}
		s.servers = append(s.servers, srv)

		ln, err := net.Listen("tcp", l.Address)
		if err != nil {
			return nil, err
		}
		s.logger.Info("listener started",
			observability.String("address", l.Address),
		)

		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv, ln)
	}

	if s.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsServer = &http.Server{
			Addr:    s.cfg.MetricsListen,
			Handler: mux,
		}
		ln, err := net.Listen("tcp", s.cfg.MetricsListen)
		if err != nil {
			return nil, err
		}
		s.logger.Info("metrics listener started",
			observability.String("address", s.cfg.MetricsListen),
		)
		go func() {
			if err := s.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	return errCh, nil
}

// Shutdown gracefully stops all listeners and flushes access logs.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.accessLog.Sync()
	return firstErr
}

// handle processes one request end to end.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	host, port := requestHostPort(r)
	decision := s.dispatcher.Dispatch(dispatch.Request{
		Host:   host,
		Port:   port,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header,
	})

	rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
	s.respond(rec, r, decision)

	s.accessLog.Log(decision.Config, AccessEntry{
		RemoteAddr: r.RemoteAddr,
		Host:       host,
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Status:     rec.status,
		BytesSent:  rec.bytes,
		Duration:   time.Since(start),
		UserAgent:  r.UserAgent(),
		Referer:    r.Referer(),
	})
}

// respond writes the response a decision calls for.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, decision dispatch.Decision) {
	switch decision.Kind {
	case dispatch.NoHost:
		writeError(w, r, http.StatusNotFound)

	case dispatch.Redirect:
		writeRedirect(w, r, decision.Location, decision.Permanent)

	case dispatch.Static:
		sr := decision.Config.StaticResponse
		for name, value := range sr.Headers {
			w.Header().Set(name, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/html")
		}
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(sr.Body))
		}

	default:
		serveStatic(w, r, decision.Config, decision.Path)
	}
}

// requestHostPort extracts the request hostname and the port the
// request arrived on. The Host header carries the port when the
// client sent one; otherwise the listener's local address supplies
// it.
func requestHostPort(r *http.Request) (string, int) {
	host := r.Host
	port := 0

	if h, p, err := net.SplitHostPort(r.Host); err == nil {
		host = h
		if n, convErr := strconv.Atoi(p); convErr == nil {
			port = n
		}
	}

	if port == 0 {
		if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
			if _, p, err := net.SplitHostPort(addr.String()); err == nil {
				if n, convErr := strconv.Atoi(p); convErr == nil {
					port = n
				}
			}
		}
	}

	return strings.ToLower(host), port
}

// responseRecorder captures status and size for access logging.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// WriteHeader records the status code.
func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

// Write records the number of bytes written.
func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}
