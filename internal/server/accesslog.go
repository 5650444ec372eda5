package server

import (
	"sync"
	"time"

	"github.com/vyrodovalexey/avaedge/internal/observability"
	"github.com/vyrodovalexey/avaedge/internal/vhost"
)

// defaultAccessLogFields is the field selection used when a node sets
// log_file without log_format.
var defaultAccessLogFields = []string{
	"remote_addr", "method", "path", "status", "bytes_sent", "duration_ms",
}

// AccessEntry carries the loggable facts about one completed request.
type AccessEntry struct {
	RemoteAddr string
	Host       string
	Method     string
	Path       string
	Query      string
	Status     int
	BytesSent  int64
	Duration   time.Duration
	UserAgent  string
	Referer    string
}

// AccessLogger writes per-host access logs. Loggers are opened lazily
// and cached by file path, so several hosts sharing one log_file share
// one logger.
type AccessLogger struct {
	fallback observability.Logger

	mu      sync.Mutex
	loggers map[string]observability.Logger
}

// NewAccessLogger creates an access logger. Open failures are
// reported once through the fallback logger and the affected entries
// are dropped.
func NewAccessLogger(fallback observability.Logger) *AccessLogger {
	if fallback == nil {
		fallback = observability.NopLogger()
	}
	return &AccessLogger{
		fallback: fallback,
		loggers:  make(map[string]observability.Logger),
	}
}

// Log writes one access log entry according to the node's log_file
// and log_format settings. Nodes without log_file log nothing.
func (a *AccessLogger) Log(cfg *vhost.EffectiveConfig, entry AccessEntry) {
	if cfg == nil || cfg.LogFile == "" {
		return
	}

	logger := a.loggerFor(cfg.LogFile)
	if logger == nil {
		return
	}

	format := cfg.LogFormat
	if len(format) == 0 {
		format = defaultAccessLogFields
	}

	fields := make([]observability.Field, 0, len(format))
	for _, name := range format {
		fields = append(fields, entry.field(name))
	}
	logger.Info("access", fields...)
}

// loggerFor returns the cached logger for a file path, opening it on
// first use.
func (a *AccessLogger) loggerFor(path string) observability.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()

	if logger, ok := a.loggers[path]; ok {
		return logger
	}

	logger, err := observability.NewFileLogger(path)
	if err != nil {
		a.fallback.Error("failed to open access log",
			observability.String("path", path),
			observability.Error(err),
		)
		a.loggers[path] = nil
		return nil
	}
	a.loggers[path] = logger
	return logger
}

// Sync flushes all open access logs.
func (a *AccessLogger) Sync() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, logger := range a.loggers {
		if logger != nil {
			_ = logger.Sync()
		}
	}
}

// field maps a configured field name to its value. Unknown names
// produce an empty string field, so a typo in log_format shows up in
// the output instead of silently vanishing.
func (e *AccessEntry) field(name string) observability.Field {
	switch name {
	case "remote_addr":
		return observability.String(name, e.RemoteAddr)
	case "host":
		return observability.String(name, e.Host)
	case "method":
		return observability.String(name, e.Method)
	case "path":
		return observability.String(name, e.Path)
	case "query":
		return observability.String(name, e.Query)
	case "status":
		return observability.Int(name, e.Status)
	case "bytes_sent":
		return observability.Int64(name, e.BytesSent)
	case "duration_ms":
		return observability.Int64(name, e.Duration.Milliseconds())
	case "user_agent":
		return observability.String(name, e.UserAgent)
	case "referer":
		return observability.String(name, e.Referer)
	default:
		return observability.String(name, "")
	}
}
