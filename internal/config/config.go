// Package config provides configuration management for the edge server.
// Configuration is loaded from a declarative YAML file and validated
// before any of it reaches the request path; a validated configuration
// is compiled into an immutable host tree by the vhost package.
package config

import (
	"time"
)

// Config is the top-level edge server configuration.
type Config struct {
	// Listen defines the network listeners.
	Listen []Listener `yaml:"listen"`

	// LogLevel is the runtime log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat is the runtime log encoding (json, console).
	LogFormat string `yaml:"log_format"`

	// MetricsListen is the optional address of the Prometheus metrics
	// endpoint. Empty disables the metrics listener.
	MetricsListen string `yaml:"metrics_listen"`

	// RateLimit is an optional per-listener request rate limit.
	RateLimit *RateLimit `yaml:"rate_limit"`

	// VHosts maps virtual host names to their configuration. Order is
	// preserved; it breaks specificity ties between subpath keys.
	VHosts []VirtualHost `yaml:"vhosts"`
}

// Listener defines a single listen address.
type Listener struct {
	// Address in host:port form, e.g. ":8080" or "127.0.0.1:8080".
	Address string `yaml:"address"`

	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// RateLimit defines a token-bucket request rate limit.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// VirtualHost configures one virtual host.
type VirtualHost struct {
	// Hosts lists the hostnames this virtual host answers for,
	// optionally with a port ("example.com", "example.com:8080").
	// Hostnames are case-insensitive; a port-less entry matches the
	// hostname on any listener port.
	Hosts []string `yaml:"hosts"`

	// Default marks this host as the fallback for requests whose
	// host and port match no other virtual host. At most one host
	// may be marked default.
	Default bool `yaml:"default"`

	// PathConfig fields appear inline at the same level as Default.
	PathConfig `yaml:",inline"`

	// Subpaths holds per-path configuration overrides, evaluated in
	// declaration order.
	Subpaths []Subpath `yaml:"subpaths"`
}

// Subpath configures a path below a virtual host or another subpath.
type Subpath struct {
	// Path is the subpath key, relative to the enclosing node. A
	// literal key ("/file.txt") matches exactly; a wildcard key
	// ("/images/*") matches the literal prefix plus any tail.
	Path string `yaml:"path"`

	// StripPrefix removes the matched literal prefix from the path
	// seen by descendant resolution and downstream modules.
	StripPrefix bool `yaml:"strip_prefix"`

	// PathConfig fields appear inline at the same level as Path.
	PathConfig `yaml:",inline"`

	// Subpaths nests further overrides below this node.
	Subpaths []Subpath `yaml:"subpaths"`
}

// PathConfig holds the per-node overridable settings. Every field is
// optional; an unset field inherits the enclosing node's value. Pointer
// and nil-able types distinguish "not set" (inherit) from "set but
// empty" (explicit override).
type PathConfig struct {
	// RootDir is the directory static content is served from.
	RootDir *string `yaml:"root_dir"`

	// IndexFiles lists file names tried, in order, for directory
	// requests.
	IndexFiles []string `yaml:"index_files"`

	// CanonicalizeURI enables redirecting to the canonical form of
	// the request path (cleaned, directory trailing slash).
	CanonicalizeURI *bool `yaml:"canonicalize_uri"`

	// CompressionLevels maps codec name to compression level. An
	// explicit empty map disables compression for this subtree.
	CompressionLevels map[string]int `yaml:"compression_levels"`

	// Precompressed lists file extensions that may be served from
	// pre-compressed siblings (e.g. gz, br).
	Precompressed []string `yaml:"precompressed"`

	// LogFile is the per-host access log path.
	LogFile *string `yaml:"log_file"`

	// LogFormat lists the access log fields to emit, in order.
	LogFormat []string `yaml:"log_format"`

	// StaticResponse serves a synthesized response for this node
	// instead of consulting any downstream handler.
	StaticResponse *StaticResponse `yaml:"static_response"`

	// RewriteRules is this node's rewrite rule list. A node's own
	// list fully replaces the inherited one; it is never merged.
	RewriteRules []RewriteRule `yaml:"rewrite_rules"`
}

// StaticResponse is a synthesized response body plus headers.
type StaticResponse struct {
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
}

// RewriteRule is one ordered URL rewrite or redirect rule.
type RewriteRule struct {
	// From is a literal path, optionally with a trailing wildcard
	// ("/images/*"). A wildcard pattern captures the remaining
	// suffix as ${tail}.
	From string `yaml:"from"`

	// FromRegex is an additional regular expression the path must
	// match. Capture groups become ${1}.. and ${name} placeholders.
	FromRegex string `yaml:"from_regex"`

	// QueryRegex is a regular expression matched against the raw
	// query string. A leading "!" negates the predicate.
	QueryRegex string `yaml:"query_regex"`

	// To is the replacement template. It may reference ${tail},
	// ${query}, ${http_<header>}, and captures from FromRegex.
	To string `yaml:"to"`

	// Type selects the rule action: "" (internal rewrite),
	// "redirect" (307), or "permanent" (308).
	Type string `yaml:"type"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen: []Listener{
			{
				Address:      ":8080",
				ReadTimeout:  Duration(30 * time.Second),
				WriteTimeout: Duration(30 * time.Second),
				IdleTimeout:  Duration(120 * time.Second),
			},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}
