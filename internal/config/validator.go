package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avaedge/internal/util"
)

// compressionLevelRanges maps codec name to its valid level range.
var compressionLevelRanges = map[string][2]int{
	"gzip": {1, 9},
	"br":   {0, 11},
	"zstd": {1, 19},
}

// validLogLevels is the set of accepted runtime log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig validates the structural invariants of the
// configuration: listener addresses, host key syntax and uniqueness,
// the single-default rule, subpath key syntax and uniqueness, and
// field value ranges. Rewrite rule patterns and templates are compiled
// and validated by the vhost tree builder; both stages must succeed
// before a configuration is activated.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return util.NewConfigError("", "nil configuration")
	}

	if len(cfg.Listen) == 0 {
		return util.NewConfigError("listen", "at least one listener is required")
	}
	for i, l := range cfg.Listen {
		if l.Address == "" {
			return util.NewConfigError(fmt.Sprintf("listen[%d]", i), "address is required")
		}
		if _, _, err := net.SplitHostPort(l.Address); err != nil {
			return util.NewConfigErrorWithCause(fmt.Sprintf("listen[%d]", i), "invalid address", err)
		}
	}

	if cfg.LogLevel != "" && !validLogLevels[cfg.LogLevel] {
		return util.NewConfigError("log_level",
			fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return util.NewConfigError("log_format",
			fmt.Sprintf("invalid format %q, must be json or console", cfg.LogFormat))
	}

	if cfg.RateLimit != nil {
		if cfg.RateLimit.RPS <= 0 {
			return util.NewConfigError("rate_limit.rps", "must be positive")
		}
		if cfg.RateLimit.Burst <= 0 {
			return util.NewConfigError("rate_limit.burst", "must be positive")
		}
	}

	return validateVHosts(cfg.VHosts)
}

// validateVHosts checks host keys, the single-default invariant, and
// each host's subtree.
func validateVHosts(vhosts []VirtualHost) error {
	if len(vhosts) == 0 {
		return util.NewConfigError("vhosts", "at least one virtual host is required")
	}

	seen := make(map[string]bool)
	defaults := 0
	for i, vh := range vhosts {
		field := fmt.Sprintf("vhosts[%d]", i)

		if len(vh.Hosts) == 0 {
			return util.NewConfigError(field+".hosts", "at least one hostname is required")
		}
		for _, h := range vh.Hosts {
			host, port, err := ParseHostKey(h)
			if err != nil {
				return util.NewConfigErrorWithCause(field+".hosts", fmt.Sprintf("invalid host key %q", h), err)
			}
			key := host
			if port != 0 {
				key = net.JoinHostPort(host, strconv.Itoa(port))
			}
			if seen[key] {
				return util.NewConfigError(field+".hosts", fmt.Sprintf("duplicate host key %q", h))
			}
			seen[key] = true
		}

		if vh.Default {
			defaults++
		}

		if err := validatePathConfig(field, &vh.PathConfig); err != nil {
			return err
		}
		if err := validateSubpaths(field, vh.Subpaths); err != nil {
			return err
		}
	}

	if defaults > 1 {
		return util.NewConfigError("vhosts", "more than one virtual host is marked default")
	}
	if defaults == 0 && len(vhosts) > 1 {
		return util.NewConfigError("vhosts", "no virtual host is marked default")
	}

	return nil
}

// validateSubpaths checks subpath key syntax and same-level uniqueness,
// recursively.
func validateSubpaths(field string, subpaths []Subpath) error {
	seen := make(map[string]bool)
	for i, sp := range subpaths {
		spField := fmt.Sprintf("%s.subpaths[%d]", field, i)

		if err := validateSubpathKey(sp.Path); err != nil {
			return util.NewConfigErrorWithCause(spField+".path", fmt.Sprintf("invalid subpath key %q", sp.Path), err)
		}
		if seen[sp.Path] {
			return util.NewConfigError(spField+".path", fmt.Sprintf("duplicate subpath key %q", sp.Path))
		}
		seen[sp.Path] = true

		if err := validatePathConfig(spField, &sp.PathConfig); err != nil {
			return err
		}
		if err := validateSubpaths(spField, sp.Subpaths); err != nil {
			return err
		}
	}
	return nil
}

// validateSubpathKey checks that a key is an absolute path, optionally
// with a single trailing "/*" wildcard.
func validateSubpathKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if !strings.HasPrefix(key, "/") {
		return fmt.Errorf("key must start with /")
	}
	if n := strings.Count(key, "*"); n > 0 {
		if n > 1 || !strings.HasSuffix(key, "/*") {
			return fmt.Errorf("wildcard is only allowed as a trailing /*")
		}
	}
	return nil
}

// validatePathConfig checks field value ranges on a single node.
func validatePathConfig(field string, pc *PathConfig) error {
	for codec, level := range pc.CompressionLevels {
		r, ok := compressionLevelRanges[codec]
		if !ok {
			return util.NewConfigError(field+".compression_levels",
				fmt.Sprintf("unknown codec %q", codec))
		}
		if level < r[0] || level > r[1] {
			return util.NewConfigError(field+".compression_levels",
				fmt.Sprintf("%s level %d out of range [%d, %d]", codec, level, r[0], r[1]))
		}
	}

	for i, rule := range pc.RewriteRules {
		ruleField := fmt.Sprintf("%s.rewrite_rules[%d]", field, i)
		if rule.From == "" && rule.FromRegex == "" {
			return util.NewConfigError(ruleField, "one of from or from_regex is required")
		}
		if rule.From != "" {
			if err := validateSubpathKey(rule.From); err != nil {
				return util.NewConfigErrorWithCause(ruleField+".from", fmt.Sprintf("invalid pattern %q", rule.From), err)
			}
		}
		if rule.To == "" {
			return util.NewConfigError(ruleField+".to", "replacement is required")
		}
		switch rule.Type {
		case "", "redirect", "permanent":
		default:
			return util.NewConfigError(ruleField+".type",
				fmt.Sprintf("invalid type %q, must be redirect or permanent", rule.Type))
		}
	}

	return nil
}

// ParseHostKey splits a virtual host key into a lower-cased hostname
// and an optional port. Port 0 means the key matches any listener
// port.
func ParseHostKey(key string) (host string, port int, err error) {
	if key == "" {
		return "", 0, fmt.Errorf("empty host key")
	}

	host = key
	if h, p, splitErr := net.SplitHostPort(key); splitErr == nil {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 1 || n > 65535 {
			return "", 0, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}

	if host == "" {
		return "", 0, fmt.Errorf("empty hostname")
	}
	if strings.ContainsAny(host, "/ ") {
		return "", 0, fmt.Errorf("invalid hostname %q", host)
	}

	return strings.ToLower(host), port, nil
}
