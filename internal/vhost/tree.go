package vhost

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/observability"
	"github.com/vyrodovalexey/avaedge/internal/util"
)

// hostEntry is one compiled virtual host.
type hostEntry struct {
	name string
	root *node
}

// Tree is the compiled virtual host lookup structure. It is immutable
// after Build.
type Tree struct {
	// exact maps "host:port" to its entry.
	exact map[string]*hostEntry
	// anyPort maps port-less hostnames to their entry.
	anyPort map[string]*hostEntry
	// def is the fallback entry, nil when no host is marked default.
	def *hostEntry

	logger observability.Logger
}

// Result is the outcome of resolving one request.
type Result struct {
	// Host is the first configured hostname of the selected virtual
	// host, used for logging and metrics labels.
	Host string

	// Config is the effective configuration at the deepest matched
	// node.
	Config *EffectiveConfig

	// Path is the request path downstream handlers should see. It
	// differs from the request path when a matched node set
	// strip_prefix.
	Path string
}

// Build compiles a validated configuration into a lookup tree. The
// configuration must have passed config.ValidateConfig; Build still
// reports pattern, regex, and template errors, since those are only
// checked by compilation.
func Build(cfg *config.Config, logger observability.Logger) (*Tree, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	t := &Tree{
		exact:   make(map[string]*hostEntry),
		anyPort: make(map[string]*hostEntry),
		logger:  logger,
	}

	base := &EffectiveConfig{}
	var first *hostEntry
	for i := range cfg.VHosts {
		vh := &cfg.VHosts[i]
		field := fmt.Sprintf("vhosts[%d]", i)

		entry := &hostEntry{name: strings.ToLower(vh.Hosts[0])}
		root := &node{}
		var err error
		if root.cfg, err = compileNodeConfig(field, &vh.PathConfig, base); err != nil {
			return nil, err
		}
		if root.children, err = buildChildren(field, vh.Subpaths, root.cfg); err != nil {
			return nil, err
		}
		entry.root = root
		if first == nil {
			first = entry
		}

		for _, h := range vh.Hosts {
			host, port, err := config.ParseHostKey(h)
			if err != nil {
				return nil, util.NewConfigErrorWithCause(field+".hosts", fmt.Sprintf("invalid host key %q", h), err)
			}
			if port == 0 {
				t.anyPort[host] = entry
			} else {
				t.exact[net.JoinHostPort(host, strconv.Itoa(port))] = entry
			}
		}

		if vh.Default {
			if t.def != nil {
				return nil, util.NewConfigError(field, "more than one virtual host is marked default")
			}
			t.def = entry
		}
	}

	// A lone virtual host serves everything even without the explicit
	// default flag.
	if t.def == nil && len(cfg.VHosts) == 1 {
		t.def = first
	}

	return t, nil
}

// lookupHost selects the virtual host for a hostname and listener
// port. Exact host:port entries win over port-less entries; the
// default host catches everything else.
func (t *Tree) lookupHost(host string, port int) (*hostEntry, error) {
	host = strings.ToLower(host)

	if port != 0 {
		if e, ok := t.exact[net.JoinHostPort(host, strconv.Itoa(port))]; ok {
			return e, nil
		}
	}
	if e, ok := t.anyPort[host]; ok {
		return e, nil
	}
	if t.def != nil {
		return t.def, nil
	}
	return nil, util.NewNoMatchingHostError(host, port)
}

// Resolve selects the virtual host for host and port and descends its
// subpath tree along path. The returned Result carries the effective
// configuration of the deepest matched node and the possibly
// prefix-stripped path. It returns an error wrapping
// util.ErrNoMatchingHost when no host matches and no default exists.
func (t *Tree) Resolve(host string, port int, path string) (*Result, error) {
	entry, err := t.lookupHost(host, port)
	if err != nil {
		return nil, err
	}

	res := &Result{Host: entry.name, Config: entry.root.cfg, Path: path}

	// Descend with the path relative to the matched chain. rel is the
	// remaining path the next level's keys match against; a strip node
	// makes its tail the path downstream handlers see.
	current := entry.root
	rel := path
	for {
		m, ok := current.matchChild(rel, t.logger)
		if !ok {
			return res, nil
		}
		res.Config = m.node.cfg
		if m.node.strip {
			res.Path = m.tail
		}
		current = m.node
		rel = m.tail
	}
}
