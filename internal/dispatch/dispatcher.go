package dispatch

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/avaedge/internal/observability"
	"github.com/vyrodovalexey/avaedge/internal/rewrite"
	"github.com/vyrodovalexey/avaedge/internal/vhost"
)

// Request is the subset of an HTTP request the dispatcher needs.
type Request struct {
	Host   string
	Port   int
	Path   string
	Query  string
	Header http.Header
}

// DecisionKind classifies what should happen to a request.
type DecisionKind int

const (
	// NoHost means no virtual host matched and no default exists; the
	// server answers 404 with the standard page.
	NoHost DecisionKind = iota
	// Redirect sends the client to Decision.Location.
	Redirect
	// Static serves the node's configured static response.
	Static
	// Serve hands the request to the file handler with the effective
	// configuration and path.
	Serve
)

// String returns the metrics label for the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case Redirect:
		return "redirect"
	case Static:
		return "static"
	case Serve:
		return "serve"
	default:
		return "no_host"
	}
}

// Decision is the dispatcher's verdict for one request.
type Decision struct {
	Kind DecisionKind

	// Host is the selected virtual host name, empty for NoHost.
	Host string

	// Config is the effective configuration at the resolved node, nil
	// for NoHost.
	Config *vhost.EffectiveConfig

	// Path is the path downstream handlers should use. Prefix
	// stripping and internal rewrites are already applied.
	Path string

	// Query is the effective query string. An internal rewrite target
	// may replace it.
	Query string

	// Location and Permanent describe a Redirect decision.
	Location  string
	Permanent bool

	// Rewritten reports whether an internal rewrite changed the path.
	Rewritten bool
}

// Dispatcher resolves requests against the active configuration tree.
// The tree is swapped atomically on reload; in-flight requests keep
// the snapshot they started with.
type Dispatcher struct {
	tree    atomic.Pointer[vhost.Tree]
	logger  observability.Logger
	metrics *Metrics
}

// NewDispatcher creates a dispatcher serving the given tree.
func NewDispatcher(tree *vhost.Tree, logger observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	d := &Dispatcher{
		logger:  logger,
		metrics: GetMetrics(),
	}
	d.tree.Store(tree)
	return d
}

// Swap activates a new configuration tree.
func (d *Dispatcher) Swap(tree *vhost.Tree) {
	d.tree.Store(tree)
	d.metrics.ConfigReloadsTotal.WithLabelValues("success").Inc()
	d.logger.Info("configuration tree swapped")
}

// ReloadFailed records a reload that never produced a tree. The
// previously active tree stays in effect.
func (d *Dispatcher) ReloadFailed(err error) {
	d.metrics.ConfigReloadsTotal.WithLabelValues("failure").Inc()
	d.logger.Error("configuration reload failed, keeping active tree",
		observability.Error(err),
	)
}

// Tree returns the active tree snapshot.
func (d *Dispatcher) Tree() *vhost.Tree {
	return d.tree.Load()
}

// Dispatch resolves a request and evaluates the resolved node's
// rewrite rules. An internal rewrite re-resolves the tree against the
// rewritten path exactly once; the rules of the newly resolved node
// are not evaluated again, so two internal rules can never loop.
func (d *Dispatcher) Dispatch(req Request) Decision {
	tree := d.tree.Load()
	start := time.Now()

	res, err := tree.Resolve(req.Host, req.Port, req.Path)
	if err != nil {
		d.logger.Debug("no matching virtual host",
			observability.String("host", req.Host),
			observability.Int("port", req.Port),
		)
		d.metrics.RequestsTotal.WithLabelValues("", NoHost.String()).Inc()
		return Decision{Kind: NoHost, Path: req.Path, Query: req.Query}
	}
	d.metrics.ResolveDurationSeconds.WithLabelValues(res.Host).Observe(time.Since(start).Seconds())

	decision := Decision{
		Host:   res.Host,
		Config: res.Config,
		Path:   res.Path,
		Query:  req.Query,
	}

	outcome := res.Config.Rules.Apply(res.Path, req.Query, req.Header)
	switch outcome.Kind {
	case rewrite.RedirectOut:
		decision.Kind = Redirect
		decision.Location = outcome.Location
		decision.Permanent = outcome.Permanent
		d.countRewrite(res.Host, outcome.Permanent)

	case rewrite.Rewritten:
		decision = d.redispatch(tree, req, res.Host, outcome.Path)
		d.metrics.RewritesTotal.WithLabelValues(res.Host, "internal").Inc()

	default:
		decision.Kind = serveKind(res.Config)
	}

	d.metrics.RequestsTotal.WithLabelValues(decision.Host, decision.Kind.String()).Inc()
	return decision
}

// redispatch resolves the target of an internal rewrite. The target
// may carry its own query string, which replaces the request's.
func (d *Dispatcher) redispatch(tree *vhost.Tree, req Request, fromHost, target string) Decision {
	path, query := splitTarget(target, req.Query)

	d.logger.Debug("internal rewrite",
		observability.String("host", fromHost),
		observability.String("from", req.Path),
		observability.String("to", path),
	)

	res, err := tree.Resolve(req.Host, req.Port, path)
	if err != nil {
		// The host matched a moment ago; only a nonsensical rewrite
		// target can get here.
		return Decision{Kind: NoHost, Path: path, Query: query}
	}

	return Decision{
		Kind:      serveKind(res.Config),
		Host:      res.Host,
		Config:    res.Config,
		Path:      res.Path,
		Query:     query,
		Rewritten: true,
	}
}

// serveKind picks Static when the node configures a synthesized
// response, Serve otherwise.
func serveKind(cfg *vhost.EffectiveConfig) DecisionKind {
	if cfg.StaticResponse != nil {
		return Static
	}
	return Serve
}

// countRewrite records a matched redirect rule.
func (d *Dispatcher) countRewrite(host string, permanent bool) {
	t := "redirect"
	if permanent {
		t = "permanent"
	}
	d.metrics.RewritesTotal.WithLabelValues(host, t).Inc()
}

// splitTarget splits an internal rewrite target into path and query.
// A target without "?" keeps the original query string.
func splitTarget(target, originalQuery string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, originalQuery
}
