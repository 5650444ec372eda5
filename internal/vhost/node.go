package vhost

import (
	"fmt"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/observability"
	"github.com/vyrodovalexey/avaedge/internal/rewrite"
	"github.com/vyrodovalexey/avaedge/internal/util"
)

// node is one compiled configuration tree node. The root node of a
// virtual host has a nil key; every other node carries the pattern its
// subpath key compiled to. Children keep declaration order, which
// breaks specificity ties.
type node struct {
	key      *rewrite.PathPattern
	strip    bool
	cfg      *EffectiveConfig
	children []*node
}

// buildNode compiles one subpath entry under the parent's effective
// configuration.
func buildNode(field string, sp *config.Subpath, parent *EffectiveConfig) (*node, error) {
	key, err := rewrite.ParsePathPattern(sp.Path)
	if err != nil {
		return nil, util.NewConfigErrorWithCause(field+".path", fmt.Sprintf("invalid subpath key %q", sp.Path), err)
	}
	n := &node{key: key, strip: sp.StripPrefix}
	if n.cfg, err = compileNodeConfig(field, &sp.PathConfig, parent); err != nil {
		return nil, err
	}
	if n.children, err = buildChildren(field, sp.Subpaths, n.cfg); err != nil {
		return nil, err
	}
	return n, nil
}

// buildChildren compiles a subpath list in declaration order.
func buildChildren(field string, subpaths []config.Subpath, parent *EffectiveConfig) ([]*node, error) {
	if len(subpaths) == 0 {
		return nil, nil
	}
	children := make([]*node, 0, len(subpaths))
	for i := range subpaths {
		child, err := buildNode(fmt.Sprintf("%s.subpaths[%d]", field, i), &subpaths[i], parent)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// compileNodeConfig compiles the node's rewrite rules and merges its
// settings over the parent's effective configuration.
func compileNodeConfig(field string, pc *config.PathConfig, parent *EffectiveConfig) (*EffectiveConfig, error) {
	var rules *rewrite.RuleSet
	if pc.RewriteRules != nil {
		var err error
		if rules, err = rewrite.Compile(pc.RewriteRules); err != nil {
			return nil, util.WrapError(err, field)
		}
	}
	return parent.merge(pc, rules), nil
}

// match holds one child match during descent.
type match struct {
	node *node
	tail string
}

// matchChild selects the most specific child matching path. An exact
// literal match beats any wildcard; among wildcard matches the longest
// literal prefix wins. Equal specificity falls back to declaration
// order, with a diagnostic log since the overlap is almost certainly a
// configuration mistake.
func (n *node) matchChild(path string, logger observability.Logger) (match, bool) {
	var best match
	found := false
	for _, child := range n.children {
		matched, tail := child.key.Match(path)
		if !matched {
			continue
		}
		m := match{node: child, tail: tail}
		if !found {
			best, found = m, true
			continue
		}
		if moreSpecific(m.node, best.node) {
			best = m
			continue
		}
		if !moreSpecific(best.node, m.node) && logger != nil {
			logger.Debug("subpath keys tie, keeping first declared",
				observability.String("kept", best.node.key.String()),
				observability.String("ignored", m.node.key.String()),
				observability.String("path", path),
			)
		}
	}
	return best, found
}

// moreSpecific reports whether a beats b: exact over wildcard, then
// longer literal prefix.
func moreSpecific(a, b *node) bool {
	if a.key.Wildcard() != b.key.Wildcard() {
		return b.key.Wildcard()
	}
	return len(a.key.Prefix()) > len(b.key.Prefix())
}
