package vhost

import (
	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/rewrite"
)

// EffectiveConfig is the fully merged configuration in effect at one
// tree node. Every field holds a concrete value; inheritance is
// resolved at build time, field by field, so lookups never walk back
// up the tree.
type EffectiveConfig struct {
	// RootDir is the static content directory, empty when no node in
	// the chain sets one.
	RootDir string

	// IndexFiles lists directory index candidates in order.
	IndexFiles []string

	// CanonicalizeURI enables canonical path redirects.
	CanonicalizeURI bool

	// CompressionLevels maps codec name to level. Empty disables
	// dynamic compression.
	CompressionLevels map[string]int

	// Precompressed lists extensions served from pre-compressed
	// sibling files.
	Precompressed []string

	// LogFile is the access log path, empty for no per-host log.
	LogFile string

	// LogFormat lists the access log fields to emit.
	LogFormat []string

	// StaticResponse, when set, short-circuits the request with a
	// synthesized response.
	StaticResponse *config.StaticResponse

	// Rules is the compiled rewrite rule set in effect at this node.
	// A node's own rule list replaces the inherited one wholesale.
	Rules *rewrite.RuleSet
}

// merge returns a copy of the parent configuration with every field
// the node sets overriding the inherited value. Scalar overrides are
// carried as pointers in the source configuration so that "unset"
// stays distinguishable from an explicit zero value.
func (parent *EffectiveConfig) merge(pc *config.PathConfig, rules *rewrite.RuleSet) *EffectiveConfig {
	eff := *parent

	if pc.RootDir != nil {
		eff.RootDir = *pc.RootDir
	}
	if pc.IndexFiles != nil {
		eff.IndexFiles = pc.IndexFiles
	}
	if pc.CanonicalizeURI != nil {
		eff.CanonicalizeURI = *pc.CanonicalizeURI
	}
	if pc.CompressionLevels != nil {
		eff.CompressionLevels = pc.CompressionLevels
	}
	if pc.Precompressed != nil {
		eff.Precompressed = pc.Precompressed
	}
	if pc.LogFile != nil {
		eff.LogFile = *pc.LogFile
	}
	if pc.LogFormat != nil {
		eff.LogFormat = pc.LogFormat
	}
	if pc.StaticResponse != nil {
		eff.StaticResponse = pc.StaticResponse
	}
	if pc.RewriteRules != nil {
		eff.Rules = rules
	}

	return &eff
}
