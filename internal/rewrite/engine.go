package rewrite

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/util"
)

// RuleType distinguishes internal rewrites from client-visible
// redirects.
type RuleType int

const (
	// Internal rewrites the path before further processing without the
	// client seeing the change.
	Internal RuleType = iota
	// Redirect responds with 307 Temporary Redirect.
	Redirect
	// Permanent responds with 308 Permanent Redirect.
	Permanent
)

// String returns the configuration spelling of the rule type.
func (t RuleType) String() string {
	switch t {
	case Redirect:
		return "redirect"
	case Permanent:
		return "permanent"
	default:
		return "internal"
	}
}

// Rule is a single compiled rewrite rule. All conditions present on
// the rule must hold for it to match.
type Rule struct {
	pattern   *PathPattern
	fromRegex *regexp.Regexp
	query     *QueryPredicate
	to        *Template
	ruleType  RuleType
}

// RuleSet is an ordered list of compiled rules. Evaluation walks the
// rules in declaration order and stops at the first match.
type RuleSet struct {
	rules []Rule
}

// Compile compiles configured rewrite rules into an evaluable set.
// Pattern syntax, regular expressions, and template capture references
// are all checked here, so a compiled set cannot fail at request time.
func Compile(rules []config.RewriteRule) (*RuleSet, error) {
	compiled := make([]Rule, 0, len(rules))
	for i, rc := range rules {
		r, err := compileRule(rc)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(
				fmt.Sprintf("rewrite_rules[%d]", i), "invalid rewrite rule", err)
		}
		compiled = append(compiled, r)
	}
	return &RuleSet{rules: compiled}, nil
}

// compileRule compiles one rule.
func compileRule(rc config.RewriteRule) (Rule, error) {
	var r Rule

	if rc.From == "" && rc.FromRegex == "" {
		return r, fmt.Errorf("one of from or from_regex is required")
	}

	if rc.From != "" {
		pattern, err := ParsePathPattern(rc.From)
		if err != nil {
			return r, err
		}
		r.pattern = pattern
	}

	if rc.FromRegex != "" {
		re, err := regexp.Compile(rc.FromRegex)
		if err != nil {
			return r, fmt.Errorf("from_regex %q: %w", rc.FromRegex, err)
		}
		r.fromRegex = re
	}

	if rc.QueryRegex != "" {
		pred, err := ParseQueryPredicate(rc.QueryRegex)
		if err != nil {
			return r, err
		}
		r.query = pred
	}

	to, err := ParseTemplate(rc.To)
	if err != nil {
		return r, err
	}
	if err := to.validate(r.fromRegex); err != nil {
		return r, err
	}
	r.to = to

	switch rc.Type {
	case "":
		r.ruleType = Internal
	case "redirect":
		r.ruleType = Redirect
	case "permanent":
		r.ruleType = Permanent
	default:
		return r, fmt.Errorf("invalid type %q", rc.Type)
	}

	return r, nil
}

// OutcomeKind classifies what a rule evaluation decided.
type OutcomeKind int

const (
	// Unchanged means no rule matched; the path passes through as is.
	Unchanged OutcomeKind = iota
	// Rewritten means an internal rule produced a new path.
	Rewritten
	// RedirectOut means a redirect rule matched and the client should
	// be sent to Location.
	RedirectOut
)

// Outcome is the result of evaluating a rule set against one request.
type Outcome struct {
	Kind OutcomeKind
	// Path is the rewritten path for Rewritten outcomes, otherwise the
	// input path.
	Path string
	// Location is the redirect target for RedirectOut outcomes.
	Location string
	// Permanent distinguishes 308 from 307 for RedirectOut outcomes.
	Permanent bool
	// Rule is the index of the matched rule, -1 when none matched.
	Rule int
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Apply evaluates the rules against a request path in declaration
// order. The first matching rule wins; later rules are not consulted.
// path is the effective request path, query the raw query string, and
// header the request headers for ${http_*} expansion.
func (s *RuleSet) Apply(path, query string, header http.Header) Outcome {
	if s == nil {
		return Outcome{Kind: Unchanged, Path: path, Rule: -1}
	}

	for i := range s.rules {
		r := &s.rules[i]

		vars := Vars{Tail: "/", Query: query, Header: header}

		if r.pattern != nil {
			matched, tail := r.pattern.Match(path)
			if !matched {
				continue
			}
			vars.Tail = tail
		}

		if r.fromRegex != nil {
			m := r.fromRegex.FindStringSubmatch(path)
			if m == nil {
				continue
			}
			vars.Captures = m[1:]
			if names := r.fromRegex.SubexpNames(); len(names) > 1 {
				vars.Named = make(map[string]string)
				for gi, name := range names {
					if name != "" && gi < len(m) {
						vars.Named[name] = m[gi]
					}
				}
			}
			if r.pattern == nil {
				vars.Tail = path
			}
		}

		if r.query != nil && !r.query.Match(query) {
			continue
		}

		target := r.to.Expand(vars)
		switch r.ruleType {
		case Internal:
			return Outcome{Kind: Rewritten, Path: target, Rule: i}
		case Redirect:
			return Outcome{Kind: RedirectOut, Path: path, Location: target, Rule: i}
		default:
			return Outcome{Kind: RedirectOut, Path: path, Location: target, Permanent: true, Rule: i}
		}
	}

	return Outcome{Kind: Unchanged, Path: path, Rule: -1}
}
