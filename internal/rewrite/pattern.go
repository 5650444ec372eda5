package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// PathPattern matches a request path against a literal key, optionally
// with a trailing "/*" wildcard.
//
// A literal pattern ("/file.txt") matches exactly that path. A
// wildcard pattern ("/images/*") matches the bare prefix ("/images"),
// the prefix with a trailing slash, and any deeper path; the captured
// tail is always slash-prefixed, so "/images" and "/images/" both
// yield the tail "/", and "/images/cat.jpg" yields "/cat.jpg".
type PathPattern struct {
	raw      string
	prefix   string
	wildcard bool
}

// ParsePathPattern parses a literal-or-wildcard path pattern.
func ParsePathPattern(pattern string) (*PathPattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty path pattern")
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("path pattern %q must start with /", pattern)
	}

	if n := strings.Count(pattern, "*"); n > 0 {
		if n > 1 || !strings.HasSuffix(pattern, "/*") {
			return nil, fmt.Errorf("path pattern %q: wildcard is only allowed as a trailing /*", pattern)
		}
		return &PathPattern{
			raw:      pattern,
			prefix:   strings.TrimSuffix(pattern, "/*"),
			wildcard: true,
		}, nil
	}

	return &PathPattern{raw: pattern, prefix: pattern}, nil
}

// Match reports whether path matches the pattern and returns the
// wildcard tail. The tail of a literal or bare-prefix match is "/".
func (p *PathPattern) Match(path string) (matched bool, tail string) {
	if !p.wildcard {
		if path == p.raw {
			return true, "/"
		}
		return false, ""
	}

	if path == p.prefix {
		return true, "/"
	}
	if strings.HasPrefix(path, p.prefix+"/") {
		return true, path[len(p.prefix):]
	}
	return false, ""
}

// Wildcard reports whether the pattern carries a trailing wildcard.
func (p *PathPattern) Wildcard() bool {
	return p.wildcard
}

// Prefix returns the literal prefix of the pattern (the whole pattern
// for literal keys).
func (p *PathPattern) Prefix() string {
	return p.prefix
}

// String returns the pattern as written in configuration.
func (p *PathPattern) String() string {
	return p.raw
}

// QueryPredicate matches a raw query string against a regular
// expression, optionally negated. A negated predicate matches exactly
// when the expression does not match, including against the empty
// query string.
type QueryPredicate struct {
	raw    string
	regex  *regexp.Regexp
	negate bool
}

// ParseQueryPredicate parses a query predicate. A leading "!" negates
// the underlying expression.
func ParseQueryPredicate(expr string) (*QueryPredicate, error) {
	pattern, negate := strings.CutPrefix(expr, "!")
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("query pattern %q: %w", pattern, err)
	}
	return &QueryPredicate{raw: expr, regex: regex, negate: negate}, nil
}

// Match evaluates the predicate against a raw query string.
func (q *QueryPredicate) Match(query string) bool {
	return q.regex.MatchString(query) != q.negate
}

// String returns the predicate as written in configuration.
func (q *QueryPredicate) String() string {
	return q.raw
}
