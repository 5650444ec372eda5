package rewrite

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// Template is a parsed replacement string with ${...} placeholders.
//
// Recognized placeholders:
//
//	${tail}          – wildcard tail captured by the rule's from pattern
//	${query}         – the request's raw query string
//	${http_<name>}   – a request header; underscores map to dashes,
//	                   a missing header expands to the empty string
//	${1}, ${2}, ...  – positional captures from the rule's from_regex
//	${name}          – named captures from the rule's from_regex
//
// Placeholder references are validated when the rule is compiled, so
// expansion at request time cannot fail.
type Template struct {
	raw      string
	segments []segment
}

// segment is either a literal or a single placeholder.
type segment struct {
	literal     string
	placeholder string
}

// ParseTemplate parses a replacement template.
func ParseTemplate(raw string) (*Template, error) {
	var segments []segment
	rest := raw
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			break
		}
		j := strings.Index(rest[i:], "}")
		if j < 0 {
			return nil, fmt.Errorf("template %q: unterminated placeholder", raw)
		}
		name := rest[i+2 : i+j]
		if name == "" {
			return nil, fmt.Errorf("template %q: empty placeholder", raw)
		}
		if i > 0 {
			segments = append(segments, segment{literal: rest[:i]})
		}
		segments = append(segments, segment{placeholder: name})
		rest = rest[i+j+1:]
	}
	if rest != "" {
		segments = append(segments, segment{literal: rest})
	}
	return &Template{raw: raw, segments: segments}, nil
}

// validate checks that every placeholder can be resolved given the
// rule's from_regex (nil when the rule has none). A reference to a
// non-existent capture group is a configuration error.
func (t *Template) validate(fromRegex *regexp.Regexp) error {
	for _, seg := range t.segments {
		name := seg.placeholder
		if name == "" || name == "tail" || name == "query" || strings.HasPrefix(name, "http_") {
			continue
		}

		if idx, err := strconv.Atoi(name); err == nil {
			if fromRegex == nil {
				return fmt.Errorf("template %q references capture ${%s} but the rule has no from_regex", t.raw, name)
			}
			if idx < 1 || idx > fromRegex.NumSubexp() {
				return fmt.Errorf("template %q references capture ${%s}, from_regex has %d group(s)",
					t.raw, name, fromRegex.NumSubexp())
			}
			continue
		}

		if fromRegex == nil || !hasNamedGroup(fromRegex, name) {
			return fmt.Errorf("template %q references unknown capture ${%s}", t.raw, name)
		}
	}
	return nil
}

// hasNamedGroup reports whether re defines a named capture group.
func hasNamedGroup(re *regexp.Regexp, name string) bool {
	for _, n := range re.SubexpNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Vars carries the substitution values for one expansion.
type Vars struct {
	Tail     string
	Query    string
	Header   http.Header
	Captures []string
	Named    map[string]string
}

// Expand substitutes placeholders and returns the result. Validated
// templates cannot fail; unresolvable references expand to "".
func (t *Template) Expand(vars Vars) string {
	var b strings.Builder
	b.Grow(len(t.raw))
	for _, seg := range t.segments {
		if seg.placeholder == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(resolve(seg.placeholder, vars))
	}
	return b.String()
}

// resolve looks up a single placeholder value.
func resolve(name string, vars Vars) string {
	switch {
	case name == "tail":
		return vars.Tail
	case name == "query":
		return vars.Query
	case strings.HasPrefix(name, "http_"):
		if vars.Header == nil {
			return ""
		}
		header := strings.ReplaceAll(strings.TrimPrefix(name, "http_"), "_", "-")
		return vars.Header.Get(header)
	}

	if idx, err := strconv.Atoi(name); err == nil {
		if idx >= 1 && idx <= len(vars.Captures) {
			return vars.Captures[idx-1]
		}
		return ""
	}

	return vars.Named[name]
}

// String returns the template as written in configuration.
func (t *Template) String() string {
	return t.raw
}
