package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		wantErr  bool
		wildcard bool
		prefix   string
	}{
		{
			name:    "literal path",
			pattern: "/file.txt",
			prefix:  "/file.txt",
		},
		{
			name:     "wildcard path",
			pattern:  "/images/*",
			wildcard: true,
			prefix:   "/images",
		},
		{
			name:     "root wildcard",
			pattern:  "/*",
			wildcard: true,
			prefix:   "",
		},
		{
			name:    "empty pattern",
			pattern: "",
			wantErr: true,
		},
		{
			name:    "relative path",
			pattern: "images/*",
			wantErr: true,
		},
		{
			name:    "wildcard in the middle",
			pattern: "/images/*/thumb",
			wantErr: true,
		},
		{
			name:    "bare asterisk segment",
			pattern: "/images/*extra",
			wantErr: true,
		},
		{
			name:    "two wildcards",
			pattern: "/a/*/b/*",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := ParsePathPattern(tt.pattern)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wildcard, p.Wildcard())
			assert.Equal(t, tt.prefix, p.Prefix())
			assert.Equal(t, tt.pattern, p.String())
		})
	}
}

func TestPathPattern_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		matched bool
		tail    string
	}{
		{
			name:    "literal exact match",
			pattern: "/file.txt",
			path:    "/file.txt",
			matched: true,
			tail:    "/",
		},
		{
			name:    "literal does not match deeper path",
			pattern: "/file.txt",
			path:    "/file.txt/extra",
		},
		{
			name:    "literal does not match prefix",
			pattern: "/file.txt",
			path:    "/file",
		},
		{
			name:    "wildcard matches bare prefix",
			pattern: "/images/*",
			path:    "/images",
			matched: true,
			tail:    "/",
		},
		{
			name:    "wildcard matches prefix with trailing slash",
			pattern: "/images/*",
			path:    "/images/",
			matched: true,
			tail:    "/",
		},
		{
			name:    "wildcard matches deeper path",
			pattern: "/images/*",
			path:    "/images/cat.jpg",
			matched: true,
			tail:    "/cat.jpg",
		},
		{
			name:    "wildcard captures multi segment tail",
			pattern: "/images/*",
			path:    "/images/animals/cat.jpg",
			matched: true,
			tail:    "/animals/cat.jpg",
		},
		{
			name:    "wildcard does not match sibling",
			pattern: "/images/*",
			path:    "/imagesx/cat.jpg",
		},
		{
			name:    "root wildcard matches root",
			pattern: "/*",
			path:    "/",
			matched: true,
			tail:    "/",
		},
		{
			name:    "root wildcard matches everything",
			pattern: "/*",
			path:    "/anything/else",
			matched: true,
			tail:    "/anything/else",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := ParsePathPattern(tt.pattern)
			require.NoError(t, err)

			matched, tail := p.Match(tt.path)
			assert.Equal(t, tt.matched, matched)
			assert.Equal(t, tt.tail, tail)
		})
	}
}

func TestParseQueryPredicate(t *testing.T) {
	t.Parallel()

	t.Run("invalid regex", func(t *testing.T) {
		t.Parallel()

		_, err := ParseQueryPredicate("[unclosed")
		require.Error(t, err)
	})

	t.Run("invalid negated regex", func(t *testing.T) {
		t.Parallel()

		_, err := ParseQueryPredicate("![unclosed")
		require.Error(t, err)
	})
}

func TestQueryPredicate_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		expr  string
		query string
		want  bool
	}{
		{
			name:  "plain match",
			expr:  "debug=1",
			query: "debug=1&v=2",
			want:  true,
		},
		{
			name:  "plain no match",
			expr:  "debug=1",
			query: "v=2",
		},
		{
			name:  "plain against empty query",
			expr:  "debug=1",
			query: "",
		},
		{
			name:  "negated no match succeeds",
			expr:  "!debug=1",
			query: "v=2",
			want:  true,
		},
		{
			name:  "negated match fails",
			expr:  "!debug=1",
			query: "debug=1",
		},
		{
			name:  "negated against empty query succeeds",
			expr:  "!debug=1",
			query: "",
			want:  true,
		},
		{
			name:  "anchored expression",
			expr:  "^utm_",
			query: "utm_source=mail",
			want:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q, err := ParseQueryPredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Match(tt.query))
		})
	}
}
