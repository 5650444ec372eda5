package rewrite

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "plain literal",
			raw:  "/static/index.html",
		},
		{
			name: "tail placeholder",
			raw:  "/assets${tail}",
		},
		{
			name: "multiple placeholders",
			raw:  "https://example.com${tail}?${query}",
		},
		{
			name:    "unterminated placeholder",
			raw:     "/assets${tail",
			wantErr: true,
		},
		{
			name:    "empty placeholder",
			raw:     "/assets${}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tpl, err := ParseTemplate(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, tpl.String())
		})
	}
}

func TestTemplate_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		fromRegex string
		wantErr   bool
	}{
		{
			name: "builtins need no regex",
			raw:  "/x${tail}?${query}&ua=${http_user_agent}",
		},
		{
			name:      "numbered capture in range",
			raw:       "/v2/${1}",
			fromRegex: `^/v1/(.*)$`,
		},
		{
			name:      "numbered capture out of range",
			raw:       "/v2/${2}",
			fromRegex: `^/v1/(.*)$`,
			wantErr:   true,
		},
		{
			name:    "numbered capture without regex",
			raw:     "/v2/${1}",
			wantErr: true,
		},
		{
			name:      "named capture exists",
			raw:       "/users/${id}",
			fromRegex: `^/u/(?P<id>[0-9]+)$`,
		},
		{
			name:      "named capture missing",
			raw:       "/users/${uid}",
			fromRegex: `^/u/(?P<id>[0-9]+)$`,
			wantErr:   true,
		},
		{
			name:    "named capture without regex",
			raw:     "/users/${id}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tpl, err := ParseTemplate(tt.raw)
			require.NoError(t, err)

			var re *regexp.Regexp
			if tt.fromRegex != "" {
				re = regexp.MustCompile(tt.fromRegex)
			}

			err = tpl.validate(re)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTemplate_Expand(t *testing.T) {
	t.Parallel()

	header := http.Header{}
	header.Set("Host", "example.com")
	header.Set("X-Forwarded-Proto", "https")

	tests := []struct {
		name string
		raw  string
		vars Vars
		want string
	}{
		{
			name: "literal only",
			raw:  "/index.html",
			vars: Vars{},
			want: "/index.html",
		},
		{
			name: "tail",
			raw:  "/assets${tail}",
			vars: Vars{Tail: "/css/site.css"},
			want: "/assets/css/site.css",
		},
		{
			name: "query",
			raw:  "/search?${query}",
			vars: Vars{Query: "q=cats"},
			want: "/search?q=cats",
		},
		{
			name: "header with underscore mapping",
			raw:  "${http_x_forwarded_proto}://host${tail}",
			vars: Vars{Tail: "/a", Header: header},
			want: "https://host/a",
		},
		{
			name: "missing header expands empty",
			raw:  "/x${http_x_missing}",
			vars: Vars{Header: header},
			want: "/x",
		},
		{
			name: "nil header expands empty",
			raw:  "/x${http_host}",
			vars: Vars{},
			want: "/x",
		},
		{
			name: "numbered captures",
			raw:  "/v2/${1}/${2}",
			vars: Vars{Captures: []string{"users", "42"}},
			want: "/v2/users/42",
		},
		{
			name: "named capture",
			raw:  "/profile/${id}",
			vars: Vars{Named: map[string]string{"id": "42"}},
			want: "/profile/42",
		},
		{
			name: "adjacent placeholders",
			raw:  "${tail}${query}",
			vars: Vars{Tail: "/a", Query: "b=1"},
			want: "/ab=1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tpl, err := ParseTemplate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tpl.Expand(tt.vars))
		})
	}
}
