package server

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vyrodovalexey/avaedge/internal/vhost"
)

// precompressedCodecs maps configured extensions to the content coding
// they announce.
var precompressedCodecs = map[string]string{
	"gz":  "gzip",
	"br":  "br",
	"zst": "zstd",
}

// serveStatic serves a file from the node's root directory. The
// request path has prefix stripping and rewrites already applied.
func serveStatic(w http.ResponseWriter, r *http.Request, cfg *vhost.EffectiveConfig, reqPath string) {
	if cfg.RootDir == "" {
		writeError(w, r, http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, r, http.StatusMethodNotAllowed)
		return
	}

	canonical := canonicalPath(reqPath)
	if cfg.CanonicalizeURI && canonical != reqPath {
		writeRedirect(w, r, canonical, true)
		return
	}

	// Always resolve against the canonical form so that ".." can
	// never escape the root, canonicalization redirect or not.
	fsPath := filepath.Join(cfg.RootDir, filepath.FromSlash(canonical))

	info, err := os.Stat(fsPath)
	if err != nil {
		writeError(w, r, http.StatusNotFound)
		return
	}

	if info.IsDir() {
		serveIndex(w, r, cfg, canonical, fsPath)
		return
	}

	serveFile(w, r, cfg, fsPath)
}

// canonicalPath cleans a request path: collapsed slashes, resolved
// "." and "..", always absolute. A trailing slash survives cleaning,
// since it distinguishes directory requests.
func canonicalPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	return cleaned
}

// serveIndex tries the configured index files for a directory
// request.
func serveIndex(w http.ResponseWriter, r *http.Request, cfg *vhost.EffectiveConfig, reqPath, dir string) {
	if !strings.HasSuffix(reqPath, "/") && cfg.CanonicalizeURI {
		writeRedirect(w, r, reqPath+"/", true)
		return
	}
	for _, name := range cfg.IndexFiles {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			serveFile(w, r, cfg, candidate)
			return
		}
	}
	writeError(w, r, http.StatusNotFound)
}

// serveFile serves one regular file, preferring a pre-compressed
// sibling and falling back to on-the-fly gzip when configured.
func serveFile(w http.ResponseWriter, r *http.Request, cfg *vhost.EffectiveConfig, fsPath string) {
	accepted := acceptedEncodings(r)

	for _, ext := range cfg.Precompressed {
		coding, ok := precompressedCodecs[ext]
		if !ok || !accepted[coding] {
			continue
		}
		sibling := fsPath + "." + ext
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			w.Header().Set("Content-Encoding", coding)
			w.Header().Set("Vary", "Accept-Encoding")
			setContentType(w, fsPath)
			http.ServeFile(w, r, sibling)
			return
		}
	}

	if level, ok := cfg.CompressionLevels["gzip"]; ok && accepted["gzip"] {
		serveGzipped(w, r, fsPath, level)
		return
	}

	http.ServeFile(w, r, fsPath)
}

// serveGzipped compresses the file on the fly. Compressed responses
// have no known length, so range requests are not offered.
func serveGzipped(w http.ResponseWriter, r *http.Request, fsPath string, level int) {
	f, err := os.Open(fsPath)
	if err != nil {
		writeError(w, r, http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Vary", "Accept-Encoding")
	setContentType(w, fsPath)
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		gz = gzip.NewWriter(w)
	}
	defer gz.Close()
	_, _ = io.Copy(gz, f)
}

// setContentType sets Content-Type from the uncompressed file name.
func setContentType(w http.ResponseWriter, fsPath string) {
	if ct := mime.TypeByExtension(filepath.Ext(fsPath)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
}

// acceptedEncodings parses the Accept-Encoding header into the set of
// acceptable content codings.
func acceptedEncodings(r *http.Request) map[string]bool {
	accepted := make(map[string]bool)
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding := strings.TrimSpace(part)
		if i := strings.IndexByte(coding, ';'); i >= 0 {
			coding = strings.TrimSpace(coding[:i])
		}
		if coding != "" {
			accepted[coding] = true
		}
	}
	return accepted
}
