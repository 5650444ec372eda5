package server

import (
	"fmt"
	"net/http"
	"strconv"
)

// responseText produces the body of a standard response page for a
// status code, e.g. "404 Not Found".
func responseText(status int) string {
	reason := http.StatusText(status)
	return fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>%d %s</title></head><body><center><h1>%d %s</h1></center></body></html>",
		status, reason, status, reason,
	)
}

// writeStandardResponse writes a standard page for the status code,
// optionally with a Location header. HEAD requests get the headers
// only.
func writeStandardResponse(w http.ResponseWriter, r *http.Request, status int, location string) {
	text := responseText(status)
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.Header().Set("Content-Type", "text/html")
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(text))
	}
}

// writeError writes a standard error page.
func writeError(w http.ResponseWriter, r *http.Request, status int) {
	writeStandardResponse(w, r, status, "")
}

// writeRedirect writes a redirect with the standard page body. The
// 307 and 308 status codes preserve the request method across the
// redirect.
func writeRedirect(w http.ResponseWriter, r *http.Request, location string, permanent bool) {
	status := http.StatusTemporaryRedirect
	if permanent {
		status = http.StatusPermanentRedirect
	}
	writeStandardResponse(w, r, status, location)
}
