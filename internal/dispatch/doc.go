// Package dispatch ties host resolution and rewrite evaluation into a
// per-request decision. The dispatcher owns the active configuration
// tree behind an atomic pointer; request handling reads the pointer
// once and works against that snapshot, so a concurrent reload never
// mixes old and new configuration within one request.
package dispatch
