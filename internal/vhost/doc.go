// Package vhost compiles the virtual host configuration into an
// immutable lookup tree and resolves requests against it.
//
// A tree is built once per configuration load. Resolution selects a
// virtual host by hostname and listener port, then descends the host's
// subpath tree to find the most specific configuration node for the
// request path. Trees are never mutated after Build returns, so a tree
// can be shared by any number of concurrent readers; reloads build a
// fresh tree and swap an atomic pointer.
package vhost
