// Package rewrite implements the ordered URL rewrite rule engine and
// the path/query pattern matchers it is built on.
//
// Rules are compiled once at configuration load time; evaluation on
// the request path is a pure function over the compiled rules and
// cannot fail. Pattern matching is backed by Go's regexp package
// (RE2), which guarantees linear-time matching, so pathological
// patterns cannot stall request processing.
package rewrite
