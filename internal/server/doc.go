// Package server hosts the Fiber HTTP service and request middleware chain:
// panic recovery, request IDs, the cache facade hook pair, and the `/-/`
// diagnostics surface (healthz, prometheus metrics). It also owns the shared
// upstream http.Client used by the miss-path forwarder. Exports stay narrow
// and dependencies explicit so main and the tests can assemble apps freely.
package server
