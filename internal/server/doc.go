// Package server hosts the Fiber HTTP service exposing the disk cache over a
// small object API: GET/HEAD/DELETE /object resolve a url query parameter
// against the cache facade (fetch-on-miss included), while /-/ prefixed
// diagnostics routes report health and trigger manual purges. The package
// attaches request-ID and recover middlewares and keeps exports narrow so the
// CLI entrypoint can wire explicit dependencies.
package server
