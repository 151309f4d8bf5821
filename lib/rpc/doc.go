// Package rpc is the node-to-node transport: JSON-RPC 2.0 over HTTP.
//
// Server exposes a MethodRegistry at /jsonrpc, a liveness route at /status
// and, when configured, Prometheus metrics at /metrics. Caller invokes a
// remote method with a bounded timeout and maps JSON-RPC error codes back to
// the sentinels of package protocol.
package rpc
