// Package network runs a complete onion-routing network inside one process:
// a directory node, a set of relays and a set of clients, each serving
// JSON-RPC on its own loopback port. It backs the "network" command and the
// end-to-end tests.
package network
