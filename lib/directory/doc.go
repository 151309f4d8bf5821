// Package directory implements the NodeDirectory: the registry relays publish
// their public key and address to, and clients read circuits from.
//
// Directory is the in-process registry. Node serves it over JSON-RPC, and
// Remote is the client other nodes use to reach it. Private keys never pass
// through the directory.
package directory
