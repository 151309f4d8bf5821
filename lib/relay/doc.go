// Package relay implements an onion relay: it publishes its public key and
// address to the directory, then answers Deliver by removing one layer and
// forwarding what is left to the address that layer names.
//
// A relay never learns more than the previous and next hop of a message.
// Forwards are bounded by Config.ForwardTimeout and never retried. A failed
// forward is logged and counted at the relay that attempted it; the previous
// hop only learns that its delivery was accepted.
package relay
