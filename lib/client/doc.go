// Package client implements the sending and receiving endpoint of the
// overlay.
//
// A send reads the relay list from the directory, selects a circuit, resolves
// the destination user, builds the onion and hands it to the entry relay.
// The client also answers Deliver, which exit relays call with the plaintext.
package client
