// Package protocol implements the Lunix wire protocol.
package protocol

// The Lunix protocol is spoken by the radio-to-serial bridge and carries
// mote reports as delimited, byte-stuffed frames over a peer-to-peer
// byte stream (e.g. serial port or a TCP tunnel to it).
//
// The link is assumed reliable and in-order but the radio side is lossy,
// so the protocol is deliberately tolerant: a malformed or truncated
// frame is dropped silently and the parser resynchronizes on the next
// frame delimiter. The carried CRC is not verified.
//
// Producer: radio-to-serial bridge
// Consumer: sensor registry
