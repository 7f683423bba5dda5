// Package sensor keeps the latest measurement of every mote and serves
// it to concurrent readers.
package sensor

// The registry is the single point where the parsed byte stream meets
// its consumers. Exactly one producer applies frames (serialized by the
// byte-stream source); any number of sessions read concurrently.
//
// Each sensor slot carries its own short-held mutex and a broadcast
// channel that is closed and replaced on every update. A session that
// finds its cache up to date releases its own lock and waits on that
// channel, then rechecks the staleness predicate. The producer path
// never blocks on consumers.
