// Package link maintains framed, heartbeat-monitored TCP channels between
// the layout host and its trackside peripherals.
//
// A Manager owns exactly one endpoint (host:port) and at most one live
// socket at a time. It connects (active mode) or accepts (passive mode),
// reconnects with a fixed delay after any loss, emits single-space heartbeat
// bytes during idle periods, detects silent link failure through consecutive
// read timeouts, and reassembles '|'-delimited frames out of the byte
// stream. Complete frames are handed to a FrameHandler in arrival order;
// partial frames are buffered until their delimiter arrives and discarded
// on reconnect.
package link
