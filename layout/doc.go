// Package layout implements the host-application side of the trackside
// protocol: it parses the entity naming convention that encodes remote
// addresses and hardware parameters into entity names, binds typed state
// change events to outbound command frames (with echo suppression and
// rollback on send failure), and routes inbound sensor reports back into
// named sensor state.
package layout
