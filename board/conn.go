// Package board implements the room-scoped session and broadcast
// engine behind the collaborative card wall: room membership, fan-out
// of normalized board mutations, revision snapshots, and the
// export/import encoders.
package board

// Message is the envelope exchanged with clients over the per-socket
// message channel.
type Message struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Conn is an already-established, identified client connection. The
// engine never dials or authenticates; the transport hands it
// connections and takes them away again.
type Conn interface {
	// ID returns the transport-assigned session id, unique for the
	// lifetime of the process.
	ID() string
	// Send delivers a message to this connection only.
	Send(msg Message) error
}
