package board

import "github.com/sirupsen/logrus"

// Broadcaster fans messages out to the members of the origin's room.
// Delivery order matches the order actions were applied: the
// dispatcher serializes per room and fan-out is synchronous.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers msg to every member of origin's current room
// except origin itself. A connection with no room broadcasts to
// nobody.
func (b *Broadcaster) Broadcast(origin Conn, msg Message) {
	room, ok := b.registry.CurrentRoom(origin.ID())
	if !ok {
		return
	}
	b.ToRoom(room, msg, origin.ID())
}

// ToRoom delivers msg to every member of room except the ids in
// exclude. Used directly for leave announcements, where the origin is
// already gone from the registry.
func (b *Broadcaster) ToRoom(room string, msg Message, exclude ...string) {
	for _, peer := range b.registry.Members(room, exclude...) {
		if err := peer.Send(msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"sid":    peer.ID(),
				"room":   room,
				"action": msg.Action,
			}).WithError(err).Warn("Failed to deliver broadcast")
		}
	}
}

// SendTo is the unicast echo back to a single connection, used for
// acknowledgements and export payloads.
func (b *Broadcaster) SendTo(conn Conn, msg Message) {
	if err := conn.Send(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"sid":    conn.ID(),
			"action": msg.Action,
		}).WithError(err).Warn("Failed to deliver message")
	}
}
