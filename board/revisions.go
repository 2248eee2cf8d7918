package board

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"cardwall/core"
)

// Revision handling. A revision is an immutable full-board snapshot
// keyed by a millisecond timestamp string inside the room's revision
// map. Two snapshots landing in the same millisecond keep only the
// later one; revision keys are not deduplicated.

// createRevision snapshots the current board and announces the new
// timestamp to the whole room, the invoking connection included.
func (d *Dispatcher) createRevision(ctx context.Context, conn Conn, room string, fallback core.BoardSize, log *logrus.Entry) {
	st, err := d.roomState(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read room state")
		return
	}

	revisions := st.revisions
	if revisions == nil {
		revisions = make(map[string]core.Snapshot)
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	revisions[timestamp] = st.snapshot(fallback)

	if err := d.store.SetRevisions(ctx, room, revisions); err != nil {
		log.WithError(err).Error("Failed to store revision")
		return
	}
	log.WithField("timestamp", timestamp).Debug("Revision created")
	d.announce(conn, Message{Action: "addRevision", Data: timestamp})
}

// deleteRevision removes a revision if it exists. Unknown timestamps
// are a no-op, but the outcome is announced either way so every
// client's revision list converges.
func (d *Dispatcher) deleteRevision(ctx context.Context, conn Conn, room, timestamp string, log *logrus.Entry) {
	revisions, err := d.store.GetRevisions(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read revisions")
		return
	}
	if _, ok := revisions[timestamp]; ok {
		delete(revisions, timestamp)
		if err := d.store.SetRevisions(ctx, room, revisions); err != nil {
			log.WithError(err).Error("Failed to store revisions")
			return
		}
	}
	d.announce(conn, Message{Action: "deleteRevision", Data: timestamp})
}

// exportRevision re-serializes a stored snapshot for download. An
// unknown timestamp is not a fault: the requester gets a readable
// message instead of a payload.
func (d *Dispatcher) exportRevision(ctx context.Context, conn Conn, room, timestamp string, log *logrus.Entry) {
	revisions, err := d.store.GetRevisions(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read revisions")
		return
	}
	snap, ok := revisions[timestamp]
	if !ok {
		d.cast.SendTo(conn, Message{
			Action: "message",
			Data:   "Unable to find revision " + timestamp + ".",
		})
		return
	}
	text, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Error("Failed to encode revision")
		return
	}
	d.cast.SendTo(conn, Message{Action: "export", Data: map[string]any{
		"filename": exportFilename(room, "json", timestamp),
		"text":     string(text),
	}})
}
