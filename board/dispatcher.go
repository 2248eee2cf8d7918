package board

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"cardwall/core"
)

// Dispatcher decodes inbound envelopes, validates and normalizes
// them, applies mutations to the store and fans the normalized
// message out to the sender's room. Actions touching the same room
// are serialized through a per-room lock; unrelated rooms proceed
// concurrently.
type Dispatcher struct {
	store    core.Store
	registry *Registry
	cast     *Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(store core.Store, registry *Registry, cast *Broadcaster) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		cast:     cast,
		locks:    make(map[string]*sync.Mutex),
	}
}

// HandleMessage processes one inbound {action, data} envelope.
// Malformed and unrecognized messages are dropped with a debug trace;
// storage failures abandon the action without any partial broadcast.
func (d *Dispatcher) HandleMessage(ctx context.Context, conn Conn, raw any) {
	act, err := decodeAction(raw)
	if err != nil {
		logrus.WithField("sid", conn.ID()).WithError(err).Debug("Dropping message")
		return
	}

	if a, ok := act.(actJoinRoom); ok {
		d.joinRoom(conn, a.Room)
		return
	}

	// Everything else is room-scoped: a connection that has not joined
	// yet has nothing to act on.
	room, ok := d.registry.CurrentRoom(conn.ID())
	if !ok {
		logrus.WithFields(logrus.Fields{
			"sid":    conn.ID(),
			"action": act.name(),
		}).Debug("Dropping action from connection without a room")
		return
	}

	lock := d.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"sid":    conn.ID(),
		"room":   room,
		"action": act.name(),
	})

	switch a := act.(type) {
	case actInitializeMe:
		d.initClient(ctx, conn, room, log)

	case actPasswordValidated:
		d.pushActiveState(ctx, conn, room, log)

	case actSetPassword:
		if err := d.store.SetPassword(ctx, room, a.Password); err != nil {
			log.WithError(err).Error("Failed to set password")
		}

	case actClearPassword:
		if err := d.store.ClearPassword(ctx, room); err != nil {
			log.WithError(err).Error("Failed to clear password")
		}

	case actMoveCard:
		if err := d.store.CardSetXY(ctx, room, a.ID, a.Left, a.Top); err != nil {
			log.WithError(err).Error("Failed to move card")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "moveCard", Data: map[string]any{
			"id": a.ID,
			"position": map[string]any{
				"left": a.Left,
				"top":  a.Top,
			},
		}})

	case actCreateCard:
		if err := d.store.CreateCard(ctx, room, a.Card.ID, a.Card); err != nil {
			log.WithError(err).Error("Failed to create card")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "createCard", Data: map[string]any{
			"id":     a.Card.ID,
			"text":   a.Card.Text,
			"x":      a.Card.X,
			"y":      a.Card.Y,
			"rot":    a.Card.Rot,
			"colour": a.Card.Colour,
		}})

	case actEditCard:
		if err := d.store.CardEdit(ctx, room, a.ID, a.Value); err != nil {
			log.WithError(err).Error("Failed to edit card")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "editCard", Data: map[string]any{
			"id":    a.ID,
			"value": a.Value,
		}})

	case actDeleteCard:
		if err := d.store.DeleteCard(ctx, room, a.ID); err != nil {
			log.WithError(err).Error("Failed to delete card")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "deleteCard", Data: map[string]any{"id": a.ID}})

	case actCreateColumn:
		if err := d.store.CreateColumn(ctx, room, a.Name); err != nil {
			log.WithError(err).Error("Failed to create column")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "createColumn", Data: a.Name})

	case actDeleteColumn:
		if err := d.store.DeleteColumn(ctx, room); err != nil {
			log.WithError(err).Error("Failed to delete column")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "deleteColumn"})

	case actUpdateColumns:
		if err := d.store.SetColumns(ctx, room, a.Columns); err != nil {
			log.WithError(err).Error("Failed to update columns")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "updateColumns", Data: a.Columns})

	case actChangeTheme:
		if err := d.store.SetTheme(ctx, room, a.Theme); err != nil {
			log.WithError(err).Error("Failed to change theme")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "changeTheme", Data: a.Theme})

	case actChangeFont:
		if err := d.store.SetFont(ctx, room, a.Font); err != nil {
			log.WithError(err).Error("Failed to change font")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "changeFont", Data: a.Font})

	case actSetUserName:
		d.registry.SetName(conn.ID(), a.Name)
		d.cast.Broadcast(conn, Message{Action: "nameChangeAnnounce", Data: RosterEntry{
			SID:      conn.ID(),
			UserName: a.Name,
		}})

	case actAddSticker:
		if err := d.store.AddSticker(ctx, room, a.CardID, a.Sticker); err != nil {
			log.WithError(err).Error("Failed to add sticker")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "addSticker", Data: map[string]any{
			"cardId":    a.CardID,
			"stickerId": a.Sticker,
		}})

	case actSetBoardSize:
		if err := d.store.SetBoardSize(ctx, room, a.Size); err != nil {
			log.WithError(err).Error("Failed to set board size")
			return
		}
		d.cast.Broadcast(conn, Message{Action: "setBoardSize", Data: a.Size})

	case actExportTxt:
		d.exportBoard(ctx, conn, room, "txt", a.Boundary, log)
	case actExportCsv:
		d.exportBoard(ctx, conn, room, "csv", a.Boundary, log)
	case actExportJSON:
		d.exportJSON(ctx, conn, room, a.Fallback, log)
	case actImportJSON:
		d.importJSON(ctx, conn, room, a.Payload, log)

	case actCreateRevision:
		d.createRevision(ctx, conn, room, a.Fallback, log)
	case actDeleteRevision:
		d.deleteRevision(ctx, conn, room, a.Timestamp, log)
	case actExportRevision:
		d.exportRevision(ctx, conn, room, a.Timestamp, log)
	}
}

// Disconnect is the transport's notification that a connection is
// gone: former room peers get a leave announcement and the display
// name mapping is purged.
func (d *Dispatcher) Disconnect(conn Conn) {
	room, ok := d.registry.Forget(conn.ID())
	if !ok {
		return
	}
	logrus.WithFields(logrus.Fields{"sid": conn.ID(), "room": room}).Debug("Connection left")
	d.cast.ToRoom(room, Message{Action: "leave-announce", Data: map[string]any{"sid": conn.ID()}})
}

func (d *Dispatcher) joinRoom(conn Conn, room string) {
	d.registry.Join(conn, room)
	logrus.WithFields(logrus.Fields{"sid": conn.ID(), "room": room}).Debug("Connection joined room")
	d.cast.Broadcast(conn, Message{Action: "join-announce", Data: RosterEntry{
		SID:      conn.ID(),
		UserName: d.registry.Name(conn.ID()),
	}})
	d.cast.SendTo(conn, Message{Action: "roomAccept", Data: ""})
}

// initClient delivers the room's ambient state to a fresh connection:
// font, revision list, theme, size and columns. If the room has a
// password the client is asked for it; otherwise the card and roster
// state follows immediately.
func (d *Dispatcher) initClient(ctx context.Context, conn Conn, room string, log *logrus.Entry) {
	st, err := d.roomState(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read room state")
		return
	}

	font := core.DefaultFont
	if st.font != nil {
		font = *st.font
	}
	d.cast.SendTo(conn, Message{Action: "changeFont", Data: font})

	timestamps := make([]string, 0, len(st.revisions))
	for ts := range st.revisions {
		timestamps = append(timestamps, ts)
	}
	sort.Strings(timestamps)
	d.cast.SendTo(conn, Message{Action: "initRevisions", Data: timestamps})

	theme := st.theme
	if theme == "" {
		theme = core.ThemeBigCards
	}
	d.cast.SendTo(conn, Message{Action: "changeTheme", Data: theme})

	if st.size != nil {
		d.cast.SendTo(conn, Message{Action: "setBoardSize", Data: *st.size})
	}

	columns := st.columns
	if columns == nil {
		columns = []string{}
	}
	d.cast.SendTo(conn, Message{Action: "initColumns", Data: columns})

	if st.password != "" {
		d.cast.SendTo(conn, Message{Action: "requirePassword", Data: st.password})
		return
	}
	d.pushActiveStateFrom(conn, st)
}

// pushActiveState delivers cards and roster, completing
// initialization (directly when no password is set, or after the
// client reports the password validated).
func (d *Dispatcher) pushActiveState(ctx context.Context, conn Conn, room string, log *logrus.Entry) {
	st, err := d.roomState(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read room state")
		return
	}
	d.pushActiveStateFrom(conn, st)
}

func (d *Dispatcher) pushActiveStateFrom(conn Conn, st *roomState) {
	cards := st.cards
	if cards == nil {
		cards = []core.Card{}
	}
	d.cast.SendTo(conn, Message{Action: "initCards", Data: cards})
	d.cast.SendTo(conn, Message{Action: "initialUsers", Data: d.registry.Roster(st.room, conn.ID())})
}

func (d *Dispatcher) exportBoard(ctx context.Context, conn Conn, room, format string, boundary float64, log *logrus.Entry) {
	st, err := d.roomState(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read room state")
		return
	}
	var text string
	if format == "csv" {
		text = ExportCsv(st.cards, st.columns, boundary)
	} else {
		text = ExportTxt(st.cards, st.columns, boundary)
	}
	d.cast.SendTo(conn, Message{Action: "export", Data: map[string]any{
		"filename": exportFilename(room, format),
		"text":     text,
	}})
}

func (d *Dispatcher) exportJSON(ctx context.Context, conn Conn, room string, fallback core.BoardSize, log *logrus.Entry) {
	st, err := d.roomState(ctx, room)
	if err != nil {
		log.WithError(err).Error("Failed to read room state")
		return
	}
	text, err := json.Marshal(st.snapshot(fallback))
	if err != nil {
		log.WithError(err).Error("Failed to encode board")
		return
	}
	d.cast.SendTo(conn, Message{Action: "export", Data: map[string]any{
		"filename": exportFilename(room, "json"),
		"text":     string(text),
	}})
}

// importJSON replaces the room's board with the payload's contents.
// Each successfully replaced part is pushed to the importer and
// broadcast to peers as the matching init/update action.
func (d *Dispatcher) importJSON(ctx context.Context, conn Conn, room string, payload map[string]any, log *logrus.Entry) {
	if err := d.store.ClearRoom(ctx, room); err != nil {
		log.WithError(err).Error("Failed to clear room for import")
		return
	}

	cards := parseImportCards(payload["cards"])
	for _, card := range cards {
		if err := d.store.CreateCard(ctx, room, card.ID, card); err != nil {
			log.WithError(err).Error("Failed to import card")
			return
		}
	}
	d.announce(conn, Message{Action: "initCards", Data: cards})

	columns := parseImportColumns(payload["columns"])
	for _, column := range columns {
		if err := d.store.CreateColumn(ctx, room, column); err != nil {
			log.WithError(err).Error("Failed to import column")
			return
		}
	}
	d.announce(conn, Message{Action: "initColumns", Data: columns})

	if size, ok := asSize(payload["size"]); ok {
		if err := d.store.SetBoardSize(ctx, room, size); err != nil {
			log.WithError(err).Error("Failed to import board size")
			return
		}
		d.announce(conn, Message{Action: "setBoardSize", Data: size})
	}

	if theme, _ := asText(payload["theme"]); theme == core.ThemeSmallCards || theme == core.ThemeBigCards {
		if err := d.store.SetTheme(ctx, room, theme); err != nil {
			log.WithError(err).Error("Failed to import theme")
			return
		}
		d.announce(conn, Message{Action: "changeTheme", Data: theme})
	}
}

// announce delivers a message to the whole room including the
// originator; revision and import outcomes are echoed back unlike
// ordinary mutations.
func (d *Dispatcher) announce(conn Conn, msg Message) {
	d.cast.Broadcast(conn, msg)
	d.cast.SendTo(conn, msg)
}

func (d *Dispatcher) roomLock(room string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[room]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[room] = lock
	}
	return lock
}

// roomState is the full stored state of a room, read in one
// concurrent batch.
type roomState struct {
	room      string
	cards     []core.Card
	columns   []string
	theme     string
	font      *core.Font
	size      *core.BoardSize
	password  string
	revisions map[string]core.Snapshot
}

// snapshot projects the state into a revision/export payload,
// substituting the documented defaults. Size has no stored default;
// fallback comes from the requesting client.
func (st *roomState) snapshot(fallback core.BoardSize) core.Snapshot {
	snap := core.Snapshot{
		Cards:   st.cards,
		Columns: st.columns,
		Theme:   st.theme,
		Size:    fallback,
	}
	if snap.Cards == nil {
		snap.Cards = []core.Card{}
	}
	if snap.Columns == nil {
		snap.Columns = []string{}
	}
	if snap.Theme == "" {
		snap.Theme = core.ThemeBigCards
	}
	if st.size != nil {
		snap.Size = *st.size
	}
	return snap
}

func (d *Dispatcher) roomState(ctx context.Context, room string) (*roomState, error) {
	st := &roomState{room: room}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	read := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}()
	}

	read(func() (err error) { st.cards, err = d.store.GetAllCards(ctx, room); return })
	read(func() (err error) { st.columns, err = d.store.GetAllColumns(ctx, room); return })
	read(func() (err error) { st.theme, err = d.store.GetTheme(ctx, room); return })
	read(func() (err error) { st.font, err = d.store.GetFont(ctx, room); return })
	read(func() (err error) { st.size, err = d.store.GetBoardSize(ctx, room); return })
	read(func() (err error) { st.password, err = d.store.GetPassword(ctx, room); return })
	read(func() (err error) { st.revisions, err = d.store.GetRevisions(ctx, room); return })

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return st, nil
}
