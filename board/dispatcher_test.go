package board

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"cardwall/core"
	"cardwall/stores/memory"
)

func newTestDispatcher() (*Dispatcher, core.Store) {
	store := memory.NewStore()
	registry := NewRegistry()
	return NewDispatcher(store, registry, NewBroadcaster(registry)), store
}

func env(action string, data any) map[string]any {
	return map[string]any{"action": action, "data": data}
}

// join wires a connection into a room through the real joinRoom
// action and discards the announcements it produced.
func join(t *testing.T, d *Dispatcher, conn *fakeConn, room string) {
	t.Helper()
	d.HandleMessage(context.Background(), conn, env("joinRoom", room))
	if _, ok := d.registry.CurrentRoom(conn.ID()); !ok {
		t.Fatalf("connection %s failed to join %s", conn.ID(), room)
	}
	conn.reset()
}

func TestJoinRoomAcceptsAndAnnounces(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")

	d.HandleMessage(context.Background(), b, env("joinRoom", "/abc"))

	if len(b.received("roomAccept")) != 1 {
		t.Errorf("joiner did not receive roomAccept, got %v", b.actions())
	}
	announces := a.received("join-announce")
	if len(announces) != 1 {
		t.Fatalf("peer received %d join announcements, want 1", len(announces))
	}
	entry, ok := announces[0].Data.(RosterEntry)
	if !ok || entry.SID != "b" {
		t.Errorf("join-announce data = %+v, want sid=b", announces[0].Data)
	}
}

func TestMoveCardBroadcastsWithoutEcho(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	d.HandleMessage(context.Background(), a, env("createCard", map[string]any{
		"id": "c1", "text": "hi", "x": 10.0, "y": 5.0, "rot": 0.0, "colour": "yellow",
	}))
	d.HandleMessage(context.Background(), a, env("moveCard", map[string]any{
		"id":       "c1",
		"position": map[string]any{"left": 1.0, "top": 2.0},
	}))

	moves := b.received("moveCard")
	if len(moves) != 1 {
		t.Fatalf("peer received %d moveCard broadcasts, want 1 (got %v)", len(moves), b.actions())
	}
	data := moves[0].Data.(map[string]any)
	if data["id"] != "c1" {
		t.Errorf("broadcast id = %v, want c1", data["id"])
	}
	pos := data["position"].(map[string]any)
	if pos["left"] != 1.0 || pos["top"] != 2.0 {
		t.Errorf("broadcast position = %v, want left=1 top=2", pos)
	}

	if len(a.received("moveCard")) != 0 {
		t.Error("sender received an echo of its own moveCard")
	}

	cards, err := store.GetAllCards(context.Background(), "/abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 || cards[0].X != 1 || cards[0].Y != 2 {
		t.Errorf("stored card = %+v, want position (1, 2)", cards)
	}
}

func TestActionWithoutRoomIsDropped(t *testing.T) {
	d, store := newTestDispatcher()
	stranger := &fakeConn{id: "a"}

	d.HandleMessage(context.Background(), stranger, env("createCard", map[string]any{
		"id": "c1", "text": "hi", "x": 1.0, "y": 1.0, "rot": 0.0, "colour": "blue",
	}))

	if len(stranger.msgs) != 0 {
		t.Errorf("roomless sender received %v", stranger.actions())
	}
	cards, _ := store.GetAllCards(context.Background(), "/abc")
	if len(cards) != 0 {
		t.Error("card stored despite sender having no room")
	}
}

func TestMalformedActionsAreDropped(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	for _, raw := range []any{
		env("updateColumns", "not a sequence"),
		env("moveCard", map[string]any{"id": "c1"}),
		env("createCard", map[string]any{"id": "c1", "text": "no coords"}),
		env("somethingInvented", nil),
		map[string]any{"data": "no action"},
		"not an envelope",
	} {
		d.HandleMessage(context.Background(), a, raw)
	}

	if len(b.msgs) != 0 {
		t.Errorf("peer received %v from malformed input", b.actions())
	}
	columns, _ := store.GetAllColumns(context.Background(), "/abc")
	if len(columns) != 0 {
		t.Error("malformed updateColumns reached the store")
	}
}

func TestInitializeMeDefaults(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	join(t, d, a, "/fresh")

	d.HandleMessage(context.Background(), a, env("initializeMe", nil))

	fonts := a.received("changeFont")
	if len(fonts) != 1 {
		t.Fatalf("expected one changeFont push, got %v", a.actions())
	}
	if font := fonts[0].Data.(core.Font); font.Family != core.DefaultFont.Family {
		t.Errorf("default font = %+v", font)
	}
	themes := a.received("changeTheme")
	if len(themes) != 1 || themes[0].Data != core.ThemeBigCards {
		t.Errorf("default theme push = %v, want bigcards", themes)
	}
	if len(a.received("setBoardSize")) != 0 {
		t.Error("setBoardSize pushed for a room with no stored size")
	}
	if len(a.received("requirePassword")) != 0 {
		t.Error("password requested for an unprotected room")
	}
	if len(a.received("initCards")) != 1 {
		t.Errorf("expected initCards for an unprotected room, got %v", a.actions())
	}
	if len(a.received("initialUsers")) != 1 {
		t.Errorf("expected initialUsers, got %v", a.actions())
	}
}

func TestPasswordGatesActiveState(t *testing.T) {
	d, _ := newTestDispatcher()
	owner := &fakeConn{id: "a"}
	join(t, d, owner, "/locked")
	d.HandleMessage(context.Background(), owner, env("setPassword", "sesame"))

	visitor := &fakeConn{id: "b"}
	join(t, d, visitor, "/locked")
	d.HandleMessage(context.Background(), visitor, env("initializeMe", nil))

	if len(visitor.received("requirePassword")) != 1 {
		t.Fatalf("visitor was not asked for the password: %v", visitor.actions())
	}
	if len(visitor.received("initCards")) != 0 {
		t.Error("cards pushed before password validation")
	}

	d.HandleMessage(context.Background(), visitor, env("passwordValidated", nil))
	if len(visitor.received("initCards")) != 1 {
		t.Errorf("cards not pushed after password validation: %v", visitor.actions())
	}
	if len(visitor.received("initialUsers")) != 1 {
		t.Errorf("roster not pushed after password validation: %v", visitor.actions())
	}
}

func TestSetPasswordDoesNotBroadcast(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	d.HandleMessage(context.Background(), a, env("setPassword", "sesame"))
	d.HandleMessage(context.Background(), a, env("clearPassword", nil))

	if len(b.msgs) != 0 {
		t.Errorf("password actions reached peers: %v", b.actions())
	}
	pw, _ := store.GetPassword(context.Background(), "/abc")
	if pw != "" {
		t.Errorf("password = %q after clear, want empty", pw)
	}
}

func TestSetUserNameAnnouncesToPeers(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	d.HandleMessage(context.Background(), a, env("setUserName", "ada"))

	announces := b.received("nameChangeAnnounce")
	if len(announces) != 1 {
		t.Fatalf("peer got %v, want one nameChangeAnnounce", b.actions())
	}
	entry := announces[0].Data.(RosterEntry)
	if entry.SID != "a" || entry.UserName != "ada" {
		t.Errorf("announce = %+v", entry)
	}
	if d.registry.Name("a") != "ada" {
		t.Errorf("registry name = %q, want ada", d.registry.Name("a"))
	}
}

func TestDeleteColumnOnEmptyRoom(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	d.HandleMessage(context.Background(), a, env("deleteColumn", nil))

	// The acknowledgement broadcast still goes out; nothing else does.
	if len(b.received("deleteColumn")) != 1 {
		t.Errorf("peer got %v, want the deleteColumn acknowledgement", b.actions())
	}
	columns, err := store.GetAllColumns(context.Background(), "/abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(columns) != 0 {
		t.Errorf("columns = %v after popping an empty list", columns)
	}
}

func TestDisconnectAnnouncesLeaveAndPurges(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")
	d.HandleMessage(context.Background(), b, env("setUserName", "bob"))
	a.reset()

	d.Disconnect(b)

	leaves := a.received("leave-announce")
	if len(leaves) != 1 {
		t.Fatalf("peer got %v, want one leave-announce", a.actions())
	}
	if sid := leaves[0].Data.(map[string]any)["sid"]; sid != "b" {
		t.Errorf("leave-announce sid = %v, want b", sid)
	}
	if _, ok := d.registry.CurrentRoom("b"); ok {
		t.Error("disconnected connection still has a room")
	}
	if d.registry.Name("b") != "" {
		t.Error("display name survived disconnect")
	}
}

func TestExportTxtScenario(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	join(t, d, a, "/abc")

	ctx := context.Background()
	d.HandleMessage(ctx, a, env("createColumn", "Todo"))
	d.HandleMessage(ctx, a, env("createColumn", "Done"))
	d.HandleMessage(ctx, a, env("createCard", map[string]any{
		"id": "c1", "text": "hi", "x": 10.0, "y": 5.0, "rot": 0.0, "colour": "yellow",
	}))
	d.HandleMessage(ctx, a, env("exportTxt", 300.0))

	exports := a.received("export")
	if len(exports) != 1 {
		t.Fatalf("got %v, want one export", a.actions())
	}
	data := exports[0].Data.(map[string]any)
	if data["filename"] != "abc.txt" {
		t.Errorf("filename = %v, want abc.txt", data["filename"])
	}
	text := data["text"].(string)
	todoAt := strings.Index(text, "# Todo")
	doneAt := strings.Index(text, "# Done")
	hiAt := strings.Index(text, "- hi")
	if todoAt < 0 || doneAt < 0 || hiAt < 0 {
		t.Fatalf("export text incomplete:\n%s", text)
	}
	if !(todoAt < hiAt && hiAt < doneAt) {
		t.Errorf("card with x=10 not under Todo:\n%s", text)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	join(t, d, a, "/abc")

	ctx := context.Background()
	d.HandleMessage(ctx, a, env("createColumn", "Todo"))
	d.HandleMessage(ctx, a, env("createCard", map[string]any{
		"id": "c1", "text": "hi", "x": 10.0, "y": 5.0, "rot": 2.5, "colour": "yellow",
	}))
	d.HandleMessage(ctx, a, env("changeTheme", "smallcards"))
	d.HandleMessage(ctx, a, env("setBoardSize", map[string]any{"width": 800.0, "height": 600.0}))
	d.HandleMessage(ctx, a, env("exportJson", map[string]any{"width": 100.0, "height": 100.0}))

	exports := a.received("export")
	if len(exports) != 1 {
		t.Fatalf("got %v, want one export", a.actions())
	}
	text := exports[0].Data.(map[string]any)["text"].(string)

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	importer := &fakeConn{id: "b"}
	join(t, d, importer, "/copy")
	d.HandleMessage(ctx, importer, env("importJson", payload))

	cards, err := store.GetAllCards(ctx, "/copy")
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 {
		t.Fatalf("imported %d cards, want 1", len(cards))
	}
	want := core.Card{ID: "c1", Colour: "yellow", Rot: 2.5, X: 10, Y: 5, Text: "hi"}
	if cards[0].ID != want.ID || cards[0].Text != want.Text || cards[0].X != want.X ||
		cards[0].Y != want.Y || cards[0].Rot != want.Rot || cards[0].Colour != want.Colour {
		t.Errorf("imported card = %+v, want %+v", cards[0], want)
	}

	columns, _ := store.GetAllColumns(ctx, "/copy")
	if len(columns) != 1 || columns[0] != "Todo" {
		t.Errorf("imported columns = %v, want [Todo]", columns)
	}
	theme, _ := store.GetTheme(ctx, "/copy")
	if theme != core.ThemeSmallCards {
		t.Errorf("imported theme = %q, want smallcards", theme)
	}
	size, _ := store.GetBoardSize(ctx, "/copy")
	if size == nil || size.Width != 800 || size.Height != 600 {
		t.Errorf("imported size = %+v, want 800x600", size)
	}

	// The importer hears about each replaced part too.
	for _, action := range []string{"initCards", "initColumns", "setBoardSize", "changeTheme"} {
		if len(importer.received(action)) != 1 {
			t.Errorf("importer did not receive %s: %v", action, importer.actions())
		}
	}
}

func TestImportJsonRejectsPartialCards(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	join(t, d, a, "/abc")

	d.HandleMessage(context.Background(), a, env("importJson", map[string]any{
		"cards": []any{
			map[string]any{"id": "c1", "text": "partial"},
		},
		"columns": []any{"Todo"},
		"theme":   "neoncards",
	}))

	cards, _ := store.GetAllCards(context.Background(), "/abc")
	if len(cards) != 0 {
		t.Errorf("partial card imported: %+v", cards)
	}
	theme, _ := store.GetTheme(context.Background(), "/abc")
	if theme != "" {
		t.Errorf("invalid theme imported: %q", theme)
	}
	columns, _ := store.GetAllColumns(context.Background(), "/abc")
	if len(columns) != 1 {
		t.Errorf("valid columns should still import, got %v", columns)
	}
}
