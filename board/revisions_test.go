package board

import (
	"context"
	"strings"
	"testing"

	"cardwall/core"
)

func TestRevisionLifecycle(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	ctx := context.Background()
	d.HandleMessage(ctx, a, env("createCard", map[string]any{
		"id": "c1", "text": "snapshot me", "x": 1.0, "y": 2.0, "rot": 0.0, "colour": "green",
	}))
	b.reset()

	d.HandleMessage(ctx, a, env("createRevision", nil))

	// Both the creator and peers learn about the new revision.
	added := a.received("addRevision")
	if len(added) != 1 {
		t.Fatalf("creator got %v, want one addRevision", a.actions())
	}
	if len(b.received("addRevision")) != 1 {
		t.Fatalf("peer got %v, want one addRevision", b.actions())
	}
	timestamp, ok := added[0].Data.(string)
	if !ok || timestamp == "" {
		t.Fatalf("addRevision data = %v, want a timestamp string", added[0].Data)
	}

	a.reset()
	d.HandleMessage(ctx, a, env("exportRevision", timestamp))
	exports := a.received("export")
	if len(exports) != 1 {
		t.Fatalf("got %v, want one export", a.actions())
	}
	data := exports[0].Data.(map[string]any)
	wantName := "abc-" + timestamp + ".json"
	if data["filename"] != wantName {
		t.Errorf("filename = %v, want %s", data["filename"], wantName)
	}
	if !strings.Contains(data["text"].(string), "snapshot me") {
		t.Errorf("revision export missing card text:\n%s", data["text"])
	}

	a.reset()
	b.reset()
	d.HandleMessage(ctx, a, env("deleteRevision", timestamp))
	if len(a.received("deleteRevision")) != 1 || len(b.received("deleteRevision")) != 1 {
		t.Errorf("deleteRevision not announced to room: a=%v b=%v", a.actions(), b.actions())
	}

	a.reset()
	d.HandleMessage(ctx, a, env("exportRevision", timestamp))
	msgs := a.received("message")
	if len(msgs) != 1 {
		t.Fatalf("got %v, want a not-found message", a.actions())
	}
	if text, _ := msgs[0].Data.(string); !strings.Contains(text, timestamp) {
		t.Errorf("not-found message %q does not name the timestamp", msgs[0].Data)
	}
}

func TestDeleteRevisionUnknownTimestamp(t *testing.T) {
	d, _ := newTestDispatcher()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	join(t, d, a, "/abc")
	join(t, d, b, "/abc")

	d.HandleMessage(context.Background(), a, env("deleteRevision", "1700000000000"))

	// Deleting something that was never there still acknowledges.
	if len(b.received("deleteRevision")) != 1 {
		t.Errorf("peer got %v, want the deleteRevision acknowledgement", b.actions())
	}
}

func TestInitializeMeListsRevisionsSorted(t *testing.T) {
	d, store := newTestDispatcher()
	a := &fakeConn{id: "a"}
	join(t, d, a, "/abc")

	ctx := context.Background()
	if err := store.SetRevisions(ctx, "/abc", map[string]core.Snapshot{
		"1700000000002": {},
		"1700000000000": {},
		"1700000000001": {},
	}); err != nil {
		t.Fatal(err)
	}

	d.HandleMessage(ctx, a, env("initializeMe", nil))

	inits := a.received("initRevisions")
	if len(inits) != 1 {
		t.Fatalf("got %v, want one initRevisions", a.actions())
	}
	timestamps := inits[0].Data.([]string)
	want := []string{"1700000000000", "1700000000001", "1700000000002"}
	if len(timestamps) != len(want) {
		t.Fatalf("initRevisions = %v, want %v", timestamps, want)
	}
	for i := range want {
		if timestamps[i] != want[i] {
			t.Fatalf("initRevisions = %v, want %v", timestamps, want)
		}
	}
}
