package board

import (
	"encoding/json"
	"strings"
	"testing"

	"cardwall/core"
)

func TestExportTxtColumnSections(t *testing.T) {
	cards := []core.Card{
		{ID: "c1", Text: "hi", X: 10, Y: 5, Colour: "yellow"},
	}
	columns := []string{"Todo", "Done"}

	text := ExportTxt(cards, columns, 300)

	todoAt := strings.Index(text, "# Todo")
	doneAt := strings.Index(text, "# Done")
	if todoAt < 0 || doneAt < 0 {
		t.Fatalf("missing column headers in export:\n%s", text)
	}
	if todoAt > doneAt {
		t.Errorf("columns out of order:\n%s", text)
	}
	bulletAt := strings.Index(text, "- hi")
	if bulletAt < 0 {
		t.Fatalf("missing card bullet in export:\n%s", text)
	}
	if !(todoAt < bulletAt && bulletAt < doneAt) {
		t.Errorf("card with x=10 not under Todo:\n%s", text)
	}
}

func TestExportTxtSortsWithinColumn(t *testing.T) {
	cards := []core.Card{
		{ID: "c1", Text: "third", X: 50, Y: 200},
		{ID: "c2", Text: "first", X: 10, Y: 10},
		{ID: "c3", Text: "second", X: 90, Y: 10},
	}
	text := ExportTxt(cards, []string{"Only"}, 300)

	want := "# Only\n- first\n- second\n- third"
	if text != want {
		t.Errorf("ExportTxt() = %q, want %q", text, want)
	}
}

func TestExportTxtNoColumns(t *testing.T) {
	cards := []core.Card{
		{ID: "c1", Text: "one"},
		{ID: "c2", Text: "two"},
	}
	text := ExportTxt(cards, nil, 300)
	if text != "- one\n- two" {
		t.Errorf("ExportTxt() = %q", text)
	}
}

func TestExportCsvNeutralizesFormulas(t *testing.T) {
	text := ExportCsv(nil, []string{"=CMD"}, 300)
	if !strings.Contains(text, `"'=CMD"`) {
		t.Errorf("formula column header not neutralized: %q", text)
	}

	cards := []core.Card{{ID: "c1", Text: "+1234", X: 10, Y: 10}}
	text = ExportCsv(cards, []string{"Col"}, 300)
	if !strings.Contains(text, `"'+1234"`) {
		t.Errorf("formula cell not neutralized: %q", text)
	}
}

func TestExportCsvEscapesQuotes(t *testing.T) {
	cards := []core.Card{{ID: "c1", Text: `say "hi"`, X: 10, Y: 10}}
	text := ExportCsv(cards, []string{"Col"}, 300)
	if !strings.Contains(text, `"say ""hi"""`) {
		t.Errorf("embedded quotes not doubled: %q", text)
	}
}

func TestExportCsvRowAlignment(t *testing.T) {
	cards := []core.Card{
		{ID: "c1", Text: "left1", X: 10, Y: 10},
		{ID: "c2", Text: "left2", X: 20, Y: 20},
		{ID: "c3", Text: "right1", X: 400, Y: 5},
	}
	text := ExportCsv(cards, []string{"Left", "Right"}, 300)

	lines := strings.Split(text, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d csv lines, want 3 (header + 2 rows): %q", len(lines), text)
	}
	if lines[0] != `"Left","Right"` {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"left1","right1"` {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != `"left2",""` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestBucketBoundaries(t *testing.T) {
	cards := []core.Card{
		{ID: "below", Text: "below", X: -50, Y: 0},
		{ID: "edge", Text: "edge", X: 300, Y: 0},
		{ID: "far", Text: "far", X: 10000, Y: 0},
	}
	buckets := bucketCards(cards, []string{"A", "B"}, 300)

	if len(buckets["A"]) != 1 || buckets["A"][0].ID != "below" {
		t.Errorf("bucket A = %+v, want only the below-range card", buckets["A"])
	}
	if len(buckets["B"]) != 2 {
		t.Errorf("bucket B = %+v, want edge and far", buckets["B"])
	}
}

func TestBucketSingleColumnTakesAll(t *testing.T) {
	cards := []core.Card{
		{ID: "near", X: 10},
		{ID: "far", X: 5000},
	}
	buckets := bucketCards(cards, []string{"Everything"}, 300)
	if len(buckets["Everything"]) != 2 {
		t.Errorf("single column holds %d cards, want 2", len(buckets["Everything"]))
	}
}

func TestParseImportCardsRejectsPartial(t *testing.T) {
	full := core.Card{ID: "c1", Colour: "yellow", Rot: 1, X: 2, Y: 3, Text: "ok"}
	data, _ := json.Marshal([]any{
		full,
		map[string]any{"id": "c2", "text": "no colour"},
		"not an object",
	})
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}

	cards := parseImportCards(raw)
	if len(cards) != 1 {
		t.Fatalf("parseImportCards() kept %d cards, want 1", len(cards))
	}
	if cards[0].ID != "c1" || cards[0].Text != "ok" {
		t.Errorf("kept card = %+v", cards[0])
	}
}

func TestParseImportColumnsKeepsStringsOnly(t *testing.T) {
	columns := parseImportColumns([]any{"Todo", 42.0, "Done", map[string]any{}})
	if len(columns) != 2 || columns[0] != "Todo" || columns[1] != "Done" {
		t.Errorf("parseImportColumns() = %v, want [Todo Done]", columns)
	}
}

func TestExportFilename(t *testing.T) {
	if got := exportFilename("/retro", "txt"); got != "retro.txt" {
		t.Errorf("exportFilename() = %q", got)
	}
	if got := exportFilename("/retro", "json", "171"); got != "retro-171.json" {
		t.Errorf("exportFilename() with timestamp = %q", got)
	}
}
