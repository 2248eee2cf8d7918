package board

import (
	"sort"
	"strings"

	"cardwall/core"
)

// bucketCards distributes cards into the named columns by comparing
// each card's x coordinate against per-column ranges of width
// boundary: column i of n covers [i*boundary, (i+1)*boundary), the
// first column is open below and the last open above. Each bucket is
// sorted by (y, then x) ascending.
func bucketCards(cards []core.Card, columns []string, boundary float64) map[string][]core.Card {
	buckets := make(map[string][]core.Card, len(columns))
	n := len(columns)
	for i, column := range columns {
		var bucket []core.Card
		for _, card := range cards {
			aboveLow := i == 0 || card.X >= float64(i)*boundary
			belowHigh := i == n-1 || card.X < float64(i+1)*boundary
			if aboveLow && belowHigh {
				bucket = append(bucket, card)
			}
		}
		sort.SliceStable(bucket, func(a, b int) bool {
			if bucket[a].Y == bucket[b].Y {
				return bucket[a].X < bucket[b].X
			}
			return bucket[a].Y < bucket[b].Y
		})
		buckets[column] = bucket
	}
	return buckets
}

// ExportTxt renders the board as headed bullet-list sections, one per
// column; with no columns it renders a flat bullet list in card
// order.
func ExportTxt(cards []core.Card, columns []string, boundary float64) string {
	var lines []string
	if len(columns) > 0 {
		buckets := bucketCards(cards, columns, boundary)
		for i, column := range columns {
			if i == 0 {
				lines = append(lines, "# "+column)
			} else {
				lines = append(lines, "\n# "+column)
			}
			for _, card := range buckets[column] {
				lines = append(lines, "- "+card.Text)
			}
		}
	} else {
		for _, card := range cards {
			lines = append(lines, "- "+card.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// ExportCsv renders the board as a table: a header row of column
// names, then row j holding the j-th card of each column. Every value
// is quoted, embedded quotes are doubled, and values starting with
// =, +, - or @ get a leading apostrophe so spreadsheet tools will not
// evaluate them as formulas on import.
func ExportCsv(cards []core.Card, columns []string, boundary float64) string {
	var lines []string
	if len(columns) > 0 {
		buckets := bucketCards(cards, columns, boundary)
		max := 0
		header := make([]string, 0, len(columns))
		for _, column := range columns {
			if len(buckets[column]) > max {
				max = len(buckets[column])
			}
			header = append(header, csvCell(column))
		}
		lines = append(lines, strings.Join(header, ","))
		for j := 0; j < max; j++ {
			row := make([]string, 0, len(columns))
			for _, column := range columns {
				var text string
				if j < len(buckets[column]) {
					text = buckets[column][j].Text
				}
				row = append(row, csvCell(text))
			}
			lines = append(lines, strings.Join(row, ","))
		}
	} else {
		for _, card := range cards {
			lines = append(lines, csvCell(card.Text)+"\n")
		}
	}
	return strings.Join(lines, "\n")
}

// csvCell quotes a single value and neutralizes formula injection.
func csvCell(value string) string {
	value = strings.ReplaceAll(value, `"`, `""`)
	if strings.HasPrefix(value, "=") || strings.HasPrefix(value, "+") ||
		strings.HasPrefix(value, "-") || strings.HasPrefix(value, "@") {
		value = "'" + value
	}
	return `"` + value + `"`
}

// parseImportCards filters an imported card list down to the cards
// that supply every required field; anything partial or mistyped is
// dropped rather than defaulted.
func parseImportCards(v any) []core.Card {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	cards := make([]core.Card, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range []string{"id", "colour", "rot", "x", "y", "text", "sticker"} {
			if _, present := obj[field]; !present {
				obj = nil
				break
			}
		}
		if obj == nil {
			continue
		}
		id, idOK := asText(obj["id"])
		colour, colOK := asText(obj["colour"])
		text, textOK := asText(obj["text"])
		rot, rotOK := asNumber(obj["rot"])
		x, xOK := asNumber(obj["x"])
		y, yOK := asNumber(obj["y"])
		if !idOK || id == "" || !colOK || !textOK || !rotOK || !xOK || !yOK {
			continue
		}
		var sticker *string
		if s, ok := asText(obj["sticker"]); ok {
			sticker = &s
		}
		cards = append(cards, core.Card{
			ID:      id,
			Colour:  colour,
			Rot:     rot,
			X:       x,
			Y:       y,
			Text:    text,
			Sticker: sticker,
		})
	}
	return cards
}

// parseImportColumns keeps only entries that are strings.
func parseImportColumns(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	columns := make([]string, 0, len(list))
	for _, item := range list {
		if column, ok := asText(item); ok {
			columns = append(columns, column)
		}
	}
	return columns
}

// exportFilename derives the download name from the room key, e.g.
// "/retro" and "txt" become "retro.txt"; a revision timestamp is
// appended as "retro-1712345678901.json".
func exportFilename(room, suffix string, timestamp ...string) string {
	name := strings.Replace(room, "/", "", 1)
	for _, ts := range timestamp {
		name += "-" + ts
	}
	return name + "." + suffix
}
