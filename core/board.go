package core

import "context"

// Themes a board can be rendered with. Theme is stored per room and
// defaults to ThemeBigCards when nothing has been written yet.
const (
	ThemeBigCards   = "bigcards"
	ThemeSmallCards = "smallcards"
)

// DefaultFont is pushed to clients of rooms that never changed their font.
var DefaultFont = Font{Family: "Covered By Your Grace", Size: 12}

type (
	// Card is a single sticky note on a board. Ids are supplied by the
	// client that created the card; writing a card with an existing id
	// replaces it.
	Card struct {
		ID      string  `json:"id"`
		Colour  string  `json:"colour"`
		Rot     float64 `json:"rot"`
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		Text    string  `json:"text"`
		Sticker *string `json:"sticker"`
	}

	// BoardSize is the pixel dimensions of a room's board. There is no
	// stored default; callers supply a fallback when they need one.
	BoardSize struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Font is the per-room text style pushed to clients on init.
	Font struct {
		Family string  `json:"font"`
		Size   float64 `json:"size"`
	}

	// Snapshot is a full copy of a room's board state, stored as an
	// immutable revision keyed by a millisecond timestamp string.
	Snapshot struct {
		Cards   []Card    `json:"cards"`
		Columns []string  `json:"columns"`
		Theme   string    `json:"theme"`
		Size    BoardSize `json:"size"`
	}

	// Store is the persistence contract for per-room board state.
	// Reads return zero values (nil slices, empty strings, nil
	// pointers) when nothing has been stored yet; errors indicate real
	// storage failures only.
	Store interface {
		GetAllCards(ctx context.Context, room string) ([]Card, error)
		CreateCard(ctx context.Context, room, id string, card Card) error
		DeleteCard(ctx context.Context, room, id string) error
		CardSetXY(ctx context.Context, room, id string, x, y float64) error
		CardEdit(ctx context.Context, room, id, text string) error
		AddSticker(ctx context.Context, room, cardID string, sticker *string) error

		GetAllColumns(ctx context.Context, room string) ([]string, error)
		CreateColumn(ctx context.Context, room, name string) error
		// DeleteColumn removes the most recently added column. Removing
		// from a room with no columns is a no-op.
		DeleteColumn(ctx context.Context, room string) error
		SetColumns(ctx context.Context, room string, columns []string) error

		GetTheme(ctx context.Context, room string) (string, error)
		SetTheme(ctx context.Context, room, theme string) error

		GetFont(ctx context.Context, room string) (*Font, error)
		SetFont(ctx context.Context, room string, font Font) error

		GetBoardSize(ctx context.Context, room string) (*BoardSize, error)
		SetBoardSize(ctx context.Context, room string, size BoardSize) error

		GetPassword(ctx context.Context, room string) (string, error)
		SetPassword(ctx context.Context, room, password string) error
		ClearPassword(ctx context.Context, room string) error

		GetRevisions(ctx context.Context, room string) (map[string]Snapshot, error)
		SetRevisions(ctx context.Context, room string, revisions map[string]Snapshot) error

		// ClearRoom removes every piece of stored state for a room.
		ClearRoom(ctx context.Context, room string) error
	}
)
