package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"cardwall/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a SQLite-based store. Cards live one row each so
// individual edits stay cheap; the remaining per-room fields share a
// single row.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	cardTableStmt := `
	CREATE TABLE IF NOT EXISTS cards (
		room TEXT NOT NULL,
		id   TEXT NOT NULL,
		seq  INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (room, id)
	);`
	if _, err = db.Exec(cardTableStmt); err != nil {
		log.Fatalf("failed to create cards table: %v", err)
	}

	roomTableStmt := `
	CREATE TABLE IF NOT EXISTS rooms (
		room      TEXT PRIMARY KEY,
		columns   TEXT,
		theme     TEXT,
		font      TEXT,
		size      TEXT,
		password  TEXT,
		revisions TEXT
	);`
	if _, err = db.Exec(roomTableStmt); err != nil {
		log.Fatalf("failed to create rooms table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) GetAllCards(ctx context.Context, room string) ([]core.Card, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM cards WHERE room = ? ORDER BY seq", room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []core.Card
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var card core.Card
		if err := json.Unmarshal([]byte(data), &card); err != nil {
			return nil, fmt.Errorf("unmarshal card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s *sqliteStore) CreateCard(ctx context.Context, room, id string, card core.Card) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	// Replacing an existing card keeps its position in the sequence.
	res, err := s.db.ExecContext(ctx, "UPDATE cards SET data = ? WHERE room = ? AND id = ?", data, room, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO cards (room, id, seq, data) VALUES (?, ?, (SELECT IFNULL(MAX(seq), 0) + 1 FROM cards WHERE room = ?), ?)",
		room, id, room, data)
	return err
}

func (s *sqliteStore) DeleteCard(ctx context.Context, room, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE room = ? AND id = ?", room, id)
	return err
}

func (s *sqliteStore) updateCard(ctx context.Context, room, id string, fn func(*core.Card)) error {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM cards WHERE room = ? AND id = ?", room, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	var card core.Card
	if err := json.Unmarshal([]byte(data), &card); err != nil {
		return fmt.Errorf("unmarshal card: %w", err)
	}
	fn(&card)
	out, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE cards SET data = ? WHERE room = ? AND id = ?", out, room, id)
	return err
}

func (s *sqliteStore) CardSetXY(ctx context.Context, room, id string, x, y float64) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.X = x
		card.Y = y
	})
}

func (s *sqliteStore) CardEdit(ctx context.Context, room, id, text string) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.Text = text
	})
}

func (s *sqliteStore) AddSticker(ctx context.Context, room, cardID string, sticker *string) error {
	return s.updateCard(ctx, room, cardID, func(card *core.Card) {
		card.Sticker = sticker
	})
}

// getField reads one column of the room row. column comes only from
// call sites below, never from input.
func (s *sqliteStore) getField(ctx context.Context, room, column string) (string, error) {
	var value sql.NullString
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE room = ?", column)
	err := s.db.QueryRowContext(ctx, query, room).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

func (s *sqliteStore) setField(ctx context.Context, room, column string, value any) error {
	query := fmt.Sprintf(
		"INSERT INTO rooms (room, %s) VALUES (?, ?) ON CONFLICT(room) DO UPDATE SET %s = excluded.%s",
		column, column, column)
	_, err := s.db.ExecContext(ctx, query, room, value)
	return err
}

func (s *sqliteStore) GetAllColumns(ctx context.Context, room string) ([]string, error) {
	data, err := s.getField(ctx, room, "columns")
	if err != nil || data == "" {
		return nil, err
	}
	var columns []string
	if err := json.Unmarshal([]byte(data), &columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	return columns, nil
}

func (s *sqliteStore) CreateColumn(ctx context.Context, room, name string) error {
	columns, err := s.GetAllColumns(ctx, room)
	if err != nil {
		return err
	}
	return s.SetColumns(ctx, room, append(columns, name))
}

func (s *sqliteStore) DeleteColumn(ctx context.Context, room string) error {
	columns, err := s.GetAllColumns(ctx, room)
	if err != nil || len(columns) == 0 {
		return err
	}
	return s.SetColumns(ctx, room, columns[:len(columns)-1])
}

func (s *sqliteStore) SetColumns(ctx context.Context, room string, columns []string) error {
	if columns == nil {
		columns = []string{}
	}
	data, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	return s.setField(ctx, room, "columns", string(data))
}

func (s *sqliteStore) GetTheme(ctx context.Context, room string) (string, error) {
	return s.getField(ctx, room, "theme")
}

func (s *sqliteStore) SetTheme(ctx context.Context, room, theme string) error {
	return s.setField(ctx, room, "theme", theme)
}

func (s *sqliteStore) GetFont(ctx context.Context, room string) (*core.Font, error) {
	data, err := s.getField(ctx, room, "font")
	if err != nil || data == "" {
		return nil, err
	}
	var font core.Font
	if err := json.Unmarshal([]byte(data), &font); err != nil {
		return nil, fmt.Errorf("unmarshal font: %w", err)
	}
	return &font, nil
}

func (s *sqliteStore) SetFont(ctx context.Context, room string, font core.Font) error {
	data, err := json.Marshal(font)
	if err != nil {
		return fmt.Errorf("marshal font: %w", err)
	}
	return s.setField(ctx, room, "font", string(data))
}

func (s *sqliteStore) GetBoardSize(ctx context.Context, room string) (*core.BoardSize, error) {
	data, err := s.getField(ctx, room, "size")
	if err != nil || data == "" {
		return nil, err
	}
	var size core.BoardSize
	if err := json.Unmarshal([]byte(data), &size); err != nil {
		return nil, fmt.Errorf("unmarshal board size: %w", err)
	}
	return &size, nil
}

func (s *sqliteStore) SetBoardSize(ctx context.Context, room string, size core.BoardSize) error {
	data, err := json.Marshal(size)
	if err != nil {
		return fmt.Errorf("marshal board size: %w", err)
	}
	return s.setField(ctx, room, "size", string(data))
}

func (s *sqliteStore) GetPassword(ctx context.Context, room string) (string, error) {
	return s.getField(ctx, room, "password")
}

func (s *sqliteStore) SetPassword(ctx context.Context, room, password string) error {
	return s.setField(ctx, room, "password", password)
}

func (s *sqliteStore) ClearPassword(ctx context.Context, room string) error {
	return s.setField(ctx, room, "password", nil)
}

func (s *sqliteStore) GetRevisions(ctx context.Context, room string) (map[string]core.Snapshot, error) {
	data, err := s.getField(ctx, room, "revisions")
	if err != nil || data == "" {
		return nil, err
	}
	var revisions map[string]core.Snapshot
	if err := json.Unmarshal([]byte(data), &revisions); err != nil {
		return nil, fmt.Errorf("unmarshal revisions: %w", err)
	}
	return revisions, nil
}

func (s *sqliteStore) SetRevisions(ctx context.Context, room string, revisions map[string]core.Snapshot) error {
	data, err := json.Marshal(revisions)
	if err != nil {
		return fmt.Errorf("marshal revisions: %w", err)
	}
	return s.setField(ctx, room, "revisions", string(data))
}

func (s *sqliteStore) ClearRoom(ctx context.Context, room string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE room = ?", room); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE room = ?", room)
	return err
}
