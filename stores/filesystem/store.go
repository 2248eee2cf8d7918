// Package filesystem persists board state as one JSON document per
// room under a base directory. Like the S3 backend it relies on the
// engine's per-room serialization for write safety.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cardwall/core"
)

type roomDoc struct {
	Cards     []core.Card              `json:"cards"`
	Columns   []string                 `json:"columns"`
	Theme     string                   `json:"theme,omitempty"`
	Font      *core.Font               `json:"font,omitempty"`
	Size      *core.BoardSize          `json:"size,omitempty"`
	Password  string                   `json:"password,omitempty"`
	Revisions map[string]core.Snapshot `json:"revisions,omitempty"`
}

type fsStore struct {
	basePath string
}

// NewStore creates a filesystem-based store rooted at basePath.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) path(room string) string {
	name := strings.TrimPrefix(room, "/")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		name = "_root"
	}
	return filepath.Join(s.basePath, name+".json")
}

func (s *fsStore) load(room string) (*roomDoc, error) {
	data, err := os.ReadFile(s.path(room))
	if err != nil {
		if os.IsNotExist(err) {
			return &roomDoc{}, nil
		}
		return nil, fmt.Errorf("failed to read room %s: %w", room, err)
	}
	var doc roomDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", room, err)
	}
	return &doc, nil
}

func (s *fsStore) save(room string, doc *roomDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", room, err)
	}
	if err := os.WriteFile(s.path(room), data, 0644); err != nil {
		return fmt.Errorf("failed to write room %s: %w", room, err)
	}
	return nil
}

func (s *fsStore) update(room string, fn func(*roomDoc)) error {
	doc, err := s.load(room)
	if err != nil {
		return err
	}
	fn(doc)
	return s.save(room, doc)
}

func (s *fsStore) GetAllCards(ctx context.Context, room string) ([]core.Card, error) {
	doc, err := s.load(room)
	if err != nil {
		return nil, err
	}
	return doc.Cards, nil
}

func (s *fsStore) CreateCard(ctx context.Context, room, id string, card core.Card) error {
	return s.update(room, func(doc *roomDoc) {
		for i, existing := range doc.Cards {
			if existing.ID == id {
				doc.Cards[i] = card
				return
			}
		}
		doc.Cards = append(doc.Cards, card)
	})
}

func (s *fsStore) DeleteCard(ctx context.Context, room, id string) error {
	return s.update(room, func(doc *roomDoc) {
		for i, existing := range doc.Cards {
			if existing.ID == id {
				doc.Cards = append(doc.Cards[:i], doc.Cards[i+1:]...)
				return
			}
		}
	})
}

func (s *fsStore) updateCard(room, id string, fn func(*core.Card)) error {
	return s.update(room, func(doc *roomDoc) {
		for i := range doc.Cards {
			if doc.Cards[i].ID == id {
				fn(&doc.Cards[i])
				return
			}
		}
	})
}

func (s *fsStore) CardSetXY(ctx context.Context, room, id string, x, y float64) error {
	return s.updateCard(room, id, func(card *core.Card) {
		card.X = x
		card.Y = y
	})
}

func (s *fsStore) CardEdit(ctx context.Context, room, id, text string) error {
	return s.updateCard(room, id, func(card *core.Card) {
		card.Text = text
	})
}

func (s *fsStore) AddSticker(ctx context.Context, room, cardID string, sticker *string) error {
	return s.updateCard(room, cardID, func(card *core.Card) {
		card.Sticker = sticker
	})
}

func (s *fsStore) GetAllColumns(ctx context.Context, room string) ([]string, error) {
	doc, err := s.load(room)
	if err != nil {
		return nil, err
	}
	return doc.Columns, nil
}

func (s *fsStore) CreateColumn(ctx context.Context, room, name string) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Columns = append(doc.Columns, name)
	})
}

func (s *fsStore) DeleteColumn(ctx context.Context, room string) error {
	return s.update(room, func(doc *roomDoc) {
		if len(doc.Columns) > 0 {
			doc.Columns = doc.Columns[:len(doc.Columns)-1]
		}
	})
}

func (s *fsStore) SetColumns(ctx context.Context, room string, columns []string) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Columns = columns
	})
}

func (s *fsStore) GetTheme(ctx context.Context, room string) (string, error) {
	doc, err := s.load(room)
	if err != nil {
		return "", err
	}
	return doc.Theme, nil
}

func (s *fsStore) SetTheme(ctx context.Context, room, theme string) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Theme = theme
	})
}

func (s *fsStore) GetFont(ctx context.Context, room string) (*core.Font, error) {
	doc, err := s.load(room)
	if err != nil {
		return nil, err
	}
	return doc.Font, nil
}

func (s *fsStore) SetFont(ctx context.Context, room string, font core.Font) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Font = &font
	})
}

func (s *fsStore) GetBoardSize(ctx context.Context, room string) (*core.BoardSize, error) {
	doc, err := s.load(room)
	if err != nil {
		return nil, err
	}
	return doc.Size, nil
}

func (s *fsStore) SetBoardSize(ctx context.Context, room string, size core.BoardSize) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Size = &size
	})
}

func (s *fsStore) GetPassword(ctx context.Context, room string) (string, error) {
	doc, err := s.load(room)
	if err != nil {
		return "", err
	}
	return doc.Password, nil
}

func (s *fsStore) SetPassword(ctx context.Context, room, password string) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Password = password
	})
}

func (s *fsStore) ClearPassword(ctx context.Context, room string) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Password = ""
	})
}

func (s *fsStore) GetRevisions(ctx context.Context, room string) (map[string]core.Snapshot, error) {
	doc, err := s.load(room)
	if err != nil {
		return nil, err
	}
	return doc.Revisions, nil
}

func (s *fsStore) SetRevisions(ctx context.Context, room string, revisions map[string]core.Snapshot) error {
	return s.update(room, func(doc *roomDoc) {
		doc.Revisions = revisions
	})
}

func (s *fsStore) ClearRoom(ctx context.Context, room string) error {
	if err := os.Remove(s.path(room)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear room %s: %w", room, err)
	}
	return nil
}
