package memory

import (
	"context"
	"sync"

	"cardwall/core"
)

// roomDoc is everything stored for one room. Cards keep their
// creation order so init pushes and exports are stable.
type roomDoc struct {
	cards     map[string]core.Card
	cardOrder []string
	columns   []string
	theme     string
	font      *core.Font
	size      *core.BoardSize
	password  string
	revisions map[string]core.Snapshot
}

type memStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomDoc
}

// NewStore creates an in-memory store. State is scoped to the
// instance, not the package.
func NewStore() *memStore {
	return &memStore{rooms: make(map[string]*roomDoc)}
}

func (s *memStore) room(key string) *roomDoc {
	doc, ok := s.rooms[key]
	if !ok {
		doc = &roomDoc{
			cards:     make(map[string]core.Card),
			revisions: make(map[string]core.Snapshot),
		}
		s.rooms[key] = doc
	}
	return doc
}

func (s *memStore) GetAllCards(ctx context.Context, room string) ([]core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil, nil
	}
	cards := make([]core.Card, 0, len(doc.cardOrder))
	for _, id := range doc.cardOrder {
		cards = append(cards, doc.cards[id])
	}
	return cards, nil
}

func (s *memStore) CreateCard(ctx context.Context, room, id string, card core.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.room(room)
	if _, exists := doc.cards[id]; !exists {
		doc.cardOrder = append(doc.cardOrder, id)
	}
	doc.cards[id] = card
	return nil
}

func (s *memStore) DeleteCard(ctx context.Context, room, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil
	}
	if _, exists := doc.cards[id]; !exists {
		return nil
	}
	delete(doc.cards, id)
	for i, existing := range doc.cardOrder {
		if existing == id {
			doc.cardOrder = append(doc.cardOrder[:i], doc.cardOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) CardSetXY(ctx context.Context, room, id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil
	}
	card, exists := doc.cards[id]
	if !exists {
		return nil
	}
	card.X = x
	card.Y = y
	doc.cards[id] = card
	return nil
}

func (s *memStore) CardEdit(ctx context.Context, room, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil
	}
	card, exists := doc.cards[id]
	if !exists {
		return nil
	}
	card.Text = text
	doc.cards[id] = card
	return nil
}

func (s *memStore) AddSticker(ctx context.Context, room, cardID string, sticker *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil
	}
	card, exists := doc.cards[cardID]
	if !exists {
		return nil
	}
	card.Sticker = sticker
	doc.cards[cardID] = card
	return nil
}

func (s *memStore) GetAllColumns(ctx context.Context, room string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil, nil
	}
	columns := make([]string, len(doc.columns))
	copy(columns, doc.columns)
	return columns, nil
}

func (s *memStore) CreateColumn(ctx context.Context, room, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.room(room)
	doc.columns = append(doc.columns, name)
	return nil
}

func (s *memStore) DeleteColumn(ctx context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.rooms[room]
	if !ok || len(doc.columns) == 0 {
		return nil
	}
	doc.columns = doc.columns[:len(doc.columns)-1]
	return nil
}

func (s *memStore) SetColumns(ctx context.Context, room string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.room(room)
	doc.columns = make([]string, len(columns))
	copy(doc.columns, columns)
	return nil
}

func (s *memStore) GetTheme(ctx context.Context, room string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, ok := s.rooms[room]; ok {
		return doc.theme, nil
	}
	return "", nil
}

func (s *memStore) SetTheme(ctx context.Context, room, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room(room).theme = theme
	return nil
}

func (s *memStore) GetFont(ctx context.Context, room string) (*core.Font, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rooms[room]
	if !ok || doc.font == nil {
		return nil, nil
	}
	font := *doc.font
	return &font, nil
}

func (s *memStore) SetFont(ctx context.Context, room string, font core.Font) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room(room).font = &font
	return nil
}

func (s *memStore) GetBoardSize(ctx context.Context, room string) (*core.BoardSize, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rooms[room]
	if !ok || doc.size == nil {
		return nil, nil
	}
	size := *doc.size
	return &size, nil
}

func (s *memStore) SetBoardSize(ctx context.Context, room string, size core.BoardSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room(room).size = &size
	return nil
}

func (s *memStore) GetPassword(ctx context.Context, room string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, ok := s.rooms[room]; ok {
		return doc.password, nil
	}
	return "", nil
}

func (s *memStore) SetPassword(ctx context.Context, room, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.room(room).password = password
	return nil
}

func (s *memStore) ClearPassword(ctx context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.rooms[room]; ok {
		doc.password = ""
	}
	return nil
}

func (s *memStore) GetRevisions(ctx context.Context, room string) (map[string]core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.rooms[room]
	if !ok {
		return nil, nil
	}
	revisions := make(map[string]core.Snapshot, len(doc.revisions))
	for ts, snap := range doc.revisions {
		revisions[ts] = snap
	}
	return revisions, nil
}

func (s *memStore) SetRevisions(ctx context.Context, room string, revisions map[string]core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.room(room)
	doc.revisions = make(map[string]core.Snapshot, len(revisions))
	for ts, snap := range revisions {
		doc.revisions[ts] = snap
	}
	return nil
}

func (s *memStore) ClearRoom(ctx context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, room)
	return nil
}
