// Package redis persists board state in Redis, one small key family
// per room.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardwall/core"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewStore connects to Redis using a redis:// URL and verifies the
// connection before returning.
func NewStore(redisURL string) (*redisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client), nil
}

// NewStoreWithClient wraps an existing Redis client.
func NewStoreWithClient(client *redis.Client) *redisStore {
	return &redisStore{client: client, prefix: "cardwall:"}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) key(room, part string) string {
	return s.prefix + room + ":" + part
}

func (s *redisStore) GetAllCards(ctx context.Context, room string) ([]core.Card, error) {
	ids, err := s.client.LRange(ctx, s.key(room, "card-order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read card order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := s.client.HGetAll(ctx, s.key(room, "cards")).Result()
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}
	cards := make([]core.Card, 0, len(ids))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		var card core.Card
		if err := json.Unmarshal([]byte(data), &card); err != nil {
			return nil, fmt.Errorf("unmarshal card %s: %w", id, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func (s *redisStore) CreateCard(ctx context.Context, room, id string, card core.Card) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	exists, err := s.client.HExists(ctx, s.key(room, "cards"), id).Result()
	if err != nil {
		return fmt.Errorf("check card: %w", err)
	}
	if !exists {
		if err := s.client.RPush(ctx, s.key(room, "card-order"), id).Err(); err != nil {
			return fmt.Errorf("record card order: %w", err)
		}
	}
	if err := s.client.HSet(ctx, s.key(room, "cards"), id, data).Err(); err != nil {
		return fmt.Errorf("write card: %w", err)
	}
	return nil
}

func (s *redisStore) DeleteCard(ctx context.Context, room, id string) error {
	if err := s.client.HDel(ctx, s.key(room, "cards"), id).Err(); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if err := s.client.LRem(ctx, s.key(room, "card-order"), 0, id).Err(); err != nil {
		return fmt.Errorf("forget card order: %w", err)
	}
	return nil
}

// updateCard applies fn to a stored card. Unknown ids are a no-op;
// a move or edit for a card deleted moments ago has nothing to do.
func (s *redisStore) updateCard(ctx context.Context, room, id string, fn func(*core.Card)) error {
	data, err := s.client.HGet(ctx, s.key(room, "cards"), id).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read card: %w", err)
	}
	var card core.Card
	if err := json.Unmarshal([]byte(data), &card); err != nil {
		return fmt.Errorf("unmarshal card %s: %w", id, err)
	}
	fn(&card)
	out, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(room, "cards"), id, out).Err(); err != nil {
		return fmt.Errorf("write card: %w", err)
	}
	return nil
}

func (s *redisStore) CardSetXY(ctx context.Context, room, id string, x, y float64) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.X = x
		card.Y = y
	})
}

func (s *redisStore) CardEdit(ctx context.Context, room, id, text string) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.Text = text
	})
}

func (s *redisStore) AddSticker(ctx context.Context, room, cardID string, sticker *string) error {
	return s.updateCard(ctx, room, cardID, func(card *core.Card) {
		card.Sticker = sticker
	})
}

func (s *redisStore) GetAllColumns(ctx context.Context, room string) ([]string, error) {
	columns, err := s.client.LRange(ctx, s.key(room, "columns"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	return columns, nil
}

func (s *redisStore) CreateColumn(ctx context.Context, room, name string) error {
	if err := s.client.RPush(ctx, s.key(room, "columns"), name).Err(); err != nil {
		return fmt.Errorf("append column: %w", err)
	}
	return nil
}

func (s *redisStore) DeleteColumn(ctx context.Context, room string) error {
	err := s.client.RPop(ctx, s.key(room, "columns")).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("pop column: %w", err)
	}
	return nil
}

func (s *redisStore) SetColumns(ctx context.Context, room string, columns []string) error {
	key := s.key(room, "columns")
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset columns: %w", err)
	}
	for _, column := range columns {
		if err := s.client.RPush(ctx, key, column).Err(); err != nil {
			return fmt.Errorf("append column: %w", err)
		}
	}
	return nil
}

func (s *redisStore) getString(ctx context.Context, room, part string) (string, error) {
	value, err := s.client.Get(ctx, s.key(room, part)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", part, err)
	}
	return value, nil
}

func (s *redisStore) GetTheme(ctx context.Context, room string) (string, error) {
	return s.getString(ctx, room, "theme")
}

func (s *redisStore) SetTheme(ctx context.Context, room, theme string) error {
	if err := s.client.Set(ctx, s.key(room, "theme"), theme, 0).Err(); err != nil {
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}

func (s *redisStore) GetFont(ctx context.Context, room string) (*core.Font, error) {
	data, err := s.getString(ctx, room, "font")
	if err != nil || data == "" {
		return nil, err
	}
	var font core.Font
	if err := json.Unmarshal([]byte(data), &font); err != nil {
		return nil, fmt.Errorf("unmarshal font: %w", err)
	}
	return &font, nil
}

func (s *redisStore) SetFont(ctx context.Context, room string, font core.Font) error {
	data, err := json.Marshal(font)
	if err != nil {
		return fmt.Errorf("marshal font: %w", err)
	}
	if err := s.client.Set(ctx, s.key(room, "font"), data, 0).Err(); err != nil {
		return fmt.Errorf("write font: %w", err)
	}
	return nil
}

func (s *redisStore) GetBoardSize(ctx context.Context, room string) (*core.BoardSize, error) {
	data, err := s.getString(ctx, room, "size")
	if err != nil || data == "" {
		return nil, err
	}
	var size core.BoardSize
	if err := json.Unmarshal([]byte(data), &size); err != nil {
		return nil, fmt.Errorf("unmarshal board size: %w", err)
	}
	return &size, nil
}

func (s *redisStore) SetBoardSize(ctx context.Context, room string, size core.BoardSize) error {
	data, err := json.Marshal(size)
	if err != nil {
		return fmt.Errorf("marshal board size: %w", err)
	}
	if err := s.client.Set(ctx, s.key(room, "size"), data, 0).Err(); err != nil {
		return fmt.Errorf("write board size: %w", err)
	}
	return nil
}

func (s *redisStore) GetPassword(ctx context.Context, room string) (string, error) {
	return s.getString(ctx, room, "password")
}

func (s *redisStore) SetPassword(ctx context.Context, room, password string) error {
	if err := s.client.Set(ctx, s.key(room, "password"), password, 0).Err(); err != nil {
		return fmt.Errorf("write password: %w", err)
	}
	return nil
}

func (s *redisStore) ClearPassword(ctx context.Context, room string) error {
	if err := s.client.Del(ctx, s.key(room, "password")).Err(); err != nil {
		return fmt.Errorf("clear password: %w", err)
	}
	return nil
}

func (s *redisStore) GetRevisions(ctx context.Context, room string) (map[string]core.Snapshot, error) {
	data, err := s.getString(ctx, room, "revisions")
	if err != nil || data == "" {
		return nil, err
	}
	var revisions map[string]core.Snapshot
	if err := json.Unmarshal([]byte(data), &revisions); err != nil {
		return nil, fmt.Errorf("unmarshal revisions: %w", err)
	}
	return revisions, nil
}

func (s *redisStore) SetRevisions(ctx context.Context, room string, revisions map[string]core.Snapshot) error {
	data, err := json.Marshal(revisions)
	if err != nil {
		return fmt.Errorf("marshal revisions: %w", err)
	}
	if err := s.client.Set(ctx, s.key(room, "revisions"), data, 0).Err(); err != nil {
		return fmt.Errorf("write revisions: %w", err)
	}
	return nil
}

func (s *redisStore) ClearRoom(ctx context.Context, room string) error {
	keys := make([]string, 0, 8)
	for _, part := range []string{"cards", "card-order", "columns", "theme", "font", "size", "password", "revisions"} {
		keys = append(keys, s.key(room, part))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear room: %w", err)
	}
	return nil
}
