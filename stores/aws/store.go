// Package aws persists board state in S3, one JSON room document per
// room. Every mutation is a read-modify-write of the whole document;
// the engine serializes mutations per room, so concurrent writers
// never race on the same object.
package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cardwall/core"
)

// roomDoc is the stored shape of one room.
type roomDoc struct {
	Cards     []core.Card              `json:"cards"`
	Columns   []string                 `json:"columns"`
	Theme     string                   `json:"theme,omitempty"`
	Font      *core.Font               `json:"font,omitempty"`
	Size      *core.BoardSize          `json:"size,omitempty"`
	Password  string                   `json:"password,omitempty"`
	Revisions map[string]core.Snapshot `json:"revisions,omitempty"`
}

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates an S3-based store using the default SDK credential
// chain.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// NewStoreWithClient wraps an existing S3 client; tests use this with
// a stub.
func NewStoreWithClient(client *s3.Client, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName}
}

func roomKey(room string) string {
	return "rooms/" + strings.TrimPrefix(room, "/") + ".json"
}

func (s *s3Store) load(ctx context.Context, room string) (*roomDoc, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(roomKey(room)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return &roomDoc{}, nil
		}
		return nil, fmt.Errorf("failed to get room %s: %w", room, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read room data: %w", err)
	}
	var doc roomDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", room, err)
	}
	return &doc, nil
}

func (s *s3Store) save(ctx context.Context, room string, doc *roomDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode room %s: %w", room, err)
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(roomKey(room)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload room %s: %w", room, err)
	}
	return nil
}

func (s *s3Store) update(ctx context.Context, room string, fn func(*roomDoc)) error {
	doc, err := s.load(ctx, room)
	if err != nil {
		return err
	}
	fn(doc)
	return s.save(ctx, room, doc)
}

func (s *s3Store) GetAllCards(ctx context.Context, room string) ([]core.Card, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return nil, err
	}
	return doc.Cards, nil
}

func (s *s3Store) CreateCard(ctx context.Context, room, id string, card core.Card) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		for i, existing := range doc.Cards {
			if existing.ID == id {
				doc.Cards[i] = card
				return
			}
		}
		doc.Cards = append(doc.Cards, card)
	})
}

func (s *s3Store) DeleteCard(ctx context.Context, room, id string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		for i, existing := range doc.Cards {
			if existing.ID == id {
				doc.Cards = append(doc.Cards[:i], doc.Cards[i+1:]...)
				return
			}
		}
	})
}

func (s *s3Store) updateCard(ctx context.Context, room, id string, fn func(*core.Card)) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		for i := range doc.Cards {
			if doc.Cards[i].ID == id {
				fn(&doc.Cards[i])
				return
			}
		}
	})
}

func (s *s3Store) CardSetXY(ctx context.Context, room, id string, x, y float64) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.X = x
		card.Y = y
	})
}

func (s *s3Store) CardEdit(ctx context.Context, room, id, text string) error {
	return s.updateCard(ctx, room, id, func(card *core.Card) {
		card.Text = text
	})
}

func (s *s3Store) AddSticker(ctx context.Context, room, cardID string, sticker *string) error {
	return s.updateCard(ctx, room, cardID, func(card *core.Card) {
		card.Sticker = sticker
	})
}

func (s *s3Store) GetAllColumns(ctx context.Context, room string) ([]string, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return nil, err
	}
	return doc.Columns, nil
}

func (s *s3Store) CreateColumn(ctx context.Context, room, name string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Columns = append(doc.Columns, name)
	})
}

func (s *s3Store) DeleteColumn(ctx context.Context, room string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		if len(doc.Columns) > 0 {
			doc.Columns = doc.Columns[:len(doc.Columns)-1]
		}
	})
}

func (s *s3Store) SetColumns(ctx context.Context, room string, columns []string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Columns = columns
	})
}

func (s *s3Store) GetTheme(ctx context.Context, room string) (string, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return "", err
	}
	return doc.Theme, nil
}

func (s *s3Store) SetTheme(ctx context.Context, room, theme string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Theme = theme
	})
}

func (s *s3Store) GetFont(ctx context.Context, room string) (*core.Font, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return nil, err
	}
	return doc.Font, nil
}

func (s *s3Store) SetFont(ctx context.Context, room string, font core.Font) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Font = &font
	})
}

func (s *s3Store) GetBoardSize(ctx context.Context, room string) (*core.BoardSize, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return nil, err
	}
	return doc.Size, nil
}

func (s *s3Store) SetBoardSize(ctx context.Context, room string, size core.BoardSize) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Size = &size
	})
}

func (s *s3Store) GetPassword(ctx context.Context, room string) (string, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return "", err
	}
	return doc.Password, nil
}

func (s *s3Store) SetPassword(ctx context.Context, room, password string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Password = password
	})
}

func (s *s3Store) ClearPassword(ctx context.Context, room string) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Password = ""
	})
}

func (s *s3Store) GetRevisions(ctx context.Context, room string) (map[string]core.Snapshot, error) {
	doc, err := s.load(ctx, room)
	if err != nil {
		return nil, err
	}
	return doc.Revisions, nil
}

func (s *s3Store) SetRevisions(ctx context.Context, room string, revisions map[string]core.Snapshot) error {
	return s.update(ctx, room, func(doc *roomDoc) {
		doc.Revisions = revisions
	})
}

func (s *s3Store) ClearRoom(ctx context.Context, room string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(roomKey(room)),
	})
	if err != nil {
		return fmt.Errorf("failed to clear room %s: %w", room, err)
	}
	return nil
}
