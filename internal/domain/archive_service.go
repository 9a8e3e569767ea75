package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

type archiveService struct {
	client ports.S3Client
}

func NewArchiveService(client ports.S3Client) ports.TranscriptArchiver {
	return &archiveService{client: client}
}

// objectKey returns the bucket path topics/<chat>/<date>-<topic>.json
func (s *archiveService) objectKey(t *ports.Topic) string {
	date := t.CreatedAt.Format("2006-01-02")
	return path.Join("topics", path.Base(t.ConversationID), fmt.Sprintf("%s-%s.json", date, t.ID))
}

func (s *archiveService) Archive(ctx context.Context, t *ports.Topic) (string, error) {
	if t == nil || t.ID == "" {
		return "", fmt.Errorf("topic required")
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	return s.client.PutObject(ctx, s.objectKey(t), bytes.NewReader(data), int64(len(data)), "application/json")
}
