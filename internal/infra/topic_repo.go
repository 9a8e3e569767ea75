package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

// Placeholders are $N in ascending order so the same text runs on lib/pq and
// modernc sqlite.
type topicRepo struct {
	db *sql.DB
}

func NewTopicRepo(db *sql.DB) ports.TopicRepo {
	return &topicRepo{db: db}
}

func (r *topicRepo) GetOpen(ctx context.Context, conversationID string) (*ports.Topic, error) {
	var t ports.Topic
	err := r.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, system_message, max_tokens, created_at, updated_at
		FROM topics
		WHERE conversation_id = $1 AND closed_at IS NULL
	`, conversationID).Scan(
		&t.ID,
		&t.ConversationID,
		&t.SystemMessage,
		&t.MaxTokens,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic_id, seq, role, content, created_at
		FROM topic_messages
		WHERE topic_id = $1
		ORDER BY seq ASC
	`, t.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m ports.Message
		if err := rows.Scan(
			&m.ID,
			&m.TopicID,
			&m.Seq,
			&m.Role,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *topicRepo) CreateOpen(ctx context.Context, t *ports.Topic) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO topics (id, conversation_id, system_message, max_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, t.ID, t.ConversationID, t.SystemMessage, t.MaxTokens, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// another open topic for this conversation won the race
		return false, nil
	}

	if err := insertMessages(ctx, tx, t.ID, t.Messages); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *topicRepo) AppendMessages(ctx context.Context, topicID string, msgs []ports.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE topics SET updated_at = $1
		WHERE id = $2 AND closed_at IS NULL
	`, msgs[len(msgs)-1].CreatedAt.UTC(), topicID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("append to %s: %w", topicID, ports.ErrTopicNotFound)
	}

	if err := insertMessages(ctx, tx, topicID, msgs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sql.Tx, topicID string, msgs []ports.Message) error {
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO topic_messages (id, topic_id, seq, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, topicID, m.Seq, m.Role, m.Content, m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert message seq=%d: %w", m.Seq, err)
		}
	}
	return nil
}

func (r *topicRepo) Close(ctx context.Context, topicID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE topics SET closed_at = $1, updated_at = $1
		WHERE id = $2 AND closed_at IS NULL
	`, at.UTC(), topicID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrTopicNotFound
	}
	return nil
}

func (r *topicRepo) List(ctx context.Context, limit int) ([]ports.TopicSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.conversation_id, COUNT(m.id), t.created_at, t.updated_at, t.closed_at
		FROM topics t
		LEFT JOIN topic_messages m ON m.topic_id = t.id
		GROUP BY t.id, t.conversation_id, t.created_at, t.updated_at, t.closed_at
		ORDER BY t.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.TopicSummary
	for rows.Next() {
		var s ports.TopicSummary
		if err := rows.Scan(
			&s.ID,
			&s.ConversationID,
			&s.MessageCount,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.ClosedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
