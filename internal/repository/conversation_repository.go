package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tutorhub/tutorhub/internal/model"
)

// ConversationRepo provides access to 1:1 conversations and their
// messages. At most one conversation exists per unordered user pair; the
// unique index on conversations.pair_key enforces this even when two
// first calls race.
type ConversationRepo struct{ DB *sql.DB }

func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{DB: db} }

// PairKey builds the canonical unordered key for two user IDs. Both
// orderings of the same pair produce the same key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// CreateOrGet returns the conversation for the given pair, creating it
// together with both participant rows when absent. A concurrent first
// call that loses the insert race falls back to re-reading the winner's
// row, so repeated calls always return the same conversation ID.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID, username, otherID, otherUsername string) (model.Conversation, error) {
	key := PairKey(userID, otherID)

	if conv, err := r.getByPairKey(ctx, key); err == nil {
		return conv, nil
	} else if !errors.Is(err, ErrNotFound) {
		return model.Conversation{}, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Conversation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (pair_key) VALUES (?)", key)
	if err != nil {
		if isDupKey(err) {
			// Lost the race; the other caller's row is authoritative.
			return r.getByPairKey(ctx, key)
		}
		return model.Conversation{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Conversation{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversation_participants (conversation_id, user_id, username) VALUES (?,?,?),(?,?,?)",
		id, userID, username, id, otherID, otherUsername); err != nil {
		return model.Conversation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Conversation{}, err
	}
	return r.getByPairKey(ctx, key)
}

func (r *ConversationRepo) getByPairKey(ctx context.Context, key string) (model.Conversation, error) {
	var c model.Conversation
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, pair_key, created_at, updated_at FROM conversations WHERE pair_key=? LIMIT 1",
		key).Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// IsParticipant reports whether the user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID uint64, userID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversation_participants WHERE conversation_id=? AND user_id=?",
		conversationID, userID).Scan(&n)
	return n > 0, err
}

// ListForUser returns the user's conversations, most recently updated
// first, with participants and messages nested.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT c.id, c.pair_key, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN conversation_participants cp ON cp.conversation_id = c.id
		 WHERE cp.user_id = ?
		 ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []model.Conversation{}
	index := map[uint64]int{}
	ids := []any{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.PairKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Participants = []model.ConversationParticipant{}
		c.Messages = []model.Message{}
		index[c.ID] = len(convs)
		convs = append(convs, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return convs, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	pRows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT conversation_id, user_id, username FROM conversation_participants WHERE conversation_id IN (%s)",
		placeholders), ids...)
	if err != nil {
		return nil, err
	}
	defer pRows.Close()
	for pRows.Next() {
		var p model.ConversationParticipant
		if err := pRows.Scan(&p.ConversationID, &p.UserID, &p.Username); err != nil {
			return nil, err
		}
		if i, ok := index[p.ConversationID]; ok {
			convs[i].Participants = append(convs[i].Participants, p)
		}
	}
	if err := pRows.Err(); err != nil {
		return nil, err
	}

	mRows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, conversation_id, sender_id, sender_username, content, created_at FROM messages WHERE conversation_id IN (%s) ORDER BY created_at",
		placeholders), ids...)
	if err != nil {
		return nil, err
	}
	defer mRows.Close()
	for mRows.Next() {
		var m model.Message
		if err := mRows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderUsername, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[m.ConversationID]; ok {
			convs[i].Messages = append(convs[i].Messages, m)
		}
	}
	return convs, mRows.Err()
}

// Messages returns all messages of a conversation in ascending
// created_at order.
func (r *ConversationRepo) Messages(ctx context.Context, conversationID uint64) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, conversation_id, sender_id, sender_username, content, created_at FROM messages WHERE conversation_id=? ORDER BY created_at",
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderUsername, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SendMessage inserts a message and touches the conversation's
// updated_at in the same transaction.
func (r *ConversationRepo) SendMessage(ctx context.Context, m *model.Message) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, sender_id, sender_username, content) VALUES (?,?,?,?)",
		m.ConversationID, m.SenderID, m.SenderUsername, m.Content)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at=NOW() WHERE id=?", m.ConversationID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at FROM messages WHERE id=?", m.ID).Scan(&m.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
