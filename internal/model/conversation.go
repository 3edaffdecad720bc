package model

import "time"

// Conversation is a 1:1 private message thread. The participant pair is
// recorded twice: as two conversation_participants rows for joining, and
// as the unordered PairKey column whose unique index guarantees at most
// one conversation per user pair even under concurrent creation.
//
// Fields:
//  ID           – primary key identifier.
//  PairKey      – "lowID:highID" of the two participants.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – bumped when a message is sent; used as an ordering hint.
//  Participants – both participant rows, populated by list queries.
//  Messages     – messages in the thread, populated by list queries.
type Conversation struct {
	ID           uint64                    `json:"id"`
	PairKey      string                    `json:"-"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Participants []ConversationParticipant `json:"participants,omitempty"`
	Messages     []Message                 `json:"messages,omitempty"`
}

// ConversationParticipant joins a user into a conversation. Every
// conversation has exactly two of these rows.
type ConversationParticipant struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
}

// Message is a single chat message in a conversation. The auto-increment
// ID also serves as the server-assigned sequence number that realtime
// consumers use to reconcile out-of-order delivery.
type Message struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
