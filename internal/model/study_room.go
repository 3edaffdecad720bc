package model

import "time"

// Invitation statuses shared by study-room and connection invitations.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteRejected = "rejected"
)

// StudyRoom is a many-participant chat scoped to a subject. Private rooms
// are invisible to non-participants and require an accepted invitation to
// join. The creator is joined in the same transaction that creates the
// room.
//
// Fields:
//  ID           – primary key, UUID string.
//  Name         – display name.
//  Subject      – one of AvailableSubjects.
//  Description  – optional description (nullable).
//  CreatedBy    – creator's account UUID.
//  IsPrivate    – invitation-gated when true.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – bumped when a message is sent.
//  Participants – current roster, populated by list queries.
type StudyRoom struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Subject      string                 `json:"subject"`
	Description  *string                `json:"description"`
	CreatedBy    string                 `json:"created_by"`
	IsPrivate    bool                   `json:"is_private"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Participants []StudyRoomParticipant `json:"participants,omitempty"`
}

// StudyRoomParticipant is a member of a study room.
type StudyRoomParticipant struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

// StudyRoomMessage is a chat message within a room. Seq is a
// server-assigned, monotonically increasing number used by realtime
// consumers to reconcile ordering; the row ID itself is a UUID.
type StudyRoomMessage struct {
	ID             string    `json:"id"`
	Seq            uint64    `json:"seq"`
	RoomID         string    `json:"room_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StudyRoomInvitation gates entry into a private room. One invitation
// exists per (room, invitee) pair.
type StudyRoomInvitation struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	InviteeID string    `json:"invitee_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
