package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub/internal/model"
)

// StudyRoomRepo provides access to study rooms, their rosters, messages
// and invitations. Room creation and the creator's auto-join are one
// transaction, so a room can never exist without its creator on the
// roster.
type StudyRoomRepo struct{ DB *sql.DB }

func NewStudyRoomRepo(db *sql.DB) *StudyRoomRepo { return &StudyRoomRepo{DB: db} }

// Create inserts the room and joins the creator in a single transaction.
func (r *StudyRoomRepo) Create(ctx context.Context, room *model.StudyRoom, creatorUsername string) error {
	room.ID = uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO study_rooms (id, name, subject, description, created_by, is_private) VALUES (?,?,?,?,?,?)",
		room.ID, room.Name, room.Subject, room.Description, room.CreatedBy, room.IsPrivate); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO study_room_participants (room_id, user_id, username) VALUES (?,?,?)",
		room.ID, room.CreatedBy, creatorUsername); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM study_rooms WHERE id=?",
		room.ID).Scan(&room.CreatedAt, &room.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID fetches a room without its roster.
func (r *StudyRoomRepo) GetByID(ctx context.Context, roomID string) (model.StudyRoom, error) {
	var room model.StudyRoom
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, subject, description, created_by, is_private, created_at, updated_at FROM study_rooms WHERE id=? LIMIT 1",
		roomID).Scan(&room.ID, &room.Name, &room.Subject, &room.Description,
		&room.CreatedBy, &room.IsPrivate, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return room, ErrNotFound
	}
	return room, err
}

// ListVisible returns rooms visible to the user: every public room plus
// private rooms the user participates in or holds an accepted invitation
// to, optionally filtered by subject, newest first. Private rooms are
// never listed to outsiders.
func (r *StudyRoomRepo) ListVisible(ctx context.Context, userID, subject string) ([]model.StudyRoom, error) {
	q := `SELECT DISTINCT sr.id, sr.name, sr.subject, sr.description, sr.created_by, sr.is_private, sr.created_at, sr.updated_at
	      FROM study_rooms sr
	      LEFT JOIN study_room_participants sp ON sp.room_id = sr.id AND sp.user_id = ?
	      LEFT JOIN study_room_invitations si ON si.room_id = sr.id AND si.invitee_id = ? AND si.status = 'accepted'
	      WHERE (sr.is_private = 0 OR sp.user_id IS NOT NULL OR si.id IS NOT NULL)`
	args := []any{userID, userID}
	if subject != "" {
		q += " AND sr.subject = ?"
		args = append(args, subject)
	}
	q += " ORDER BY sr.created_at DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []model.StudyRoom{}
	index := map[string]int{}
	ids := []any{}
	for rows.Next() {
		var room model.StudyRoom
		if err := rows.Scan(&room.ID, &room.Name, &room.Subject, &room.Description,
			&room.CreatedBy, &room.IsPrivate, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		room.Participants = []model.StudyRoomParticipant{}
		index[room.ID] = len(rooms)
		rooms = append(rooms, room)
		ids = append(ids, room.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	pRows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT room_id, user_id, username, joined_at FROM study_room_participants WHERE room_id IN (%s) ORDER BY joined_at",
		placeholders), ids...)
	if err != nil {
		return nil, err
	}
	defer pRows.Close()
	for pRows.Next() {
		var p model.StudyRoomParticipant
		if err := pRows.Scan(&p.RoomID, &p.UserID, &p.Username, &p.JoinedAt); err != nil {
			return nil, err
		}
		if i, ok := index[p.RoomID]; ok {
			rooms[i].Participants = append(rooms[i].Participants, p)
		}
	}
	return rooms, pRows.Err()
}

// IsParticipant reports whether the user is on the room's roster.
func (r *StudyRoomRepo) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM study_room_participants WHERE room_id=? AND user_id=?",
		roomID, userID).Scan(&n)
	return n > 0, err
}

// Join adds the user to the roster. Private rooms require an accepted
// invitation unless the caller is the creator; joining twice is
// ErrDuplicate.
func (r *StudyRoomRepo) Join(ctx context.Context, roomID, userID, username string) error {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsPrivate && room.CreatedBy != userID {
		var n int
		if err := r.DB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM study_room_invitations WHERE room_id=? AND invitee_id=? AND status='accepted'",
			roomID, userID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrForbidden
		}
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO study_room_participants (room_id, user_id, username) VALUES (?,?,?)",
		roomID, userID, username)
	if isDupKey(err) {
		return ErrDuplicate
	}
	return err
}

// Leave removes the user from the roster.
func (r *StudyRoomRepo) Leave(ctx context.Context, roomID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM study_room_participants WHERE room_id=? AND user_id=?", roomID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Messages returns the room's messages in ascending sequence order.
func (r *StudyRoomRepo) Messages(ctx context.Context, roomID string) ([]model.StudyRoomMessage, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, seq, room_id, sender_id, sender_username, content, created_at FROM study_room_messages WHERE room_id=? ORDER BY seq",
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StudyRoomMessage{}
	for rows.Next() {
		var m model.StudyRoomMessage
		if err := rows.Scan(&m.ID, &m.Seq, &m.RoomID, &m.SenderID, &m.SenderUsername, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SendMessage inserts a room message and touches the room's updated_at
// in one transaction. The database assigns the sequence number.
func (r *StudyRoomRepo) SendMessage(ctx context.Context, m *model.StudyRoomMessage) error {
	m.ID = uuid.NewString()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO study_room_messages (id, room_id, sender_id, sender_username, content) VALUES (?,?,?,?,?)",
		m.ID, m.RoomID, m.SenderID, m.SenderUsername, m.Content); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT seq, created_at FROM study_room_messages WHERE id=?", m.ID).Scan(&m.Seq, &m.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE study_rooms SET updated_at=NOW() WHERE id=?", m.RoomID); err != nil {
		return err
	}
	return tx.Commit()
}

// Invite creates a pending invitation for a private room. Only the
// creator may invite, and only into a private room.
func (r *StudyRoomRepo) Invite(ctx context.Context, roomID, callerID, inviteeID string) (model.StudyRoomInvitation, error) {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return model.StudyRoomInvitation{}, err
	}
	if !room.IsPrivate {
		return model.StudyRoomInvitation{}, ErrConflict
	}
	if room.CreatedBy != callerID {
		return model.StudyRoomInvitation{}, ErrForbidden
	}

	inv := model.StudyRoomInvitation{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		InviteeID: inviteeID,
		Status:    model.InvitePending,
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO study_room_invitations (id, room_id, invitee_id, status) VALUES (?,?,?,?)",
		inv.ID, inv.RoomID, inv.InviteeID, inv.Status)
	if isDupKey(err) {
		return model.StudyRoomInvitation{}, ErrDuplicate
	}
	if err != nil {
		return model.StudyRoomInvitation{}, err
	}
	err = r.DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM study_room_invitations WHERE id=?",
		inv.ID).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

// ListInvitations returns the user's pending room invitations.
func (r *StudyRoomRepo) ListInvitations(ctx context.Context, inviteeID string) ([]model.StudyRoomInvitation, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, room_id, invitee_id, status, created_at, updated_at FROM study_room_invitations WHERE invitee_id=? AND status='pending' ORDER BY created_at DESC",
		inviteeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StudyRoomInvitation{}
	for rows.Next() {
		var inv model.StudyRoomInvitation
		if err := rows.Scan(&inv.ID, &inv.RoomID, &inv.InviteeID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// AcceptInvitation flips a pending invitation to accepted and joins the
// invitee to the room in a single transaction. Only the invitee may
// accept.
func (r *StudyRoomRepo) AcceptInvitation(ctx context.Context, invitationID, userID, username string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		roomID    string
		inviteeID string
		status    string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT room_id, invitee_id, status FROM study_room_invitations WHERE id=? LIMIT 1 FOR UPDATE",
		invitationID).Scan(&roomID, &inviteeID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if inviteeID != userID {
		return ErrForbidden
	}
	if status != model.InvitePending {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE study_room_invitations SET status='accepted' WHERE id=?", invitationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO study_room_participants (room_id, user_id, username) VALUES (?,?,?)",
		roomID, userID, username); err != nil && !isDupKey(err) {
		return err
	}
	return tx.Commit()
}
