package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tutorhub/tutorhub/internal/model"
)

// ConnectionRepo provides the student–tutor invite/accept handshake and
// the durable connections it produces. Accepting an invitation flips its
// status and inserts the connection row in one transaction.
type ConnectionRepo struct{ DB *sql.DB }

func NewConnectionRepo(db *sql.DB) *ConnectionRepo { return &ConnectionRepo{DB: db} }

// Invite creates a pending invitation from a student to a tutor. One
// invitation exists per pair; repeats are ErrDuplicate.
func (r *ConnectionRepo) Invite(ctx context.Context, inv *model.ConnectionInvitation) error {
	inv.Status = model.InvitePending
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO connection_invitations (student_id, student_username, tutor_id, tutor_username, status) VALUES (?,?,?,?,?)",
		inv.StudentID, inv.StudentUsername, inv.TutorID, inv.TutorUsername, inv.Status)
	if isDupKey(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return r.DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM connection_invitations WHERE id=?",
		inv.ID).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

// ListInvitationsForTutor returns a tutor's pending invitations.
func (r *ConnectionRepo) ListInvitationsForTutor(ctx context.Context, tutorID string) ([]model.ConnectionInvitation, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, student_id, student_username, tutor_id, tutor_username, status, created_at, updated_at FROM connection_invitations WHERE tutor_id=? AND status='pending' ORDER BY created_at DESC",
		tutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ConnectionInvitation{}
	for rows.Next() {
		var inv model.ConnectionInvitation
		if err := rows.Scan(&inv.ID, &inv.StudentID, &inv.StudentUsername, &inv.TutorID,
			&inv.TutorUsername, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Resolve accepts or rejects a pending invitation and returns it in
// its resolved state. Only the invited tutor may resolve it. Accepting
// inserts the durable connection row in the same transaction.
func (r *ConnectionRepo) Resolve(ctx context.Context, invitationID uint64, tutorID, status string) (model.ConnectionInvitation, error) {
	var inv model.ConnectionInvitation
	if status != model.InviteAccepted && status != model.InviteRejected {
		return inv, ErrConflict
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return inv, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		"SELECT id, student_id, student_username, tutor_id, tutor_username, status FROM connection_invitations WHERE id=? LIMIT 1 FOR UPDATE",
		invitationID).Scan(&inv.ID, &inv.StudentID, &inv.StudentUsername, &inv.TutorID, &inv.TutorUsername, &inv.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return inv, ErrNotFound
	}
	if err != nil {
		return inv, err
	}
	if inv.TutorID != tutorID {
		return inv, ErrForbidden
	}
	if inv.Status != model.InvitePending {
		return inv, ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE connection_invitations SET status=? WHERE id=?", status, invitationID); err != nil {
		return inv, err
	}
	if status == model.InviteAccepted {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO student_tutor_connections (student_id, student_username, tutor_id, tutor_username) VALUES (?,?,?,?)",
			inv.StudentID, inv.StudentUsername, inv.TutorID, inv.TutorUsername); err != nil && !isDupKey(err) {
			return inv, err
		}
	}
	if err := tx.Commit(); err != nil {
		return inv, err
	}
	inv.Status = status
	return inv, nil
}

// ListForUser returns the user's connections from either side of the
// pairing.
func (r *ConnectionRepo) ListForUser(ctx context.Context, userID string) ([]model.StudentTutorConnection, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT student_id, student_username, tutor_id, tutor_username, created_at FROM student_tutor_connections WHERE student_id=? OR tutor_id=? ORDER BY created_at DESC",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StudentTutorConnection{}
	for rows.Next() {
		var c model.StudentTutorConnection
		if err := rows.Scan(&c.StudentID, &c.StudentUsername, &c.TutorID, &c.TutorUsername, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
