package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tutorhub/tutorhub/internal/model"
)

// MeetingRepo provides access to meetings. Status changes go through
// UpdateStatus, which enforces the transition table from the model
// package; there is no unconditional overwrite path.
type MeetingRepo struct{ DB *sql.DB }

func NewMeetingRepo(db *sql.DB) *MeetingRepo { return &MeetingRepo{DB: db} }

const meetingCols = "id, student_id, student_username, tutor_id, tutor_username, subject, start_time, end_time, status, notes, created_at, updated_at"

func scanMeeting(row interface{ Scan(...any) error }) (model.Meeting, error) {
	var m model.Meeting
	err := row.Scan(&m.ID, &m.StudentID, &m.StudentUsername, &m.TutorID, &m.TutorUsername,
		&m.Subject, &m.StartTime, &m.EndTime, &m.Status, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// Create inserts a meeting with status pending. Usernames are resolved
// and denormalized by the caller.
func (r *MeetingRepo) Create(ctx context.Context, m *model.Meeting) error {
	m.Status = model.MeetingPending
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO meetings (student_id, student_username, tutor_id, tutor_username, subject, start_time, end_time, status, notes) VALUES (?,?,?,?,?,?,?,?,?)",
		m.StudentID, m.StudentUsername, m.TutorID, m.TutorUsername, m.Subject,
		m.StartTime, m.EndTime, m.Status, m.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return r.DB.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM meetings WHERE id=?", m.ID).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// GetByID fetches a single meeting.
func (r *MeetingRepo) GetByID(ctx context.Context, id uint64) (model.Meeting, error) {
	m, err := scanMeeting(r.DB.QueryRowContext(ctx,
		"SELECT "+meetingCols+" FROM meetings WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

// ListForUser returns meetings where the user is the student or the
// tutor, ordered by start time.
func (r *MeetingRepo) ListForUser(ctx context.Context, userID string) ([]model.Meeting, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+meetingCols+" FROM meetings WHERE student_id=? OR tutor_id=? ORDER BY start_time",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateStatus moves a meeting to a new status. The caller must be a
// participant, and the transition must be legal; anything else fails
// before the write (ErrForbidden / ErrConflict). The row is locked for
// the duration so two racing updates cannot both pass the check.
func (r *MeetingRepo) UpdateStatus(ctx context.Context, meetingID uint64, callerID, status string) (model.Meeting, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Meeting{}, err
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanMeeting(tx.QueryRowContext(ctx,
		"SELECT "+meetingCols+" FROM meetings WHERE id=? LIMIT 1 FOR UPDATE", meetingID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Meeting{}, ErrNotFound
	}
	if err != nil {
		return model.Meeting{}, err
	}
	if m.StudentID != callerID && m.TutorID != callerID {
		return model.Meeting{}, ErrForbidden
	}
	if !model.CanTransitionMeeting(m.Status, status) {
		return model.Meeting{}, ErrConflict
	}
	// Only the tutor answers a pending request.
	if (status == model.MeetingAccepted || status == model.MeetingRejected) && callerID != m.TutorID {
		return model.Meeting{}, ErrForbidden
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE meetings SET status=?, updated_at=NOW() WHERE id=?", status, meetingID); err != nil {
		return model.Meeting{}, err
	}
	m, err = scanMeeting(tx.QueryRowContext(ctx,
		"SELECT "+meetingCols+" FROM meetings WHERE id=? LIMIT 1", meetingID))
	if err != nil {
		return model.Meeting{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Meeting{}, err
	}
	return m, nil
}
