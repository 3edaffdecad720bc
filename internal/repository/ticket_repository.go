package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tutorhub/tutorhub/internal/model"
)

// TicketRepo provides access to tickets and their responses. Responses
// are nested under tickets by the list queries; the response insert and
// the ticket's last_response_at bump share one transaction.
type TicketRepo struct{ DB *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{DB: db} }

// Create inserts a ticket row. The caller resolves and denormalizes the
// student's username beforehand.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tickets (student_id, student_username, subject, topic, description) VALUES (?,?,?,?,?)",
		t.StudentID, t.StudentUsername, t.Subject, t.Topic, t.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)

	return r.DB.QueryRowContext(ctx,
		"SELECT closed, last_response_at, created_at FROM tickets WHERE id=?",
		t.ID).Scan(&t.Closed, &t.LastResponseAt, &t.CreatedAt)
}

// GetByID fetches a single ticket without nested responses.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	var t model.Ticket
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, student_id, student_username, subject, topic, description, closed, last_response_at, created_at FROM tickets WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.StudentID, &t.StudentUsername, &t.Subject, &t.Topic,
		&t.Description, &t.Closed, &t.LastResponseAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// ListByStudent returns all of a student's tickets, newest first, with
// responses nested.
func (r *TicketRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Ticket, error) {
	return r.list(ctx,
		"SELECT id, student_id, student_username, subject, topic, description, closed, last_response_at, created_at FROM tickets WHERE student_id=? ORDER BY created_at DESC",
		studentID)
}

// ListOpenBySubjects returns open tickets whose subject is in the given
// set, newest first, with responses nested. An empty set yields an empty
// list: a tutor with no registered subjects sees no tickets.
func (r *TicketRepo) ListOpenBySubjects(ctx context.Context, subjects []string) ([]model.Ticket, error) {
	if len(subjects) == 0 {
		return []model.Ticket{}, nil
	}
	placeholders := strings.Repeat("?,", len(subjects))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(subjects))
	for i, s := range subjects {
		args[i] = s
	}
	q := fmt.Sprintf(
		"SELECT id, student_id, student_username, subject, topic, description, closed, last_response_at, created_at FROM tickets WHERE closed=0 AND subject IN (%s) ORDER BY created_at DESC",
		placeholders)
	return r.list(ctx, q, args...)
}

func (r *TicketRepo) list(ctx context.Context, query string, args ...any) ([]model.Ticket, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []model.Ticket{}
	index := map[uint64]int{}
	ids := []any{}
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.StudentID, &t.StudentUsername, &t.Subject, &t.Topic,
			&t.Description, &t.Closed, &t.LastResponseAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Responses = []model.Response{}
		index[t.ID] = len(tickets)
		tickets = append(tickets, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return tickets, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	respRows, err := r.DB.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, ticket_id, tutor_id, tutor_username, student_id, student_username, content, parent_id, created_at FROM responses WHERE ticket_id IN (%s) ORDER BY created_at",
		placeholders), ids...)
	if err != nil {
		return nil, err
	}
	defer respRows.Close()

	for respRows.Next() {
		var resp model.Response
		if err := respRows.Scan(&resp.ID, &resp.TicketID, &resp.TutorID, &resp.TutorUsername,
			&resp.StudentID, &resp.StudentUsername, &resp.Content, &resp.ParentID, &resp.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[resp.TicketID]; ok {
			tickets[i].Responses = append(tickets[i].Responses, resp)
		}
	}
	return tickets, respRows.Err()
}

// Close marks a ticket closed. Only the owning student may close it.
func (r *TicketRepo) Close(ctx context.Context, ticketID uint64, studentID string) error {
	var ownerID string
	err := r.DB.QueryRowContext(ctx,
		"SELECT student_id FROM tickets WHERE id=? LIMIT 1", ticketID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != studentID {
		return ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE tickets SET closed=1 WHERE id=?", ticketID)
	return err
}

// AddResponse inserts a response and bumps the parent ticket's
// last_response_at in one transaction. When the author is a student the
// ticket must belong to them; any other student's attempt fails with
// ErrForbidden before the insert.
func (r *TicketRepo) AddResponse(ctx context.Context, resp *model.Response) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var ownerID string
	err = tx.QueryRowContext(ctx,
		"SELECT student_id FROM tickets WHERE id=? LIMIT 1 FOR UPDATE", resp.TicketID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if resp.StudentID != nil && *resp.StudentID != ownerID {
		return ErrForbidden
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO responses (ticket_id, tutor_id, tutor_username, student_id, student_username, content, parent_id) VALUES (?,?,?,?,?,?,?)",
		resp.TicketID, resp.TutorID, resp.TutorUsername, resp.StudentID, resp.StudentUsername, resp.Content, resp.ParentID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	resp.ID = uint64(id)

	if _, err := tx.ExecContext(ctx,
		"UPDATE tickets SET last_response_at=NOW() WHERE id=?", resp.TicketID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at FROM responses WHERE id=?", resp.ID).Scan(&resp.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
