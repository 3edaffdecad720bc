package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tutorhub/tutorhub/internal/model"
)

// ProfileRepo provides access to profiles and the tutor_subjects join
// table. Updating a tutor's specialties and syncing tutor_subjects is a
// single transaction so the two can never drift apart.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// ProfilePatch carries the updatable profile fields. Nil means "leave
// unchanged". Role is deliberately absent: it is immutable after signup.
type ProfilePatch struct {
	Username    *string
	HourlyRate  *float64
	ClearRate   bool
	Bio         *string
	Specialties *[]string
	Struggles   *[]string
}

const profileCols = "id,user_id,username,role,email,hourly_rate,specialties,struggles,bio,created_at,updated_at"

func scanProfile(row interface{ Scan(...any) error }) (model.Profile, error) {
	var (
		p          model.Profile
		rate       sql.NullFloat64
		bio        sql.NullString
		specs, str []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.Role, &p.Email,
		&rate, &specs, &str, &bio, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if rate.Valid {
		p.HourlyRate = &rate.Float64
	}
	if bio.Valid {
		p.Bio = &bio.String
	}
	if err := json.Unmarshal(specs, &p.Specialties); err != nil {
		return p, fmt.Errorf("decode specialties: %w", err)
	}
	if err := json.Unmarshal(str, &p.Struggles); err != nil {
		return p, fmt.Errorf("decode struggles: %w", err)
	}
	return p, nil
}

// Create inserts a profile row and, for tutors, the matching
// tutor_subjects rows, all in one transaction.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	if p.Specialties == nil {
		p.Specialties = []string{}
	}
	if p.Struggles == nil {
		p.Struggles = []string{}
	}
	specs, err := json.Marshal(p.Specialties)
	if err != nil {
		return err
	}
	str, err := json.Marshal(p.Struggles)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id, username, role, email, hourly_rate, specialties, struggles, bio) VALUES (?,?,?,?,?,?,?,?)",
		p.UserID, p.Username, p.Role, p.Email, p.HourlyRate, specs, str, p.Bio)
	if err != nil {
		if isDupKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)

	if p.Role == model.RoleTutor {
		for _, s := range p.Specialties {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tutor_subjects (tutor_id, subject) VALUES (?,?)", p.UserID, s); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetByUserID fetches the profile belonging to an account.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (model.Profile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+profileCols+" FROM profiles WHERE user_id=? LIMIT 1", userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// GetByEmail fetches a profile by contact email. Used to resolve
// study-room invitees.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+profileCols+" FROM profiles WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email)))
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// Search returns profiles whose username contains the query, optionally
// restricted to one role. The LIKE match is case-insensitive under the
// table collation.
func (r *ProfileRepo) Search(ctx context.Context, query, role string, limit int) ([]model.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := "SELECT " + profileCols + " FROM profiles WHERE username LIKE ?"
	args := []any{"%" + query + "%"}
	if role != "" {
		q += " AND role=?"
		args = append(args, role)
	}
	q += " ORDER BY username LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SubjectsFor returns the registered subjects of a tutor.
func (r *ProfileRepo) SubjectsFor(ctx context.Context, tutorID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT subject FROM tutor_subjects WHERE tutor_id=? ORDER BY subject", tutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update applies a patch to the profile row. When the patch carries a new
// specialties set, tutor_subjects is diffed against the current rows and
// the inserts/deletes happen in the same transaction as the profile
// update, so a crash can never leave the two inconsistent.
func (r *ProfileRepo) Update(ctx context.Context, userID string, patch ProfilePatch) (model.Profile, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+profileCols+" FROM profiles WHERE user_id=? LIMIT 1 FOR UPDATE", userID)
	current, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}

	if patch.Username != nil {
		current.Username = *patch.Username
	}
	if patch.ClearRate {
		current.HourlyRate = nil
	} else if patch.HourlyRate != nil {
		current.HourlyRate = patch.HourlyRate
	}
	if patch.Bio != nil {
		current.Bio = patch.Bio
	}
	if patch.Struggles != nil {
		current.Struggles = *patch.Struggles
	}

	var added, removed []string
	if patch.Specialties != nil {
		added, removed = diffSubjects(current.Specialties, *patch.Specialties)
		current.Specialties = *patch.Specialties
	}

	specs, err := json.Marshal(current.Specialties)
	if err != nil {
		return model.Profile{}, err
	}
	str, err := json.Marshal(current.Struggles)
	if err != nil {
		return model.Profile{}, err
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE profiles SET username=?, hourly_rate=?, bio=?, specialties=?, struggles=? WHERE user_id=?",
		current.Username, current.HourlyRate, current.Bio, specs, str, userID)
	if err != nil {
		if isDupKey(err) {
			return model.Profile{}, ErrDuplicate
		}
		return model.Profile{}, err
	}

	if current.Role == model.RoleTutor && patch.Specialties != nil {
		for _, s := range added {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tutor_subjects (tutor_id, subject) VALUES (?,?)", userID, s); err != nil && !isDupKey(err) {
				return model.Profile{}, err
			}
		}
		for _, s := range removed {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM tutor_subjects WHERE tutor_id=? AND subject=?", userID, s); err != nil {
				return model.Profile{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Profile{}, err
	}
	return current, nil
}

// diffSubjects computes which subjects were added to and removed from the
// old set, ignoring duplicates within either slice.
func diffSubjects(old, next []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, s := range next {
		if !nextSet[s] {
			nextSet[s] = true
			if !oldSet[s] {
				added = append(added, s)
			}
		}
	}
	for _, s := range old {
		if !nextSet[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}
