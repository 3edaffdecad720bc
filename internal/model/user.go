package model

import "time"

// Roles stored in users.role and profiles.role. The role is fixed at
// registration; no update path changes it afterwards.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// ValidRole reports whether r is one of the two account roles.
func ValidRole(r string) bool {
	return r == RoleStudent || r == RoleTutor
}

// User represents an account record as stored in the `users` table.
// Users are keyed by a UUID string so that identifiers stay stable
// across the denormalized columns (student_id, tutor_id, sender_id).
//
// Fields:
//  ID           – primary key, UUID string.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – account role ("student" or "tutor").
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and carries expiry and revocation
// metadata. The plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
