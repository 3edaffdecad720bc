package model

import "time"

// Profile is the domain identity record layered on top of a raw account.
// Exactly one profile exists per user; the pairing is enforced by a unique
// index on profiles.user_id. Specialties apply to tutors, struggles to
// students; both are stored as JSON arrays.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – owning account UUID (unique).
//  Username    – unique display handle.
//  Role        – copy of users.role; immutable after creation.
//  Email       – contact email, used to resolve invitees.
//  HourlyRate  – tutor rate in whole currency units (null for students).
//  Specialties – subjects a tutor teaches; mirrored into tutor_subjects.
//  Struggles   – subjects a student wants help with.
//  Bio         – free-form description (nullable).
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type Profile struct {
	ID          uint64    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Email       string    `json:"email"`
	HourlyRate  *float64  `json:"hourly_rate"`
	Specialties []string  `json:"specialties"`
	Struggles   []string  `json:"struggles"`
	Bio         *string   `json:"bio"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TutorSubject is a row of the tutor_subjects join table. The set of rows
// for a tutor always equals that tutor's profile specialties; the profile
// update transaction keeps the two in sync.
type TutorSubject struct {
	TutorID string `json:"tutor_id"` // tutor_subjects.tutor_id
	Subject string `json:"subject"`  // tutor_subjects.subject
}
