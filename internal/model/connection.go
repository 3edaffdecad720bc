package model

import "time"

// ConnectionInvitation is the invite half of the student–tutor handshake.
// A student invites a tutor; accepting produces a durable
// StudentTutorConnection in the same transaction. One invitation exists
// per (student, tutor) pair.
type ConnectionInvitation struct {
	ID              uint64    `json:"id"`
	StudentID       string    `json:"student_id"`
	StudentUsername string    `json:"student_username"`
	TutorID         string    `json:"tutor_id"`
	TutorUsername   string    `json:"tutor_username"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StudentTutorConnection is a durable pairing used to scope the
// "your students" and "your tutors" views. Rows are only created by
// accepting a ConnectionInvitation.
type StudentTutorConnection struct {
	StudentID       string    `json:"student_id"`
	StudentUsername string    `json:"student_username"`
	TutorID         string    `json:"tutor_id"`
	TutorUsername   string    `json:"tutor_username"`
	CreatedAt       time.Time `json:"created_at"`
}
