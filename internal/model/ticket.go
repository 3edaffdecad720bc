package model

import "time"

// Ticket is a student's open help request. The student's username is
// denormalized onto the row at creation time so listings never join back
// to profiles. LastResponseAt is bumped whenever a response is added.
//
// Fields:
//  ID              – primary key identifier.
//  StudentID       – owning student's account UUID.
//  StudentUsername – denormalized owner handle.
//  Subject         – one of AvailableSubjects.
//  Topic           – short summary line.
//  Description     – full request text.
//  Closed          – set when the student closes the ticket.
//  LastResponseAt  – time of the most recent response (null if none).
//  CreatedAt       – timestamp of creation.
//  Responses       – nested replies, populated by list queries.
type Ticket struct {
	ID              uint64     `json:"id"`
	StudentID       string     `json:"student_id"`
	StudentUsername string     `json:"student_username"`
	Subject         string     `json:"subject"`
	Topic           string     `json:"topic"`
	Description     string     `json:"description"`
	Closed          bool       `json:"closed"`
	LastResponseAt  *time.Time `json:"last_response_at"`
	CreatedAt       time.Time  `json:"created_at"`
	Responses       []Response `json:"responses"`
}

// Response is a reply to a ticket, authored by either the owning student
// or a tutor. Exactly one of the tutor/student column pairs is set,
// matching the author's role. ParentID allows threading under another
// response on the same ticket.
type Response struct {
	ID              uint64    `json:"id"`
	TicketID        uint64    `json:"ticket_id"`
	TutorID         *string   `json:"tutor_id"`
	TutorUsername   *string   `json:"tutor_username"`
	StudentID       *string   `json:"student_id"`
	StudentUsername *string   `json:"student_username"`
	Content         string    `json:"content"`
	ParentID        *uint64   `json:"parent_id"`
	CreatedAt       time.Time `json:"created_at"`
}
