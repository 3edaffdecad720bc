package model

import "time"

// Meeting statuses. A meeting starts pending and moves through the
// transition table below; rejected, completed and cancelled are terminal.
const (
	MeetingPending   = "pending"
	MeetingAccepted  = "accepted"
	MeetingRejected  = "rejected"
	MeetingCompleted = "completed"
	MeetingCancelled = "cancelled"
)

// meetingTransitions is the full set of legal status transitions.
// Status updates outside this table are rejected at the access layer,
// so a completed meeting can never flip back to pending.
var meetingTransitions = map[string][]string{
	MeetingPending:  {MeetingAccepted, MeetingRejected, MeetingCancelled},
	MeetingAccepted: {MeetingCompleted, MeetingCancelled},
}

// ValidMeetingStatus reports whether s is a known meeting status.
func ValidMeetingStatus(s string) bool {
	switch s {
	case MeetingPending, MeetingAccepted, MeetingRejected, MeetingCompleted, MeetingCancelled:
		return true
	}
	return false
}

// CanTransitionMeeting reports whether a meeting in status from may move
// to status to.
func CanTransitionMeeting(from, to string) bool {
	for _, next := range meetingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Meeting is a scheduled, time-boxed session request between one student
// and one tutor. Both usernames are denormalized at creation.
//
// Fields:
//  ID              – primary key identifier.
//  StudentID       – requesting student's account UUID.
//  StudentUsername – denormalized student handle.
//  TutorID         – target tutor's account UUID.
//  TutorUsername   – denormalized tutor handle.
//  Subject         – one of AvailableSubjects.
//  StartTime       – start of the requested slot.
//  EndTime         – end of the requested slot; strictly after StartTime.
//  Status          – current lifecycle status.
//  Notes           – optional free-form note from the student.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – bumped on every status change.
type Meeting struct {
	ID              uint64    `json:"id"`
	StudentID       string    `json:"student_id"`
	StudentUsername string    `json:"student_username"`
	TutorID         string    `json:"tutor_id"`
	TutorUsername   string    `json:"tutor_username"`
	Subject         string    `json:"subject"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
