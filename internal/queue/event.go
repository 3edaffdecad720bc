// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into notification log entries.
package queue

// Notification event kinds published to the notifications queue.
const (
	KindMeetingRequested   = "meeting.requested"
	KindMeetingStatus      = "meeting.status_changed"
	KindConnectionInvited  = "connection.invited"
	KindConnectionResolved = "connection.resolved"
	KindTicketResponse     = "ticket.response"
)

// NotificationEvent is published when something happens that the other
// party should hear about. It carries enough context for downstream
// consumers to log or notify without querying the primary database.
type NotificationEvent struct {
	Kind        string `json:"kind"`
	ActorID     string `json:"actor_id"`
	ActorName   string `json:"actor_name,omitempty"`
	RecipientID string `json:"recipient_id"`
	MeetingID   uint64 `json:"meeting_id,omitempty"`
	TicketID    uint64 `json:"ticket_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Status      string `json:"status,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
