package domain

import "time"

// TicketEventType identifies a ticket lifecycle notification
type TicketEventType string

const (
	TicketEventReserved  TicketEventType = "ticket.reserved"
	TicketEventPaid      TicketEventType = "ticket.paid"
	TicketEventCancelled TicketEventType = "ticket.cancelled"
	TicketEventExpired   TicketEventType = "ticket.expired"
	TicketEventRedeemed  TicketEventType = "ticket.redeemed"
)

// TicketEvent is the payload published to the notification stream
// after a lifecycle transition has been committed.
type TicketEvent struct {
	EventID    string          `json:"event_id"`
	Type       TicketEventType `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Ticket     *Ticket         `json:"ticket"`
}

// NewTicketEvent creates a notification event for a committed transition
func NewTicketEvent(eventType TicketEventType, ticket *Ticket, eventID string) *TicketEvent {
	return &TicketEvent{
		EventID:    eventID,
		Type:       eventType,
		OccurredAt: time.Now(),
		Ticket:     ticket,
	}
}

// Key returns the partition key for the event stream.
// Keyed by ticket type so all movements of one inventory pool stay ordered.
func (e *TicketEvent) Key() string {
	if e.Ticket != nil {
		return e.Ticket.TicketTypeID
	}
	return e.EventID
}
