package domain

// Role represents the caller's authorization level
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// IsValid checks if the role is a known Role
func (r Role) IsValid() bool {
	return r == RoleAttendee || r == RoleOrganizer || r == RoleAdmin
}

// Actor identifies the authenticated caller of an operation.
// Identity is established upstream; only the role check happens here.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the actor may act on tickets it does not own
func (a Actor) IsStaff() bool {
	return a.Role == RoleOrganizer || a.Role == RoleAdmin
}

// CanManage reports whether the actor may cancel or inspect the given
// ticket. typeOrganizerID is the organizer that owns the ticket's type:
// organizer access is scoped to their own types, not tickets sold by
// anyone else.
func (a Actor) CanManage(t *Ticket, typeOrganizerID string) bool {
	if t.BelongsTo(a.UserID) || a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleOrganizer && typeOrganizerID != "" && a.UserID == typeOrganizerID
}
