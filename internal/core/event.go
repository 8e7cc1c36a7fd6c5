package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAttendanceUpdate carries the new live count of an event.
	EventAttendanceUpdate EventKind = iota
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind       EventKind
	EventID    string
	Attendance int64
}

// AttendanceUpdate builds an attendance event.
func AttendanceUpdate(eventID string, attendance int64) *Event {
	return &Event{Kind: EventAttendanceUpdate, EventID: eventID, Attendance: attendance}
}
