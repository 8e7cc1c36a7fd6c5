package core

// CommandKind describes what a caller wants the hub to do.
type CommandKind int

const (
	// CommandRegister adds a connection to the registry.
	CommandRegister CommandKind = iota
	// CommandUnregister removes a connection and releases its rooms.
	CommandUnregister
	// CommandJoinRoom makes the client a member of an event room.
	CommandJoinRoom
	// CommandLeaveRoom removes the client from an event room.
	CommandLeaveRoom
	// CommandBroadcast delivers an event to every registered client.
	CommandBroadcast
	// CommandStats reports registry sizes.
	CommandStats
)

// Command is a request processed by the hub goroutine.
type Command struct {
	Kind    CommandKind
	Client  *Client
	EventID string
	Event   *Event
	reply   chan Result
}

// Result is the hub's answer to a command.
type Result struct {
	// Changed reports a membership transition (join/leave/register/unregister).
	Changed bool
	// Released lists the rooms a client held when it was unregistered.
	Released []string
	// Delivered counts clients that received a broadcast.
	Delivered int
	Stats     Stats
	// Err rejects the command without changing the registry.
	Err error
}

// Stats describes the registry at a point in time.
type Stats struct {
	Clients     int
	Rooms       int
	Memberships int
	// RoomSize is the member count of the room asked about, if any.
	RoomSize int
}
