package proto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound is the envelope for messages coming from the client.
// ID correlates a request with its ack and is zero when no ack is wanted.
type Inbound struct {
	Type string          `json:"type"`
	ID   int64           `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSubscribe = "subscribeAttendance"
	InboundTypeJoin      = "joinEventRoom"
	InboundTypeLeave     = "leaveEventRoom"

	OutboundTypeAck   = "ack"
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventAttendanceUpdate = "attendanceUpdate"
)

// ErrMissingEventID is returned when a payload carries no event id.
var ErrMissingEventID = errors.New("eventId is required")

// EventRoomData names the event a request refers to.
type EventRoomData struct {
	EventID string `json:"eventId"`
}

// ParseEventID accepts either a bare JSON string or {"eventId": "..."}.
func ParseEventID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", ErrMissingEventID
	}

	var id string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &id); err != nil {
			return "", err
		}
	} else {
		var room EventRoomData
		if err := json.Unmarshal(data, &room); err != nil {
			return "", err
		}
		id = room.EventID
	}

	if id == "" {
		return "", ErrMissingEventID
	}
	return id, nil
}

// ScalarText returns the text of a JSON scalar (string, number or bool)
// and "" for objects, arrays, null or invalid input.
func ScalarText(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '{' || data[0] == '[' || bytes.Equal(data, []byte("null")) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ""
		}
		return s
	}
	if !json.Valid(data) {
		return ""
	}
	return string(data)
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	ID    int64  `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AttendanceData is the payload of attendanceUpdate events and subscribe acks.
type AttendanceData struct {
	EventID    string `json:"eventId"`
	Attendance int64  `json:"attendance"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
