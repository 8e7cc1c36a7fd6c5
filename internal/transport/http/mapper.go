package http

import (
	"time"

	"github.com/vovakirdan/eventlify-server/internal/core"
	"github.com/vovakirdan/eventlify-server/internal/live"
	"github.com/vovakirdan/eventlify-server/internal/proto"
	"github.com/vovakirdan/eventlify-server/internal/store"
)

func outboundFromEvent(ev *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventAttendanceUpdate,
		Data:  proto.AttendanceData{EventID: ev.EventID, Attendance: ev.Attendance},
	}
}

func ackAttendance(id int64, a live.Attendance) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeAck,
		ID:   id,
		Data: proto.AttendanceData{EventID: a.EventID, Attendance: a.Attendance},
	}
}

func protoError(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AnswerResponse represents an answer in API responses.
type AnswerResponse struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"author"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// QuestionResponse represents a Q&A entry in API responses.
type QuestionResponse struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	AuthorID   string           `json:"author"`
	AuthorName string           `json:"authorName"`
	Answers    []AnswerResponse `json:"answers"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Date            time.Time          `json:"date"`
	Time            string             `json:"time"`
	Location        string             `json:"location"`
	Category        string             `json:"category"`
	CoverImage      string             `json:"coverImage"`
	CreatorID       string             `json:"creator"`
	RegisteredUsers []string           `json:"registeredUsers"`
	LiveCount       int64              `json:"liveCount"`
	QnA             []QuestionResponse `json:"qna"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func questionResponse(q *store.Question) QuestionResponse {
	answers := make([]AnswerResponse, 0, len(q.Answers))
	for _, a := range q.Answers {
		answers = append(answers, AnswerResponse{
			ID:         a.ID,
			Text:       a.Text,
			AuthorID:   a.AuthorID,
			AuthorName: a.AuthorName,
			CreatedAt:  a.CreatedAt,
		})
	}
	return QuestionResponse{
		ID:         q.ID,
		Text:       q.Text,
		AuthorID:   q.AuthorID,
		AuthorName: q.AuthorName,
		Answers:    answers,
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
	}
}

func eventResponse(ev *store.Event) EventResponse {
	registered := ev.RegisteredUsers
	if registered == nil {
		registered = []string{}
	}
	qna := make([]QuestionResponse, 0, len(ev.QnA))
	for i := range ev.QnA {
		qna = append(qna, questionResponse(&ev.QnA[i]))
	}
	return EventResponse{
		ID:              ev.ID,
		Title:           ev.Title,
		Description:     ev.Description,
		Date:            ev.Date,
		Time:            ev.Time,
		Location:        ev.Location,
		Category:        string(ev.Category),
		CoverImage:      ev.CoverImage,
		CreatorID:       ev.CreatorID,
		RegisteredUsers: registered,
		LiveCount:       ev.LiveCount,
		QnA:             qna,
		CreatedAt:       ev.CreatedAt,
		UpdatedAt:       ev.UpdatedAt,
	}
}

func eventsResponse(events []*store.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse(ev))
	}
	return out
}
