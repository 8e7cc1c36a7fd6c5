package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d *userDoc) toUser() *store.User {
	return &store.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

type pendingUserDoc struct {
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"passwordHash"`
	OTP          string    `bson:"otp"`
	ExpiresAt    time.Time `bson:"otpExpires"`
}

type answerDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Text       string             `bson:"text"`
	AuthorID   string             `bson:"authorId"`
	AuthorName string             `bson:"authorName"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

type questionDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Text       string             `bson:"text"`
	AuthorID   string             `bson:"authorId"`
	AuthorName string             `bson:"authorName"`
	Answers    []answerDoc        `bson:"answers"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d *questionDoc) toQuestion() store.Question {
	q := store.Question{
		ID:         d.ID.Hex(),
		Text:       d.Text,
		AuthorID:   d.AuthorID,
		AuthorName: d.AuthorName,
		Answers:    make([]store.Answer, 0, len(d.Answers)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, a := range d.Answers {
		q.Answers = append(q.Answers, store.Answer{
			ID:         a.ID.Hex(),
			Text:       a.Text,
			AuthorID:   a.AuthorID,
			AuthorName: a.AuthorName,
			CreatedAt:  a.CreatedAt,
		})
	}
	return q
}

type eventDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Title           string             `bson:"title"`
	Description     string             `bson:"description"`
	Date            time.Time          `bson:"date"`
	Time            string             `bson:"time"`
	Location        string             `bson:"location"`
	Category        string             `bson:"category"`
	CoverImage      string             `bson:"coverImage"`
	CreatorID       string             `bson:"creator"`
	RegisteredUsers []string           `bson:"registeredUsers"`
	LiveCount       int64              `bson:"liveCount"`
	QnA             []questionDoc      `bson:"qna"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *eventDoc) toEvent() *store.Event {
	ev := &store.Event{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Description:     d.Description,
		Date:            d.Date,
		Time:            d.Time,
		Location:        d.Location,
		Category:        store.Category(d.Category),
		CoverImage:      d.CoverImage,
		CreatorID:       d.CreatorID,
		RegisteredUsers: append([]string{}, d.RegisteredUsers...),
		LiveCount:       d.LiveCount,
		QnA:             make([]store.Question, 0, len(d.QnA)),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for i := range d.QnA {
		ev.QnA = append(ev.QnA, d.QnA[i].toQuestion())
	}
	return ev
}

func newEventDoc(ev *store.Event, now time.Time) *eventDoc {
	category := string(ev.Category)
	if category == "" {
		category = string(store.CategoryOther)
	}
	return &eventDoc{
		ID:              primitive.NewObjectID(),
		Title:           ev.Title,
		Description:     ev.Description,
		Date:            ev.Date.UTC(),
		Time:            ev.Time,
		Location:        ev.Location,
		Category:        category,
		CoverImage:      ev.CoverImage,
		CreatorID:       ev.CreatorID,
		RegisteredUsers: []string{},
		QnA:             []questionDoc{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// parseID converts a hex id; malformed ids are treated as missing records.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}
