package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vovakirdan/eventlify-server/internal/store"
)

var newestFirst = options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, ev *store.Event) (*store.Event, error) {
	doc := newEventDoc(ev, time.Now().UTC())
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return doc.toEvent(), nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*store.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc eventDoc
	if err := s.events.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return doc.toEvent(), nil
}

// ListEvents returns all events, newest date first.
func (s *Store) ListEvents(ctx context.Context) ([]*store.Event, error) {
	return s.findEvents(ctx, bson.M{})
}

// ListEventsRegistered returns events the user registered for.
func (s *Store) ListEventsRegistered(ctx context.Context, userID string) ([]*store.Event, error) {
	return s.findEvents(ctx, bson.M{"registeredUsers": userID})
}

// ListEventsCreated returns events created by the user.
func (s *Store) ListEventsCreated(ctx context.Context, userID string) ([]*store.Event, error) {
	return s.findEvents(ctx, bson.M{"creator": userID})
}

func (s *Store) findEvents(ctx context.Context, filter bson.M) ([]*store.Event, error) {
	cursor, err := s.events.Find(ctx, filter, newestFirst)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]*store.Event, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].toEvent())
	}
	return events, nil
}

// UpdateEvent applies the non-nil fields of upd.
func (s *Store) UpdateEvent(ctx context.Context, id string, upd store.EventUpdate) (*store.Event, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Date != nil {
		set["date"] = upd.Date.UTC()
	}
	if upd.Time != nil {
		set["time"] = *upd.Time
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Category != nil {
		set["category"] = string(*upd.Category)
	}
	if upd.CoverImage != nil {
		set["coverImage"] = *upd.CoverImage
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc eventDoc
	err = s.events.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return doc.toEvent(), nil
}

// DeleteEvent removes an event; registrations and Q&A go with the document.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := s.events.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddRegistration registers a user for an event.
func (s *Store) AddRegistration(ctx context.Context, eventID, userID string) error {
	oid, err := parseID(eventID)
	if err != nil {
		return err
	}

	res, err := s.events.UpdateOne(ctx,
		bson.M{"_id": oid, "registeredUsers": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"registeredUsers": userID}},
	)
	if err != nil {
		return fmt.Errorf("add registration: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.eventExists(ctx, oid); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

// RemoveRegistration unregisters a user from an event.
func (s *Store) RemoveRegistration(ctx context.Context, eventID, userID string) error {
	oid, err := parseID(eventID)
	if err != nil {
		return err
	}

	res, err := s.events.UpdateOne(ctx,
		bson.M{"_id": oid, "registeredUsers": userID},
		bson.M{"$pull": bson.M{"registeredUsers": userID}},
	)
	if err != nil {
		return fmt.Errorf("remove registration: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) eventExists(ctx context.Context, oid primitive.ObjectID) error {
	n, err := s.events.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== QnAStore implementation ====

// AddQuestion pushes a question onto the event's Q&A board.
func (s *Store) AddQuestion(ctx context.Context, eventID string, q *store.Question) (*store.Question, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := questionDoc{
		ID:         primitive.NewObjectID(),
		Text:       q.Text,
		AuthorID:   q.AuthorID,
		AuthorName: q.AuthorName,
		Answers:    []answerDoc{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := s.events.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"qna": doc}})
	if err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}

	created := doc.toQuestion()
	return &created, nil
}

// AddAnswer appends an answer to one question of the event.
func (s *Store) AddAnswer(ctx context.Context, eventID, questionID string, a *store.Answer) (*store.Question, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return nil, err
	}
	qid, err := parseID(questionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	answer := answerDoc{
		ID:         primitive.NewObjectID(),
		Text:       a.Text,
		AuthorID:   a.AuthorID,
		AuthorName: a.AuthorName,
		CreatedAt:  now,
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"qna": 1})

	var doc eventDoc
	err = s.events.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "qna._id": qid},
		bson.M{
			"$push": bson.M{"qna.$.answers": answer},
			"$set":  bson.M{"qna.$.updatedAt": now},
		},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("add answer: %w", err)
	}

	for i := range doc.QnA {
		if doc.QnA[i].ID == qid {
			q := doc.QnA[i].toQuestion()
			return &q, nil
		}
	}
	return nil, store.ErrNotFound
}

// ==== LiveCountStore implementation ====

// GetLiveCount returns the persisted live count of an event.
func (s *Store) GetLiveCount(ctx context.Context, eventID string) (int64, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	var doc struct {
		LiveCount int64 `bson:"liveCount"`
	}
	opts := options.FindOne().SetProjection(bson.M{"liveCount": 1})
	if err := s.events.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("find live count: %w", err)
	}
	return doc.LiveCount, nil
}

// IncrementLiveCount adds delta with an update pipeline so the floor at
// zero is applied by the server in the same atomic document update.
func (s *Store) IncrementLiveCount(ctx context.Context, eventID string, delta int64) (int64, error) {
	oid, err := parseID(eventID)
	if err != nil {
		return 0, err
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "liveCount", Value: liveCountExpr(delta)}}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"liveCount": 1})

	var doc struct {
		LiveCount int64 `bson:"liveCount"`
	}
	if err := s.events.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("increment live count: %w", err)
	}
	return doc.LiveCount, nil
}

// liveCountExpr builds max(0, ifNull(liveCount, 0) + delta).
func liveCountExpr(delta int64) bson.D {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$liveCount", int64(0)}}}
	sum := bson.D{{Key: "$add", Value: bson.A{current, delta}}}
	return bson.D{{Key: "$max", Value: bson.A{int64(0), sum}}}
}

// ResetLiveCounts zeroes every non-zero live count.
func (s *Store) ResetLiveCounts(ctx context.Context) (int64, error) {
	res, err := s.events.UpdateMany(ctx,
		bson.M{"liveCount": bson.M{"$ne": 0}},
		bson.M{"$set": bson.M{"liveCount": int64(0)}},
	)
	if err != nil {
		return 0, fmt.Errorf("reset live counts: %w", err)
	}
	return res.ModifiedCount, nil
}
