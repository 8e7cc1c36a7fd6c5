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

const (
	usersCollection        = "users"
	pendingUsersCollection = "pendingusers"
	eventsCollection       = "events"

	connectTimeout = 10 * time.Second
)

// Store implements store.Store on MongoDB, keeping registrations and
// the Q&A board embedded in the event document.
type Store struct {
	client  *mongo.Client
	users   *mongo.Collection
	pending *mongo.Collection
	events  *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New connects to MongoDB and ensures the indexes the store relies on.
func New(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:  client,
		users:   db.Collection(usersCollection),
		pending: db.Collection(pendingUsersCollection),
		events:  db.Collection(eventsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: unique,
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.pending.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: unique,
	}); err != nil {
		return fmt.Errorf("pending users index: %w", err)
	}
	if _, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "registeredUsers", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==== UserStore implementation ====

// CreateUser creates a new user.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toUser(), nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*store.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

// ==== PendingUserStore implementation ====

// UpsertPendingUser stores or replaces the pending signup for an email.
func (s *Store) UpsertPendingUser(ctx context.Context, p *store.PendingUser) error {
	doc := pendingUserDoc{
		Email:        p.Email,
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		OTP:          p.OTP,
		ExpiresAt:    p.ExpiresAt.UTC(),
	}
	_, err := s.pending.ReplaceOne(ctx, bson.M{"email": p.Email}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert pending user: %w", err)
	}
	return nil
}

// GetPendingUser retrieves a pending signup by email.
func (s *Store) GetPendingUser(ctx context.Context, email string) (*store.PendingUser, error) {
	var doc pendingUserDoc
	if err := s.pending.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find pending user: %w", err)
	}
	return &store.PendingUser{
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		OTP:          doc.OTP,
		ExpiresAt:    doc.ExpiresAt,
	}, nil
}

// DeletePendingUser removes a pending signup.
func (s *Store) DeletePendingUser(ctx context.Context, email string) error {
	if _, err := s.pending.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("delete pending user: %w", err)
	}
	return nil
}
