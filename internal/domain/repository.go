package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sequence names kept in the counters collection.
const (
	SequenceUsers        = "users"
	SequenceApplications = "applications"
)

type userCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type applicationCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type counterCollection interface {
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
}

// Sequence hands out auto-increment ids backed by a counters collection.
type Sequence struct {
	counters counterCollection
}

// NewSequence constructs a Sequence.
func NewSequence(counters counterCollection) *Sequence {
	return &Sequence{counters: counters}
}

// Next atomically increments and returns the named counter, starting at 1.
// Two first callers can race on the upsert of a missing counter; the loser
// sees a duplicate key and retries once against the now existing document.
func (s *Sequence) Next(ctx context.Context, name string) (int64, error) {
	if s == nil || s.counters == nil {
		return 0, errors.New("sequence is not initialized")
	}

	seq, err := s.increment(ctx, name)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		seq, err = s.increment(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}

	return seq, nil
}

func (s *Sequence) increment(ctx context.Context, name string) (int64, error) {
	result := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	if result == nil {
		return 0, errors.New("increment returned no result")
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := result.Decode(&counter); err != nil {
		return 0, err
	}

	return counter.Seq, nil
}

// UserRepository persists and retrieves users in MongoDB.
type UserRepository struct {
	collection userCollection
	sequence   *Sequence
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection, sequence *Sequence) *UserRepository {
	return &UserRepository{collection: collection, sequence: sequence}
}

// CreateUser inserts a user with a fresh id and creation timestamp. A unique
// index on external_id turns duplicates into ErrUserExists.
func (r *UserRepository) CreateUser(ctx context.Context, user User) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if user.ExternalID == 0 {
		return User{}, errors.New("external_id is required")
	}

	id, err := r.sequence.Next(ctx, SequenceUsers)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetUserByExternalID fetches a user by Telegram user id.
func (r *UserRepository) GetUserByExternalID(ctx context.Context, externalID int64) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if externalID == 0 {
		return User{}, errors.New("external_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"external_id": externalID})
	if result == nil {
		return User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// CountUsers returns the number of registered users.
func (r *UserRepository) CountUsers(ctx context.Context) (int64, error) {
	if r == nil || r.collection == nil {
		return 0, errors.New("user repository is not initialized")
	}

	count, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// ApplicationRepository persists and retrieves applications in MongoDB.
type ApplicationRepository struct {
	collection applicationCollection
	sequence   *Sequence
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(collection applicationCollection, sequence *Sequence) *ApplicationRepository {
	return &ApplicationRepository{collection: collection, sequence: sequence}
}

// CreateApplication inserts an application linked to app.UserID.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, app Application) (Application, error) {
	if r == nil || r.collection == nil {
		return Application{}, errors.New("application repository is not initialized")
	}
	if ctx == nil {
		return Application{}, errors.New("context is required")
	}
	if app.UserID == 0 {
		return Application{}, errors.New("user_id is required")
	}
	if app.Salary < 0 {
		return Application{}, errors.New("salary must not be negative")
	}

	id, err := r.sequence.Next(ctx, SequenceApplications)
	if err != nil {
		return Application{}, err
	}
	app.ID = id
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, app); err != nil {
		return Application{}, fmt.Errorf("insert application: %w", err)
	}

	return app, nil
}

// ListApplications returns every application ordered by id.
func (r *ApplicationRepository) ListApplications(ctx context.Context) ([]Application, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("application repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find applications: %w", err)
	}

	apps := make([]Application, 0)
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}

	return apps, nil
}

// DeleteAllApplications removes every application and reports how many went.
func (r *ApplicationRepository) DeleteAllApplications(ctx context.Context) (int64, error) {
	if r == nil || r.collection == nil {
		return 0, errors.New("application repository is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	result, err := r.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete applications: %w", err)
	}
	if result == nil {
		return 0, nil
	}

	return result.DeletedCount, nil
}

// CountApplications returns the number of stored applications.
func (r *ApplicationRepository) CountApplications(ctx context.Context) (int64, error) {
	if r == nil || r.collection == nil {
		return 0, errors.New("application repository is not initialized")
	}

	count, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return count, nil
}
