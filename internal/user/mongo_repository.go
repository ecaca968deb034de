package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection  = "users"
	eventsCollection = "events"
	ordersCollection = "orders"
)

type mongoUser struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	ClerkID   string               `bson:"clerkId"`
	Email     string               `bson:"email"`
	Username  string               `bson:"username"`
	FirstName string               `bson:"firstName,omitempty"`
	LastName  string               `bson:"lastName,omitempty"`
	Photo     string               `bson:"photo"`
	Events    []primitive.ObjectID `bson:"events"`
	Orders    []primitive.ObjectID `bson:"orders"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

type mongoRepository struct {
	users  *mongo.Collection
	events *mongo.Collection
	orders *mongo.Collection
}

// NewMongoRepository instantiates a MongoDB-backed repository on db.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		users:  db.Collection(usersCollection),
		events: db.Collection(eventsCollection),
		orders: db.Collection(ordersCollection),
	}
}

// EnsureMongoIndexes creates the unique indexes Create relies on for conflict detection.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clerkId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *mongoRepository) Create(ctx context.Context, u User) (User, error) {
	doc, err := toMongoUser(u)
	if err != nil {
		return User{}, err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return fromMongoUser(doc), nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id string) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) GetByClerkID(ctx context.Context, clerkID string) (User, error) {
	return r.findOne(ctx, bson.M{"clerkId": clerkID})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (User, error) {
	var doc mongoUser
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return fromMongoUser(doc), nil
}

func (r *mongoRepository) UpdateByClerkID(ctx context.Context, clerkID string, patch UpdateUserInput, updatedAt time.Time) (User, error) {
	set := bson.M{"updatedAt": updatedAt}
	if patch.FirstName != nil {
		set["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		set["lastName"] = *patch.LastName
	}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Photo != nil {
		set["photo"] = *patch.Photo
	}

	var doc mongoUser
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"clerkId": clerkID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return User{}, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return User{}, ErrConflict
	case err != nil:
		return User{}, err
	}
	return fromMongoUser(doc), nil
}

func (r *mongoRepository) DeleteByID(ctx context.Context, id string) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}

	var doc mongoUser
	err = r.users.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return fromMongoUser(doc), nil
}

func (r *mongoRepository) DetachOrganizer(ctx context.Context, userID string, eventIDs []string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("user id %q: %w", userID, err)
	}
	ids := objectIDs(eventIDs)
	if len(ids) == 0 {
		return nil
	}
	_, err = r.events.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$pull": bson.M{"organizer": uid}},
	)
	return err
}

func (r *mongoRepository) DetachBuyer(ctx context.Context, orderIDs []string) error {
	ids := objectIDs(orderIDs)
	if len(ids) == 0 {
		return nil
	}
	_, err := r.orders.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$unset": bson.M{"buyer": 1}},
	)
	return err
}

func toMongoUser(u User) (mongoUser, error) {
	doc := mongoUser{
		ClerkID:   u.ClerkID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Photo:     u.Photo,
		Events:    objectIDs(u.Events),
		Orders:    objectIDs(u.Orders),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.ID != "" {
		oid, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			return mongoUser{}, fmt.Errorf("%w: id %q is not an ObjectID", ErrInvalidInput, u.ID)
		}
		doc.ID = oid
	}
	return doc, nil
}

func fromMongoUser(doc mongoUser) User {
	return User{
		ID:        doc.ID.Hex(),
		ClerkID:   doc.ClerkID,
		Email:     doc.Email,
		Username:  doc.Username,
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Photo:     doc.Photo,
		Events:    hexIDs(doc.Events),
		Orders:    hexIDs(doc.Orders),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// objectIDs converts hex ids, skipping any that are not valid ObjectIDs.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		out = append(out, oid)
	}
	return out
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
