package user

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoUserConversion(t *testing.T) {
	eventID := primitive.NewObjectID()
	u := User{
		ID:        primitive.NewObjectID().Hex(),
		ClerkID:   "c1",
		Email:     "a@b.com",
		Username:  "ada",
		Photo:     "https://img/ada.png",
		Events:    []string{eventID.Hex(), "not-an-object-id"},
		Orders:    []string{},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}

	doc, err := toMongoUser(u)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{eventID}, doc.Events)

	back := fromMongoUser(doc)
	want := u
	want.Events = []string{eventID.Hex()}
	assert.Equal(t, want, back)
}

func TestMongoUserConversionRejectsBadID(t *testing.T) {
	_, err := toMongoUser(User{ID: "uuid-style-id"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMongoRepositoryGetByMalformedIDIsNotFound(t *testing.T) {
	repo := &mongoRepository{}
	_, err := repo.GetByID(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.DeleteByID(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMongoRepositoryCascade runs against a real server when MONGODB_TEST_URI is set.
func TestMongoRepositoryCascade(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("evently_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	require.NoError(t, EnsureMongoIndexes(ctx, db))

	repo := NewMongoRepository(db)
	svc := newTestService(t, repo, Options{})

	created, err := svc.CreateUser(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, validInput())
	require.ErrorIs(t, err, ErrConflict)

	uid, _ := primitive.ObjectIDFromHex(created.ID)
	other := primitive.NewObjectID()
	eventID, orderID := primitive.NewObjectID(), primitive.NewObjectID()
	_, err = db.Collection(eventsCollection).InsertOne(ctx, bson.M{"_id": eventID, "organizer": []primitive.ObjectID{uid, other}})
	require.NoError(t, err)
	_, err = db.Collection(ordersCollection).InsertOne(ctx, bson.M{"_id": orderID, "buyer": uid})
	require.NoError(t, err)
	_, err = db.Collection(usersCollection).UpdateByID(ctx, uid, bson.M{"$set": bson.M{
		"events": []primitive.ObjectID{eventID},
		"orders": []primitive.ObjectID{orderID},
	}})
	require.NoError(t, err)

	deleted, err := svc.DeleteUser(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, deleted)

	var ev struct {
		Organizer []primitive.ObjectID `bson:"organizer"`
	}
	require.NoError(t, db.Collection(eventsCollection).FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev))
	assert.Equal(t, []primitive.ObjectID{other}, ev.Organizer)

	var order bson.M
	require.NoError(t, db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": orderID}).Decode(&order))
	assert.NotContains(t, order, "buyer")

	_, err = svc.GetUserByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
