package user

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFirestoreRepositoryCascade runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreRepositoryCascade(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := firestore.NewClient(ctx, "evently-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ids := NewUUIDGenerator()
	repo := NewFirestoreRepository(client, ids)
	svc := newTestService(t, repo, Options{})

	in := validInput()
	suffix := ids.NewID()
	in.ClerkID, in.Email, in.Username = "c-"+suffix, suffix+"@b.com", "u-"+suffix

	created, err := svc.CreateUser(ctx, in)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, in)
	require.ErrorIs(t, err, ErrConflict)

	eventRef := client.Collection(eventsCollection).Doc(ids.NewID())
	_, err = eventRef.Set(ctx, map[string]any{"organizer": []string{created.ID, "someone-else"}})
	require.NoError(t, err)
	orderRef := client.Collection(ordersCollection).Doc(ids.NewID())
	_, err = orderRef.Set(ctx, map[string]any{"buyer": created.ID})
	require.NoError(t, err)
	_, err = client.Collection(usersCollection).Doc(created.ID).Update(ctx, []firestore.Update{
		{Path: "events", Value: []string{eventRef.ID, "missing-event"}},
		{Path: "orders", Value: []string{orderRef.ID}},
	})
	require.NoError(t, err)

	name := "Ada"
	updated, err := svc.UpdateUser(ctx, in.ClerkID, UpdateUserInput{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)

	deleted, err := svc.DeleteUser(ctx, in.ClerkID)
	require.NoError(t, err)
	require.NotNil(t, deleted)

	evSnap, err := eventRef.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"someone-else"}, evSnap.Data()["organizer"])

	orderSnap, err := orderRef.Get(ctx)
	require.NoError(t, err)
	assert.NotContains(t, orderSnap.Data(), "buyer")

	_, err = svc.GetUserByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirestoreRepositoryUpdateRejectsTakenUsername(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := firestore.NewClient(ctx, "evently-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ids := NewUUIDGenerator()
	repo := NewFirestoreRepository(client, ids)

	newUser := func() User {
		suffix := ids.NewID()
		return User{ClerkID: "c-" + suffix, Email: suffix + "@b.com", Username: "u-" + suffix, CreatedAt: testNow, UpdatedAt: testNow}
	}
	first, err := repo.Create(ctx, newUser())
	require.NoError(t, err)
	second, err := repo.Create(ctx, newUser())
	require.NoError(t, err)

	_, err = repo.UpdateByClerkID(ctx, second.ClerkID, UpdateUserInput{Username: &first.Username}, testNow)
	require.ErrorIs(t, err, ErrConflict)

	stored, err := repo.GetByClerkID(ctx, second.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, second.Username, stored.Username)

	same := second.Username
	renamed, err := repo.UpdateByClerkID(ctx, second.ClerkID, UpdateUserInput{Username: &same}, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Minute), renamed.UpdatedAt)

	_, err = repo.UpdateByClerkID(ctx, "c-missing-"+ids.NewID(), UpdateUserInput{Username: &same}, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}
