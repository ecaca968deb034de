package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreUser struct {
	ClerkID   string    `firestore:"clerkId"`
	Email     string    `firestore:"email"`
	Username  string    `firestore:"username"`
	FirstName string    `firestore:"firstName"`
	LastName  string    `firestore:"lastName"`
	Photo     string    `firestore:"photo"`
	Events    []string  `firestore:"events"`
	Orders    []string  `firestore:"orders"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type firestoreRepository struct {
	client *firestore.Client
	ids    IDGenerator
}

// NewFirestoreRepository creates a Firestore-backed repository. Users, events and
// orders live in top-level collections keyed by generated ids.
func NewFirestoreRepository(client *firestore.Client, ids IDGenerator) Repository {
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	return &firestoreRepository{client: client, ids: ids}
}

func (r *firestoreRepository) users() *firestore.CollectionRef {
	return r.client.Collection(usersCollection)
}

func (r *firestoreRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = r.ids.NewID()
	}
	ref := r.users().Doc(u.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Firestore has no unique indexes; check each unique field inside the transaction.
		for field, value := range map[string]string{
			"clerkId":  u.ClerkID,
			"email":    u.Email,
			"username": u.Username,
		} {
			taken, err := queryHasMatch(tx.Documents(r.users().Where(field, "==", value).Limit(1)))
			if err != nil {
				return err
			}
			if taken {
				return ErrConflict
			}
		}
		return tx.Create(ref, toFirestoreUser(u))
	})
	if status.Code(err) == codes.AlreadyExists {
		return User{}, ErrConflict
	}
	if err != nil {
		return User{}, err
	}
	return cloneUser(u), nil
}

func queryHasMatch(iter *firestore.DocumentIterator) (bool, error) {
	defer iter.Stop()
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *firestoreRepository) GetByID(ctx context.Context, id string) (User, error) {
	doc, err := r.users().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return snapshotToUser(doc)
}

func (r *firestoreRepository) GetByClerkID(ctx context.Context, clerkID string) (User, error) {
	doc, err := r.findByClerkID(ctx, clerkID)
	if err != nil {
		return User{}, err
	}
	return snapshotToUser(doc)
}

func (r *firestoreRepository) findByClerkID(ctx context.Context, clerkID string) (*firestore.DocumentSnapshot, error) {
	return firstMatch(r.users().Where("clerkId", "==", clerkID).Limit(1).Documents(ctx))
}

// firstMatch returns the first document of iter, or ErrNotFound when it is empty.
func firstMatch(iter *firestore.DocumentIterator) (*firestore.DocumentSnapshot, error) {
	defer iter.Stop()
	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *firestoreRepository) UpdateByClerkID(ctx context.Context, clerkID string, patch UpdateUserInput, updatedAt time.Time) (User, error) {
	var updated User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := firstMatch(tx.Documents(r.users().Where("clerkId", "==", clerkID).Limit(1)))
		if err != nil {
			return err
		}
		current, err := snapshotToUser(doc)
		if err != nil {
			return err
		}

		if patch.Username != nil && *patch.Username != current.Username {
			taken, err := queryHasMatch(tx.Documents(r.users().Where("username", "==", *patch.Username).Limit(1)))
			if err != nil {
				return err
			}
			if taken {
				return ErrConflict
			}
		}

		updates := []firestore.Update{{Path: "updatedAt", Value: updatedAt}}
		if patch.FirstName != nil {
			updates = append(updates, firestore.Update{Path: "firstName", Value: *patch.FirstName})
		}
		if patch.LastName != nil {
			updates = append(updates, firestore.Update{Path: "lastName", Value: *patch.LastName})
		}
		if patch.Username != nil {
			updates = append(updates, firestore.Update{Path: "username", Value: *patch.Username})
		}
		if patch.Photo != nil {
			updates = append(updates, firestore.Update{Path: "photo", Value: *patch.Photo})
		}
		if err := tx.Update(doc.Ref, updates); err != nil {
			return err
		}

		patch.Apply(&current)
		current.UpdatedAt = updatedAt
		updated = current
		return nil
	})
	if status.Code(err) == codes.NotFound {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

func (r *firestoreRepository) DeleteByID(ctx context.Context, id string) (User, error) {
	ref := r.users().Doc(id)
	doc, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	deleted, err := snapshotToUser(doc)
	if err != nil {
		return User{}, err
	}

	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return deleted, nil
}

func (r *firestoreRepository) DetachOrganizer(ctx context.Context, userID string, eventIDs []string) error {
	return r.bulkUpdate(ctx, eventsCollection, eventIDs, []firestore.Update{
		{Path: "organizer", Value: firestore.ArrayRemove(userID)},
	})
}

func (r *firestoreRepository) DetachBuyer(ctx context.Context, orderIDs []string) error {
	return r.bulkUpdate(ctx, ordersCollection, orderIDs, []firestore.Update{
		{Path: "buyer", Value: firestore.Delete},
	})
}

// bulkUpdate applies updates to every listed document. Documents that no longer exist are skipped.
func (r *firestoreRepository) bulkUpdate(ctx context.Context, collection string, ids []string, updates []firestore.Update) error {
	if len(ids) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))
	for _, id := range ids {
		job, err := bw.Update(r.client.Collection(collection).Doc(id), updates)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue %s/%s: %w", collection, id, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("update %s/%s: %w", collection, ids[i], err)
		}
	}
	return nil
}

func toFirestoreUser(u User) firestoreUser {
	u = cloneUser(u)
	return firestoreUser{
		ClerkID:   u.ClerkID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Photo:     u.Photo,
		Events:    u.Events,
		Orders:    u.Orders,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func snapshotToUser(doc *firestore.DocumentSnapshot) (User, error) {
	var payload firestoreUser
	if err := doc.DataTo(&payload); err != nil {
		return User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return cloneUser(User{
		ID:        doc.Ref.ID,
		ClerkID:   payload.ClerkID,
		Email:     payload.Email,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Photo:     payload.Photo,
		Events:    payload.Events,
		Orders:    payload.Orders,
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
	}), nil
}
