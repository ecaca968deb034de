package user

import (
	"context"
	"time"
)

// User is the account record synchronised from Clerk.
type User struct {
	ID        string    `json:"_id"`
	ClerkID   string    `json:"clerkId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Photo     string    `json:"photo"`
	Events    []string  `json:"events"`
	Orders    []string  `json:"orders"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event is the part of an event document this service touches.
type Event struct {
	ID        string   `json:"_id"`
	Title     string   `json:"title"`
	Organizer []string `json:"organizer"`
}

// Order is the part of an order document this service touches. Buyer is empty once detached.
type Order struct {
	ID      string `json:"_id"`
	EventID string `json:"event"`
	Buyer   string `json:"buyer,omitempty"`
}

// CreateUserInput is the payload accepted on sign-up.
type CreateUserInput struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,max=64"`
	FirstName string `json:"firstName" validate:"max=128"`
	LastName  string `json:"lastName" validate:"max=128"`
	Photo     string `json:"photo" validate:"required,url"`
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=128"`
	LastName  *string `json:"lastName" validate:"omitempty,max=128"`
	Username  *string `json:"username" validate:"omitempty,min=1,max=64"`
	Photo     *string `json:"photo" validate:"omitempty,url"`
}

// Empty reports whether the patch changes nothing.
func (in UpdateUserInput) Empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Username == nil && in.Photo == nil
}

// Apply copies the set fields of in onto u.
func (in UpdateUserInput) Apply(u *User) {
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Photo != nil {
		u.Photo = *in.Photo
	}
}

// Repository defines data access for users and the records that reference them.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByClerkID(ctx context.Context, clerkID string) (User, error)
	// UpdateByClerkID applies patch and returns the post-update document.
	UpdateByClerkID(ctx context.Context, clerkID string, patch UpdateUserInput, updatedAt time.Time) (User, error)
	// DeleteByID returns ErrNotFound if nothing was deleted.
	DeleteByID(ctx context.Context, id string) (User, error)

	// DetachOrganizer pulls userID out of the organizer list of each event in eventIDs.
	DetachOrganizer(ctx context.Context, userID string, eventIDs []string) error
	// DetachBuyer clears the buyer of each order in orderIDs.
	DetachBuyer(ctx context.Context, orderIDs []string) error
}

// Revalidator invalidates rendered output cached for a site path.
type Revalidator interface {
	Revalidate(ctx context.Context, path string) error
}

// EventPublisher emits user lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces internal document ids for stores that do not assign them.
type IDGenerator interface {
	NewID() string
}
