package events

import "time"

// Event types carried on pubsub.TopicUserEvents and pubsub.TopicSiteRevalidate.
const (
	TypeUserSynced      = "user.synced"
	TypeUserDeleted     = "user.deleted"
	TypePathRevalidated = "path.revalidated"
)

// Envelope wraps every payload written to a stream.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// UserSynced describes the payload produced when a Clerk user is created or updated in the store.
type UserSynced struct {
	UserID   string    `json:"userId"`
	ClerkID  string    `json:"clerkId"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	SyncedAt time.Time `json:"syncedAt"`
}

// UserDeleted is emitted when a user is removed from the system.
type UserDeleted struct {
	UserID    string    `json:"userId"`
	ClerkID   string    `json:"clerkId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// PathRevalidated asks renderers to drop any cached output for Path.
type PathRevalidated struct {
	Path        string    `json:"path"`
	RequestedAt time.Time `json:"requestedAt"`
}
