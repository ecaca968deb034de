package user

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps users, events and orders in process memory.
// It backs DATASTORE=memory and the service tests.
type MemoryRepository struct {
	ids IDGenerator

	mu     sync.RWMutex
	users  map[string]User // id -> user
	events map[string]Event
	orders map[string]Order
}

// NewMemoryRepository returns an empty in-memory store. A nil ids uses UUIDs.
func NewMemoryRepository(ids IDGenerator) *MemoryRepository {
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	return &MemoryRepository{
		ids:    ids,
		users:  make(map[string]User),
		events: make(map[string]Event),
		orders: make(map[string]Order),
	}
}

func (r *MemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.ClerkID == u.ClerkID || existing.Email == u.Email || existing.Username == u.Username {
			return User{}, ErrConflict
		}
	}

	if u.ID == "" {
		u.ID = r.ids.NewID()
	}
	if _, exists := r.users[u.ID]; exists {
		return User{}, ErrConflict
	}
	u = cloneUser(u)
	r.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByClerkID(_ context.Context, clerkID string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idForClerk(clerkID)
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *MemoryRepository) UpdateByClerkID(_ context.Context, clerkID string, patch UpdateUserInput, updatedAt time.Time) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.idForClerk(clerkID)
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.Username != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Username == *patch.Username {
				return User{}, ErrConflict
			}
		}
	}

	u := r.users[id]
	patch.Apply(&u)
	u.UpdatedAt = updatedAt
	r.users[id] = u
	return cloneUser(u), nil
}

func (r *MemoryRepository) DeleteByID(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	delete(r.users, id)
	return u, nil
}

func (r *MemoryRepository) DetachOrganizer(_ context.Context, userID string, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventID := range eventIDs {
		ev, ok := r.events[eventID]
		if !ok {
			continue
		}
		ev.Organizer = slices.DeleteFunc(slices.Clone(ev.Organizer), func(id string) bool { return id == userID })
		r.events[eventID] = ev
	}
	return nil
}

func (r *MemoryRepository) DetachBuyer(_ context.Context, orderIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, orderID := range orderIDs {
		o, ok := r.orders[orderID]
		if !ok {
			continue
		}
		o.Buyer = ""
		r.orders[orderID] = o
	}
	return nil
}

// PutEvent stores ev and records it on each organizer's event list.
func (r *MemoryRepository) PutEvent(_ context.Context, ev Event) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.ID == "" {
		ev.ID = r.ids.NewID()
	}
	ev.Organizer = slices.Clone(ev.Organizer)
	r.events[ev.ID] = ev
	for _, organizerID := range ev.Organizer {
		if u, ok := r.users[organizerID]; ok && !slices.Contains(u.Events, ev.ID) {
			u.Events = append(slices.Clone(u.Events), ev.ID)
			r.users[organizerID] = u
		}
	}
	return ev
}

// PutOrder stores o and records it on the buyer's order list.
func (r *MemoryRepository) PutOrder(_ context.Context, o Order) Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		o.ID = r.ids.NewID()
	}
	r.orders[o.ID] = o
	if u, ok := r.users[o.Buyer]; ok && !slices.Contains(u.Orders, o.ID) {
		u.Orders = append(slices.Clone(u.Orders), o.ID)
		r.users[o.Buyer] = u
	}
	return o
}

// Event returns the stored event with id.
func (r *MemoryRepository) Event(id string) (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[id]
	ev.Organizer = slices.Clone(ev.Organizer)
	return ev, ok
}

// Order returns the stored order with id.
func (r *MemoryRepository) Order(id string) (Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

func (r *MemoryRepository) idForClerk(clerkID string) (string, bool) {
	for id, u := range r.users {
		if u.ClerkID == clerkID {
			return id, true
		}
	}
	return "", false
}

func cloneUser(u User) User {
	u.Events = slices.Clone(u.Events)
	u.Orders = slices.Clone(u.Orders)
	if u.Events == nil {
		u.Events = []string{}
	}
	if u.Orders == nil {
		u.Orders = []string{}
	}
	return u
}
