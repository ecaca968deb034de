package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type systemClock struct{}

// NewSystemClock returns a Clock implementation backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

type uuidGenerator struct{}

// NewUUIDGenerator returns an IDGenerator that produces v7 UUIDs where available, falling back to v4.
func NewUUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// noopRevalidator is used when no revalidation sink is configured.
type noopRevalidator struct{}

func (noopRevalidator) Revalidate(_ context.Context, _ string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _, _ string, _ any) error { return nil }
