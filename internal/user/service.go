package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/M-STRONG/Evently-app/internal/metrics"
	"github.com/M-STRONG/Evently-app/pkg/events"
	"github.com/M-STRONG/Evently-app/pkg/pubsub"
)

// SiteRoot is the path revalidated after a user is deleted.
const SiteRoot = "/"

// Service exposes the user lifecycle operations.
type Service interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*User, error)
	UpdateUser(ctx context.Context, clerkID string, patch UpdateUserInput) (*User, error)
	// DeleteUser returns (nil, nil) when the user disappeared between lookup and delete.
	DeleteUser(ctx context.Context, clerkID string) (*User, error)
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Revalidator Revalidator
	Publisher   EventPublisher
	Clock       Clock
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
}

type service struct {
	repo        Repository
	revalidator Revalidator
	publisher   EventPublisher
	clock       Clock
	logger      *slog.Logger
	metrics     *metrics.Recorder
	validate    *validator.Validate
}

// NewService creates a new user service.
func NewService(repo Repository, opts Options) (Service, error) {
	if repo == nil {
		return nil, errors.New("user repository is required")
	}
	s := &service{
		repo:        repo,
		revalidator: opts.Revalidator,
		publisher:   opts.Publisher,
		clock:       opts.Clock,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.revalidator == nil {
		s.revalidator = noopRevalidator{}
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.clock == nil {
		s.clock = NewSystemClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (out *User, err error) {
	const op = "createUser"
	defer func() { s.metrics.ObserveOperation(op, err) }()

	input.ClerkID = strings.TrimSpace(input.ClerkID)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validate.Struct(input); err != nil {
		return nil, handleError(s.logger, op, fmt.Errorf("%w: %s", ErrInvalidInput, err), "clerkId", input.ClerkID)
	}

	now := s.now()
	created, err := s.repo.Create(ctx, User{
		ClerkID:   input.ClerkID,
		Email:     input.Email,
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Photo:     input.Photo,
		Events:    []string{},
		Orders:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, handleError(s.logger, op, err, "clerkId", input.ClerkID)
	}

	s.publishSynced(ctx, created)
	return &created, nil
}

func (s *service) GetUserByID(ctx context.Context, id string) (out *User, err error) {
	const op = "getUserById"
	defer func() { s.metrics.ObserveOperation(op, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, handleError(s.logger, op, ErrNotFound, "id", id)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, handleError(s.logger, op, err, "id", id)
	}
	return &u, nil
}

func (s *service) GetUserByClerkID(ctx context.Context, clerkID string) (out *User, err error) {
	const op = "getUserByClerkId"
	defer func() { s.metrics.ObserveOperation(op, err) }()

	if strings.TrimSpace(clerkID) == "" {
		return nil, handleError(s.logger, op, ErrNotFound, "clerkId", clerkID)
	}
	u, err := s.repo.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, handleError(s.logger, op, err, "clerkId", clerkID)
	}
	return &u, nil
}

func (s *service) UpdateUser(ctx context.Context, clerkID string, patch UpdateUserInput) (out *User, err error) {
	const op = "updateUser"
	defer func() { s.metrics.ObserveOperation(op, err) }()

	if strings.TrimSpace(clerkID) == "" {
		return nil, handleError(s.logger, op, fmt.Errorf("%w: clerkId is required", ErrInvalidInput))
	}
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		patch.Username = &trimmed
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, handleError(s.logger, op, fmt.Errorf("%w: %s", ErrInvalidInput, err), "clerkId", clerkID)
	}

	updated, err := s.repo.UpdateByClerkID(ctx, clerkID, patch, s.now())
	if errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err != nil {
		return nil, handleError(s.logger, op, err, "clerkId", clerkID)
	}

	s.publishSynced(ctx, updated)
	return &updated, nil
}

func (s *service) DeleteUser(ctx context.Context, clerkID string) (out *User, err error) {
	const op = "deleteUser"
	defer func() { s.metrics.ObserveOperation(op, err) }()

	target, err := s.repo.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, handleError(s.logger, op, err, "clerkId", clerkID)
	}

	// The two detach steps are independent; neither is rolled back if the other fails.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.repo.DetachOrganizer(gctx, target.ID, target.Events); err != nil {
			return fmt.Errorf("detach events: %w", err)
		}
		s.metrics.AddDetached("events", len(target.Events))
		return nil
	})
	g.Go(func() error {
		if err := s.repo.DetachBuyer(gctx, target.Orders); err != nil {
			return fmt.Errorf("detach orders: %w", err)
		}
		s.metrics.AddDetached("orders", len(target.Orders))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, handleError(s.logger, op, err, "clerkId", clerkID, "userId", target.ID)
	}

	deleted, err := s.repo.DeleteByID(ctx, target.ID)
	vanished := errors.Is(err, ErrNotFound)
	if err != nil && !vanished {
		return nil, handleError(s.logger, op, err, "clerkId", clerkID, "userId", target.ID)
	}

	// Events and orders were already detached, so the site root is stale either way.
	if err := s.revalidator.Revalidate(ctx, SiteRoot); err != nil {
		s.logger.Warn("revalidate failed", "path", SiteRoot, "error", err)
	}
	if vanished {
		s.logger.Warn("user vanished before delete", "clerkId", clerkID, "userId", target.ID)
		return nil, nil
	}
	if err := s.publisher.Publish(ctx, pubsub.TopicUserEvents, events.TypeUserDeleted, events.UserDeleted{
		UserID:    deleted.ID,
		ClerkID:   deleted.ClerkID,
		DeletedAt: s.now(),
	}); err != nil {
		s.logger.Warn("publish user deleted failed", "userId", deleted.ID, "error", err)
	}

	return &deleted, nil
}

// now is truncated to the millisecond precision BSON dates keep.
func (s *service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *service) publishSynced(ctx context.Context, u User) {
	err := s.publisher.Publish(ctx, pubsub.TopicUserEvents, events.TypeUserSynced, events.UserSynced{
		UserID:   u.ID,
		ClerkID:  u.ClerkID,
		Email:    u.Email,
		Username: u.Username,
		SyncedAt: u.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("publish user synced failed", "userId", u.ID, "error", err)
	}
}
