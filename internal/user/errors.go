package user

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNotFound indicates no user matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrConflict indicates a unique field (clerkId, email, username) is already taken.
	ErrConflict = errors.New("user already exists")
	// ErrInvalidInput indicates the payload failed validation.
	ErrInvalidInput = errors.New("invalid user input")
	// ErrUpdateFailed is returned when an update matched no user.
	ErrUpdateFailed = errors.New("user update failed")
)

// handleError logs a failed operation and returns err annotated with op.
func handleError(logger *slog.Logger, op string, err error, attrs ...any) error {
	if err == nil {
		return nil
	}
	logger.Error("user operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	return fmt.Errorf("%s: %w", op, err)
}
