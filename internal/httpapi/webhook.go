package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/M-STRONG/Evently-app/pkg/logging"

	"github.com/M-STRONG/Evently-app/internal/user"
)

var errNoVerifier = errors.New("clerk webhook secret not configured")

// Clerk webhook event types handled by this service.
const (
	clerkUserCreated = "user.created"
	clerkUserUpdated = "user.updated"
	clerkUserDeleted = "user.deleted"
)

// WebhookVerifier authenticates a signed webhook delivery. *svix.Webhook satisfies it.
type WebhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

// NewSvixVerifier builds a verifier for a Clerk signing secret ("whsec_...").
func NewSvixVerifier(secret string) (WebhookVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errNoVerifier
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("svix webhook: %w", err)
	}
	return wh, nil
}

// RegisterWebhookRoutes mounts the Clerk user sync webhook. It must sit outside the bearer auth group.
func RegisterWebhookRoutes(r chi.Router, service user.Service, verifier WebhookVerifier, logger *slog.Logger) {
	h := &webhookHandler{
		users:    &userHandler{service: service, logger: logger},
		verifier: verifier,
	}
	r.Post("/webhooks/clerk", h.handleClerk)
}

type webhookHandler struct {
	users    *userHandler
	verifier WebhookVerifier
}

type clerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUser struct {
	ID                    string              `json:"id"`
	EmailAddresses        []clerkEmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	Username              *string             `json:"username"`
	FirstName             *string             `json:"first_name"`
	LastName              *string             `json:"last_name"`
	ImageURL              *string             `json:"image_url"`
}

// primaryEmail prefers the address flagged as primary, falling back to the first one.
func (u clerkUser) primaryEmail() string {
	for _, addr := range u.EmailAddresses {
		if addr.ID != "" && addr.ID == u.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *webhookHandler) handleClerk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondDecodeError(w, r, err)
		return
	}

	if err := h.verifier.Verify(payload, r.Header); err != nil {
		logging.WithRequestID(r.Context(), h.users.logger).Warn("clerk webhook rejected", slog.Any("error", err))
		writeError(w, r, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		writeError(w, r, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}
	var data clerkUser
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			writeError(w, r, http.StatusBadRequest, errInvalidPayload.Error())
			return
		}
	}
	if strings.TrimSpace(data.ID) == "" && isUserEvent(event.Type) {
		writeError(w, r, http.StatusBadRequest, "missing clerk user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	switch event.Type {
	case clerkUserCreated:
		created, err := h.users.service.CreateUser(ctx, user.CreateUserInput{
			ClerkID:   data.ID,
			Email:     data.primaryEmail(),
			Username:  deref(data.Username),
			FirstName: deref(data.FirstName),
			LastName:  deref(data.LastName),
			Photo:     deref(data.ImageURL),
		})
		if err != nil {
			h.users.respondServiceError(w, r, "failed to create user from webhook", err)
			return
		}
		writeJSON(w, http.StatusOK, webhookResult{Message: "OK", User: created})

	case clerkUserUpdated:
		patch := user.UpdateUserInput{
			FirstName: data.FirstName,
			LastName:  data.LastName,
			Username:  data.Username,
			Photo:     data.ImageURL,
		}
		if patch.Empty() {
			writeJSON(w, http.StatusOK, webhookResult{Message: "OK"})
			return
		}
		updated, err := h.users.service.UpdateUser(ctx, data.ID, patch)
		if err != nil {
			h.users.respondServiceError(w, r, "failed to update user from webhook", err)
			return
		}
		writeJSON(w, http.StatusOK, webhookResult{Message: "OK", User: updated})

	case clerkUserDeleted:
		deleted, err := h.users.service.DeleteUser(ctx, data.ID)
		if err != nil {
			h.users.respondServiceError(w, r, "failed to delete user from webhook", err)
			return
		}
		writeJSON(w, http.StatusOK, webhookResult{Message: "OK", User: deleted})

	default:
		writeJSON(w, http.StatusOK, webhookResult{Message: "ignored"})
	}
}

type webhookResult struct {
	Message string     `json:"message"`
	User    *user.User `json:"user,omitempty"`
}

func isUserEvent(eventType string) bool {
	switch eventType {
	case clerkUserCreated, clerkUserUpdated, clerkUserDeleted:
		return true
	}
	return false
}

var _ WebhookVerifier = (*svix.Webhook)(nil)
