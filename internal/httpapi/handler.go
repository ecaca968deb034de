package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sharedauth "github.com/M-STRONG/Evently-app/pkg/auth"
	sharederrors "github.com/M-STRONG/Evently-app/pkg/errors"
	"github.com/M-STRONG/Evently-app/pkg/logging"

	"github.com/M-STRONG/Evently-app/internal/user"
)

const (
	serviceTimeout  = 8 * time.Second
	maxBodyBytes    = 64 * 1024
	clerkIDParam    = "clerkId"
	internalIDParam = "id"
)

// RegisterRoutes registers the authenticated user routes.
func RegisterRoutes(r chi.Router, service user.Service, logger *slog.Logger) {
	h := &userHandler{service: service, logger: logger}

	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/", h.createUser)
		r.Get("/me", h.getMe)
		r.Get("/{"+internalIDParam+"}", h.getUser)
		r.Patch("/clerk/{"+clerkIDParam+"}", h.updateUser)
		r.Delete("/clerk/{"+clerkIDParam+"}", h.deleteUser)
	})
}

type userHandler struct {
	service user.Service
	logger  *slog.Logger
}

func (h *userHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var input user.CreateUserInput
	if err := decodeBody(w, r, &input); err != nil {
		respondDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	created, err := h.service.CreateUser(ctx, input)
	if err != nil {
		h.respondServiceError(w, r, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *userHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, internalIDParam))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	u, err := h.service.GetUserByID(ctx, id)
	if err != nil {
		h.respondServiceError(w, r, "failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *userHandler) getMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := sharedauth.UserFromContext(r.Context())
	if !ok || caller.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	u, err := h.service.GetUserByClerkID(ctx, caller.UserID)
	if err != nil {
		h.respondServiceError(w, r, "failed to load current user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *userHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	clerkID := strings.TrimSpace(chi.URLParam(r, clerkIDParam))
	if clerkID == "" {
		writeError(w, r, http.StatusBadRequest, "missing clerk id")
		return
	}

	var patch user.UpdateUserInput
	if err := decodeBody(w, r, &patch); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if patch.Empty() {
		writeError(w, r, http.StatusBadRequest, errInvalidPayload.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	updated, err := h.service.UpdateUser(ctx, clerkID, patch)
	if err != nil {
		h.respondServiceError(w, r, "failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *userHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	clerkID := strings.TrimSpace(chi.URLParam(r, clerkIDParam))
	if clerkID == "" {
		writeError(w, r, http.StatusBadRequest, "missing clerk id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	deleted, err := h.service.DeleteUser(ctx, clerkID)
	if err != nil {
		h.respondServiceError(w, r, "failed to delete user", err)
		return
	}
	// deleted is nil when the user vanished mid-delete; encode as JSON null.
	writeJSON(w, http.StatusOK, deleted)
}

var errInvalidPayload = errors.New("invalid request body")

// decodeBody strictly decodes a single JSON object into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errInvalidPayload
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errInvalidPayload
	}
	return nil
}

func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errInvalidPayload):
		writeCode(w, r, sharederrors.CodeBadRequest, errInvalidPayload.Error())
	case errors.As(err, &maxErr):
		writeCode(w, r, sharederrors.CodePayloadTooLarge, "payload too large")
	default:
		writeCode(w, r, sharederrors.CodeInternal, "failed to decode request")
	}
}

// serviceErrorCode classifies a user service error into an envelope code.
func serviceErrorCode(err error) string {
	switch {
	case errors.Is(err, user.ErrInvalidInput):
		return sharederrors.CodeUnprocessableEntity
	case errors.Is(err, user.ErrNotFound), errors.Is(err, user.ErrUpdateFailed):
		return sharederrors.CodeNotFound
	case errors.Is(err, user.ErrConflict):
		return sharederrors.CodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return sharederrors.CodeGatewayTimeout
	default:
		return sharederrors.CodeInternal
	}
}

func (h *userHandler) respondServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	code := serviceErrorCode(err)
	switch code {
	case sharederrors.CodeUnprocessableEntity:
		writeCode(w, r, code, err.Error())
	case sharederrors.CodeNotFound:
		writeCode(w, r, code, "user not found")
	case sharederrors.CodeConflict:
		writeCode(w, r, code, "user already exists")
	default:
		logRequestError(r.Context(), h.logger, message, err)
		writeCode(w, r, code, message)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, sharederrors.New(status, message, middleware.GetReqID(r.Context())))
}

// writeCode answers with the status ToStatusCode assigns to code.
func writeCode(w http.ResponseWriter, r *http.Request, code, message string) {
	writeJSON(w, sharederrors.ToStatusCode(code), sharederrors.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error) {
	if logger == nil || err == nil {
		return
	}
	logging.WithRequestID(ctx, logger).Error(message, slog.Any("error", err))
}
