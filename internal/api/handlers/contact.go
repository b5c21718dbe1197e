package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"expanse/internal/core"
	"expanse/internal/notify"
	"expanse/internal/types"
)

// deliveryTimeout bounds the background webhook delivery spawned per
// submission. The client has already received its 202 by then.
const deliveryTimeout = 15 * time.Second

// SubmissionSender delivers storefront submissions to the notification
// channels.
type SubmissionSender interface {
	SendContact(ctx context.Context, msg notify.ContactMessage) error
	SendWaitlist(ctx context.Context, signup notify.WaitlistSignup) error
}

// ContactHandler accepts contact-form and waitlist submissions. Submissions
// are validated synchronously and delivered asynchronously: the client gets a
// 202 as soon as the payload is accepted.
type ContactHandler struct {
	sender   SubmissionSender
	validate *validator.Validate
	logger   *slog.Logger
}

// NewContactHandler constructs a ContactHandler.
func NewContactHandler(sender SubmissionSender, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{
		sender:   sender,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes mounts the submission endpoints onto the given router group.
func (h *ContactHandler) RegisterRoutes(r chi.Router) {
	r.Post("/contact", h.HandleContact)
	r.Post("/waitlist", h.HandleWaitlist)
}

// acceptedResponse is the envelope returned for accepted submissions.
type acceptedResponse struct {
	Success bool `json:"success"`
}

// HandleContact accepts a contact-form submission.
func (h *ContactHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var msg notify.ContactMessage
	if err := core.DecodeJSON(w, r, &msg); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(msg); err != nil {
		core.Error(w, r, mapValidationError(err))
		return
	}

	h.deliver(r, "contact", func(ctx context.Context) error {
		return h.sender.SendContact(ctx, msg)
	})
	core.JSON(w, r, http.StatusAccepted, acceptedResponse{Success: true})
}

// HandleWaitlist accepts a waitlist signup.
func (h *ContactHandler) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	var signup notify.WaitlistSignup
	if err := core.DecodeJSON(w, r, &signup); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(signup); err != nil {
		core.Error(w, r, mapValidationError(err))
		return
	}

	h.deliver(r, "waitlist", func(ctx context.Context) error {
		return h.sender.SendWaitlist(ctx, signup)
	})
	core.JSON(w, r, http.StatusAccepted, acceptedResponse{Success: true})
}

// deliver runs the webhook send in the background with its own context; the
// request context is about to be cancelled when the handler returns.
func (h *ContactHandler) deliver(r *http.Request, kind string, send func(ctx context.Context) error) {
	requestID := types.GetRequestID(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			h.logger.Warn("background notification delivery failed",
				"kind", kind,
				"request_id", requestID,
				"error", err,
			)
		}
	}()
}

// mapValidationError converts validator failures into client-safe AppErrors
// naming the first offending field.
func mapValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField, "invalid submission", err)
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "email":
		return types.NewFieldError(types.ErrCodeValidationInvalidEmail,
			field, "a valid email address is required")
	case "required":
		return types.NewFieldError(types.ErrCodeValidationMissingField,
			field, field+" is required")
	default:
		return types.NewFieldError(types.ErrCodeValidationMissingField,
			field, field+" is invalid")
	}
}
