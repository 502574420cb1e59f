package passwordreset

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/resetkit/server"
	"github.com/tech-arch1tect/resetkit/services/accounts"
	"github.com/tech-arch1tect/resetkit/services/ledger"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"github.com/tech-arch1tect/resetkit/services/passwordreset"
	"github.com/tech-arch1tect/resetkit/session"
	"go.uber.org/zap"
)

const (
	requestedMessage     = "If an account exists for that email, reset instructions have been sent."
	completedMessage     = "Password reset successfully."
	invalidLinkMessage   = "Invalid or expired reset link."
	mismatchMessage      = "Password confirmation doesn't match Password."
	redirectMessage      = "redirect_url is not allowed."
	unavailableMessage   = "Password reset is temporarily unavailable. Please try again later."
	unexpectedMessage    = "Something went wrong. Please try again later."
	malformedBodyMessage = "Request body could not be parsed."
)

type ResetService interface {
	RequestReset(ctx context.Context, input passwordreset.RequestInput) error
	CompleteReset(ctx context.Context, input passwordreset.CompleteInput) (*accounts.Account, error)
}

type Handler struct {
	resets ResetService
	logger *logging.Service
}

func NewHandler(resets ResetService, logger *logging.Service) *Handler {
	return &Handler{resets: resets, logger: logger}
}

// RequestReset answers every well-formed request the same way, whether or not the email
// belongs to an account.
func (h *Handler) RequestReset(c echo.Context) error {
	var body requestResetBody
	if err := c.Bind(&body); err != nil {
		return errorResponse(c, http.StatusBadRequest, malformedBodyMessage)
	}
	req := body.RequestResetRequest
	if body.User != nil {
		req = *body.User
	}
	if err := c.Validate(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, server.ValidationMessages(err)...)
	}

	err := h.resets.RequestReset(c.Request().Context(), passwordreset.RequestInput{
		Email:       req.Email,
		RedirectURL: req.RedirectURL,
		IP:          c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
	})
	if err != nil && !errors.Is(err, passwordreset.ErrDeliveryFailed) {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: requestedMessage})
}

// CompleteReset sets the new password and signs the account in.
func (h *Handler) CompleteReset(c echo.Context) error {
	var body completeResetBody
	if err := c.Bind(&body); err != nil {
		return errorResponse(c, http.StatusBadRequest, malformedBodyMessage)
	}
	req := body.CompleteResetRequest
	if body.User != nil {
		req = *body.User
	}
	if err := c.Validate(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, server.ValidationMessages(err)...)
	}

	account, err := h.resets.CompleteReset(c.Request().Context(), passwordreset.CompleteInput{
		Token:                req.Token,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		return h.failure(c, err)
	}

	if err := session.Login(c, account.ID); err != nil && h.logger != nil {
		h.logger.Warn("password reset but sign-in failed", logging.AccountID(account.ID), zap.Error(err))
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: completedMessage})
}

// failure maps service errors to responses. The three invalid-token kinds share one
// message.
func (h *Handler) failure(c echo.Context, err error) error {
	var policy *accounts.PolicyError

	switch {
	case ledger.IsInvalidToken(err), errors.Is(err, accounts.ErrAccountNotFound):
		return errorResponse(c, http.StatusUnprocessableEntity, invalidLinkMessage)
	case errors.As(err, &policy):
		return errorResponse(c, http.StatusUnprocessableEntity, policy.Reason)
	case errors.Is(err, passwordreset.ErrPasswordMismatch):
		return errorResponse(c, http.StatusUnprocessableEntity, mismatchMessage)
	case errors.Is(err, passwordreset.ErrRedirectNotAllowed):
		return errorResponse(c, http.StatusBadRequest, redirectMessage)
	case errors.Is(err, passwordreset.ErrPasswordResetDisabled):
		return echo.ErrNotFound
	case errors.Is(err, ledger.ErrStorageUnavailable):
		if h.logger != nil {
			h.logger.Error("reset storage unavailable", zap.Error(err))
		}
		return errorResponse(c, http.StatusServiceUnavailable, unavailableMessage)
	default:
		if h.logger != nil {
			h.logger.Error("password reset failed", zap.Error(err))
		}
		return errorResponse(c, http.StatusInternalServerError, unexpectedMessage)
	}
}

func errorResponse(c echo.Context, status int, messages ...string) error {
	return c.JSON(status, ErrorResponse{Errors: messages})
}
