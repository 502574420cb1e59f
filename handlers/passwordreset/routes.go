package passwordreset

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/resetkit/openapi"
)

const Path = "/auth/password"

// RegisterRoutes mounts both endpoints behind limiter and documents them on doc when it is
// not nil.
func RegisterRoutes(e *echo.Echo, h *Handler, limiter echo.MiddlewareFunc, doc *openapi.OpenAPI) {
	var middleware []echo.MiddlewareFunc
	if limiter != nil {
		middleware = append(middleware, limiter)
	}

	e.POST(Path, h.RequestReset, middleware...)
	e.PUT(Path, h.CompleteReset, middleware...)

	if doc == nil {
		return
	}

	doc.Document(http.MethodPost, Path).
		Summary("Request password reset instructions").
		Description("Emails a single-use reset link when the address belongs to an account. The response is the same either way.").
		OperationID("requestPasswordReset").
		Tags("password").
		Body(RequestResetRequest{}, "Account email, optionally nested under \"user\"").
		Response(http.StatusOK, MessageResponse{}, "Request accepted").
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed request or disallowed redirect_url").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Rate limited").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Token storage unavailable").
		Build()

	doc.Document(http.MethodPut, Path).
		Summary("Reset password").
		Description("Consumes the reset token and sets the new password. The token cannot be used again.").
		OperationID("completePasswordReset").
		Tags("password").
		Body(CompleteResetRequest{}, "Token from the emailed link and the new password, optionally nested under \"user\"").
		Response(http.StatusOK, MessageResponse{}, "Password changed and session signed in").
		ResponseHeader(http.StatusOK, "Set-Cookie", "Session cookie").
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed request").
		Response(http.StatusUnprocessableEntity, ErrorResponse{}, "Invalid or expired link, or unacceptable password").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Rate limited").
		Response(http.StatusServiceUnavailable, ErrorResponse{}, "Token storage unavailable").
		Build()
}
