package passwordreset

type RequestResetRequest struct {
	Email       string `json:"email" form:"email" validate:"required,email,max=254" example:"alice@example.com"`
	RedirectURL string `json:"redirect_url,omitempty" form:"redirect_url" validate:"omitempty,url,max=2048" doc:"Page the emailed link should open instead of the default confirm page"`
}

type CompleteResetRequest struct {
	Token                string `json:"reset_password_token" form:"reset_password_token" validate:"required,max=512"`
	Password             string `json:"password" form:"password" validate:"required,max=72"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" validate:"required,max=72"`
}

// The same fields are accepted at the top level or nested under "user".
type requestResetBody struct {
	User *RequestResetRequest `json:"user"`
	RequestResetRequest
}

type completeResetBody struct {
	User *CompleteResetRequest `json:"user"`
	CompleteResetRequest
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Errors []string `json:"errors"`
}
