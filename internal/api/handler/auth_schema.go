package handler

import "github.com/portalcms/account-gateway/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email"    validate:"required,email"`

	SecretQuestionID int64  `json:"secret_question_id,omitempty"`
	SecretAnswer     string `json:"secret_answer,omitempty"`
}

type activateRequest struct {
	Token string `json:"token" validate:"required"`
}

type identityResponse struct {
	Identity *domain.Identity `json:"identity"`
}

type registerResponse struct {
	AccountID int64 `json:"account_id"`
}
