package handler

import (
	"github.com/flowforge/session-gateway/internal/core/domain"
)

// --- Request types ---

// The identifier is expected to be email-shaped but is deliberately not
// validated as one here; the identity backend owns that judgement.
type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
	// Next is the view the caller originally asked for; echoed back on
	// success so the client can resume navigation.
	Next string `json:"next,omitempty"`
}

type registerRequest struct {
	Name       string `json:"name" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required,min=4"`
	Next       string `json:"next,omitempty"`
}

type updateCreditsRequest struct {
	// Pointer so that an explicit zero passes "required".
	Credits *int `json:"credits" validate:"required,gte=0"`
}

type scrapeRequest struct {
	URL          string `json:"url" validate:"required,url"`
	Instructions string `json:"instructions,omitempty"`
}

// --- Response types ---

type sessionResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	Location    string       `json:"location"`
}

type currentSessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *domain.User `json:"user,omitempty"`
	Error         string       `json:"error,omitempty"`
}

type scrapeResponse struct {
	Result           interface{} `json:"result"`
	CreditsRemaining int         `json:"credits_remaining"`
}

const (
	loginLocation            = "/login"
	defaultDashboardLocation = "/dashboard"
)

// resumeTarget picks where the client should navigate after a successful
// credential operation: the originally requested view when one was
// remembered, the dashboard otherwise.
func resumeTarget(next string) string {
	if next != "" {
		return next
	}
	return defaultDashboardLocation
}
