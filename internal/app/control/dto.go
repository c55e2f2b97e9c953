package control

import (
	"time"

	"fleetpilot/internal/domain/fleet"
)

type Request struct {
	OperatorEmail     string
	Query             string
	ConfirmationToken string
}

type Response struct {
	Action            string       `json:"action,omitempty"`
	Status            fleet.Status `json:"status"`
	Message           string       `json:"message"`
	Data              any          `json:"data,omitempty"`
	ConfirmationToken string       `json:"confirmation_token,omitempty"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
	Warnings          []string     `json:"warnings,omitempty"`
	Error             *ErrorBody   `json:"error,omitempty"`
	LogID             string       `json:"log_id,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
