package control

import (
	"context"
	"errors"
	"fmt"

	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/policy"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnresolvedIntent = errors.New("unresolved intent")
	ErrPolicyViolation  = errors.New("policy violation")
	ErrAuditUnavailable = errors.New("audit ledger unavailable")
)

const (
	KindValidation       = "validation"
	KindUnresolvedIntent = "unresolved_intent"
	KindPolicyViolation  = "policy_violation"
	KindToken            = "token"
	KindProvider         = "provider"
	KindInternal         = "internal"

	WarningLoggingDegraded = "logging_degraded"
)

const (
	ReasonInvalidRequest       = "invalid_request"
	ReasonUnknownAction        = "unknown_action"
	ReasonResolverFailed       = "resolver_failed"
	ReasonInvalidParameters    = "invalid_parameters"
	ReasonBudget               = "budget"
	ReasonPrecondition         = "precondition"
	ReasonTokenNotFound        = "token_not_found"
	ReasonTokenExpired         = "token_expired"
	ReasonTokenConsumed        = "token_already_consumed"
	ReasonTimeout              = "timeout"
	ReasonAwaitingConfirmation = "awaiting_confirmation"
	ReasonAuditUnavailable     = "audit_unavailable"
	ReasonInternal             = "internal"
)

type UnresolvedIntentError struct {
	Action string
	Reason string
	Err    error
}

func (e *UnresolvedIntentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrUnresolvedIntent, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrUnresolvedIntent, e.Reason, e.Err)
}

func (e *UnresolvedIntentError) Unwrap() error {
	return ErrUnresolvedIntent
}

type PolicyViolationError struct {
	Policy string
	Detail string
	Budget *policy.BudgetDecision
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrPolicyViolation, e.Policy, e.Detail)
}

func (e *PolicyViolationError) Unwrap() error {
	return ErrPolicyViolation
}

// classify maps any error produced while handling a request onto the
// response error body. It is the only place that decides error kinds.
func classify(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	body := &ErrorBody{Message: err.Error()}

	var unresolved *UnresolvedIntentError
	var violation *PolicyViolationError
	var provider *ports.ProviderError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		body.Kind, body.Reason = KindValidation, ReasonInvalidRequest
	case errors.As(err, &unresolved):
		body.Kind, body.Reason = KindUnresolvedIntent, unresolved.Reason
	case errors.As(err, &violation):
		body.Kind, body.Reason = KindPolicyViolation, violation.Policy
	case errors.Is(err, confirm.ErrTokenNotFound):
		body.Kind, body.Reason = KindToken, ReasonTokenNotFound
	case errors.Is(err, confirm.ErrTokenExpired):
		body.Kind, body.Reason = KindToken, ReasonTokenExpired
	case errors.Is(err, confirm.ErrTokenConsumed):
		body.Kind, body.Reason = KindToken, ReasonTokenConsumed
	case errors.Is(err, context.DeadlineExceeded):
		body.Kind, body.Reason = KindProvider, ReasonTimeout
	case errors.As(err, &provider):
		body.Kind, body.Reason = KindProvider, "provider_"+string(provider.Kind)
	case errors.Is(err, ErrAuditUnavailable):
		body.Kind, body.Reason = KindInternal, ReasonAuditUnavailable
	default:
		body.Kind, body.Reason = KindInternal, ReasonInternal
	}
	return body
}
