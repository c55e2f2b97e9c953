package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

func (u UseCase) newRecord(ac *ActionContext, status fleet.Status) fleet.AuditRecord {
	ts := u.now()
	retention := u.AuditRetention
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return fleet.AuditRecord{
		LogID:         uuid.NewString(),
		Timestamp:     ts,
		Action:        ac.actionLabel(),
		Parameters:    encodeJSON(ac.View.RawParams, "{}"),
		Status:        status,
		OperatorEmail: ac.In.Operator,
		Query:         ac.In.Query,
		CorrelationID: ac.View.Correlation,
		RetainUntil:   ts.Add(retention),
	}
}

// appendRecord writes on a context detached from the caller, so a client
// disconnect cannot drop the record of a side effect that already happened.
func (u UseCase) appendRecord(ctx context.Context, rec fleet.AuditRecord) error {
	if u.Audit == nil {
		return ErrAuditUnavailable
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeouts().AuditWrite)
	defer cancel()
	if err := u.Audit.Append(wctx, rec); err != nil {
		hlog.CtxErrorf(ctx, "audit append %s action=%s status=%s: %v", rec.LogID, rec.Action, rec.Status, err)
		return err
	}
	return nil
}

// recordFailure writes the failed audit record for err and builds the
// matching response.
func (u UseCase) recordFailure(ctx context.Context, ac *ActionContext, err error) (Response, error) {
	resp := failedResponse(*ac, err)
	rec := u.newRecord(ac, fleet.StatusFailed)
	rec.Error = err.Error()
	rec.Reason = resp.Error.Reason
	if werr := u.appendRecord(ctx, rec); werr != nil {
		resp.Warnings = append(resp.Warnings, degradedWarning(werr))
	} else {
		resp.LogID = rec.LogID
	}
	u.recordMetrics(ac.actionLabel(), fleet.StatusFailed, rec.Reason)
	return resp, err
}

func failedResponse(ac ActionContext, err error) Response {
	body := classify(err)
	resp := Response{
		Status:   fleet.StatusFailed,
		Message:  failureMessage(body),
		Error:    body,
		Warnings: ac.Tmp.Warnings,
	}
	if !errors.Is(err, ErrInvalidRequest) {
		resp.Action = ac.actionLabel()
	}
	return resp
}

func failureMessage(body *ErrorBody) string {
	switch body.Kind {
	case KindValidation:
		return "Request rejected: " + body.Message
	case KindUnresolvedIntent:
		return "Could not map the request to a supported action: " + body.Message
	case KindPolicyViolation:
		return "Blocked by policy: " + body.Message
	case KindToken:
		switch body.Reason {
		case ReasonTokenExpired:
			return "Confirmation token expired; request the action again to get a new token"
		case ReasonTokenConsumed:
			return "Confirmation token was already used"
		default:
			return "Invalid confirmation token"
		}
	case KindProvider:
		if body.Reason == ReasonTimeout {
			return "The provider did not answer in time; the outcome was recorded as failed"
		}
		return "Provider call failed: " + body.Message
	default:
		return "Request failed: " + body.Message
	}
}

func degradedWarning(err error) string {
	return fmt.Sprintf("%s: audit record could not be written: %v", WarningLoggingDegraded, err)
}

func encodeJSON(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

func errNoProvider(op string) error {
	return &ports.ProviderError{Kind: ports.ProviderUnknown, Op: op, Err: errors.New("no provider configured")}
}

type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (u UseCase) txManager() ports.TxManager {
	if u.TxManager == nil {
		return directTx{}
	}
	return u.TxManager
}

// notifyApproval is fire-and-forget; failures are only logged.
func (u UseCase) notifyApproval(ctx context.Context, ac *ActionContext, tok fleet.ConfirmationToken) {
	if u.Notifier == nil || u.ApprovalAddress == "" {
		return
	}
	correlation := ac.View.Correlation
	subject := fmt.Sprintf("[fleetpilot] confirmation requested: %s", tok.Action)
	body := fmt.Sprintf(
		"Operator %s requested %s.\nParameters: %s\nQuery: %s\nCorrelation: %s\nThe request expires at %s.",
		tok.OperatorEmail, tok.Action, tok.Parameters, ac.In.Query, correlation,
		tok.ExpiresAt.UTC().Format(time.RFC3339),
	)
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeouts().Notify)
	go func() {
		defer cancel()
		if err := u.Notifier.Notify(nctx, u.ApprovalAddress, subject, body); err != nil {
			hlog.CtxWarnf(nctx, "approval notification for %s: %v", correlation, err)
		}
	}()
}
