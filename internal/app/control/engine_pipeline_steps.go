package control

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/domain/fleet"
	"fleetpilot/internal/domain/policy"
)

func (u UseCase) ValidateRequest(req Request) (ActionContext, error) {
	ac := ActionContext{In: ActionInput{
		Req:   req,
		Query: strings.TrimSpace(req.Query),
		Token: confirm.NormalizeToken(req.ConfirmationToken),
	}}
	email, ok := normalizeEmail(req.OperatorEmail)
	if !ok {
		return ac, fmt.Errorf("%w: operator email %q is not a valid address", ErrInvalidRequest, req.OperatorEmail)
	}
	ac.In.Operator = email
	if ac.In.Query == "" && ac.In.Token == "" {
		return ac, fmt.Errorf("%w: a query or a confirmation token is required", ErrInvalidRequest)
	}
	return ac, nil
}

// normalizeEmail accepts a bare RFC 5322 address whose domain has at least
// one dot and returns it lowercased. Display names and angle brackets are
// rejected.
func normalizeEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		return "", false
	}
	domain := raw[strings.LastIndexByte(raw, '@')+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}
	return strings.ToLower(raw), true
}

func (u UseCase) RedeemToken(ctx context.Context, ac *ActionContext) error {
	ac.View.Correlation = confirm.CorrelationID(ac.In.Token)
	tok, params, err := u.Tokens.Redeem(ctx, ac.In.Token)
	if tok.Action != "" {
		ac.View.ActionName = string(tok.Action)
	}
	if err != nil {
		return err
	}
	ac.View.Redeemed = &tok
	ac.View.RawParams = params
	return nil
}

func (u UseCase) ResolveIntent(ctx context.Context, ac *ActionContext) error {
	if u.Resolver == nil {
		return &UnresolvedIntentError{Reason: ReasonResolverFailed, Err: errors.New("no intent resolver configured")}
	}
	intent, err := u.Resolver.Resolve(ctx, ac.In.Query, u.operatorHistory(ctx, ac.In.Operator))
	if err != nil {
		return &UnresolvedIntentError{Reason: ReasonResolverFailed, Err: err}
	}
	ac.View.ActionName = string(fleet.NormalizeActionName(intent.Action))
	ac.View.RawParams = intent.Parameters
	return nil
}

// operatorHistory is best effort context for the resolver.
func (u UseCase) operatorHistory(ctx context.Context, operator string) []fleet.AuditRecord {
	size := u.HistorySize
	if size == 0 {
		size = DefaultHistorySize
	}
	if size < 0 || u.Audit == nil {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, u.timeouts().Read)
	defer cancel()
	history, err := u.Audit.ListByOperator(qctx, operator, size)
	if err != nil {
		hlog.CtxWarnf(ctx, "load operator history for %s: %v", operator, err)
		return nil
	}
	return history
}

func (u UseCase) BindAction(ac *ActionContext) error {
	name := fleet.ActionName(ac.View.ActionName)
	reg := u.registry()
	spec, err := reg.Lookup(name)
	if err != nil {
		return &UnresolvedIntentError{Action: ac.View.ActionName, Reason: ReasonUnknownAction, Err: err}
	}
	ac.View.Action = spec
	if err := reg.Validate(name, ac.View.RawParams); err != nil {
		return &UnresolvedIntentError{Action: ac.View.ActionName, Reason: ReasonInvalidParameters, Err: err}
	}
	params, err := fleet.DecodeParams(name, ac.View.RawParams)
	if err != nil {
		return &UnresolvedIntentError{Action: ac.View.ActionName, Reason: ReasonInvalidParameters, Err: err}
	}
	ac.View.Invocation = fleet.Invocation{Action: spec, Params: params, Raw: ac.View.RawParams}
	return nil
}

// RunPrechecks applies the hard policies of non-destructive mutating
// actions. A returned error means the provider must not be called.
func (u UseCase) RunPrechecks(ctx context.Context, ac *ActionContext) error {
	switch p := ac.View.Invocation.Params.(type) {
	case fleet.LaunchInstanceParams:
		return u.checkBudget(ac, p.InstanceType)
	case fleet.ChangeInstanceTypeParams:
		if err := u.checkBudget(ac, p.NewInstanceType); err != nil {
			return err
		}
		inst, err := u.describeInstance(ctx, p.InstanceID)
		if err != nil {
			return err
		}
		ac.View.Instance = &inst
		if policy.CheckStoppedForResize(inst.State) != policy.Ready {
			return &PolicyViolationError{
				Policy: ReasonPrecondition,
				Detail: fmt.Sprintf("instance %s must be stopped before resizing, current state is %s", p.InstanceID, inst.State),
			}
		}
	}
	return nil
}

func (u UseCase) checkBudget(ac *ActionContext, instanceType string) error {
	d := policy.CheckBudget(instanceType, u.maxHourlyCost(), u.prices())
	ac.View.Budget = &d
	switch d.Verdict {
	case policy.VerdictDeny:
		return &PolicyViolationError{
			Policy: ReasonBudget,
			Detail: fmt.Sprintf("instance type %s costs $%.4f/hour, above the $%.2f/hour limit", instanceType, d.HourlyCost, d.Ceiling),
			Budget: &d,
		}
	case policy.VerdictUnknown:
		ac.warn(fmt.Sprintf("no price known for instance type %s; budget limit not enforced", instanceType))
	}
	return nil
}

func (u UseCase) describeInstance(ctx context.Context, instanceID string) (fleet.Instance, error) {
	if u.Provider == nil {
		return fleet.Instance{}, errNoProvider("DescribeInstance")
	}
	rctx, cancel := context.WithTimeout(ctx, u.timeouts().Read)
	defer cancel()
	return u.Provider.DescribeInstance(rctx, instanceID)
}

// GateDestructive runs advisory checks, then issues a confirmation token and
// writes the pending audit record together. The provider is never mutated.
func (u UseCase) GateDestructive(ctx context.Context, ac *ActionContext) (Response, error) {
	data := map[string]any{}
	switch p := ac.View.Invocation.Params.(type) {
	case fleet.TerminateInstanceParams:
		inst, err := u.describeInstance(ctx, p.InstanceID)
		if err != nil {
			return u.recordFailure(ctx, ac, err)
		}
		data["instance_details"] = map[string]any{
			"instance_id": inst.InstanceID,
			"name":        inst.Name(),
			"type":        inst.InstanceType,
			"state":       inst.State,
		}
		if !p.SkipBackupCheck {
			status, err := u.backupStatus(ctx, p.InstanceID)
			if err != nil {
				ac.warn(fmt.Sprintf("backup check unavailable: %v", err))
			} else {
				data["backup_status"] = status
				if !status.HasRecentBackup {
					ac.warn(status.Message + ". " + status.Recommendation)
				}
			}
		}
	case fleet.VolumeParams:
		vol, err := u.describeVolume(ctx, p.VolumeID)
		if err != nil {
			return u.recordFailure(ctx, ac, err)
		}
		if policy.CheckVolumeDetached(vol) != policy.Ready {
			return u.recordFailure(ctx, ac, &PolicyViolationError{
				Policy: ReasonPrecondition,
				Detail: fmt.Sprintf("volume %s is attached to %s; detach it first", vol.VolumeID, vol.Attachments[0].InstanceID),
			})
		}
		data["volume"] = vol
	}

	var (
		tok fleet.ConfirmationToken
		rec fleet.AuditRecord
	)
	err := u.txManager().RunInTx(ctx, func(txCtx context.Context) error {
		issued, err := u.Tokens.Issue(txCtx, ac.View.Action.Name, ac.View.RawParams, ac.In.Operator)
		if err != nil {
			return err
		}
		tok = issued
		ac.View.Correlation = confirm.CorrelationID(issued.Token)
		rec = u.newRecord(ac, fleet.StatusPending)
		rec.Reason = ReasonAwaitingConfirmation
		if u.Audit == nil {
			return ErrAuditUnavailable
		}
		if err := u.Audit.Append(txCtx, rec); err != nil {
			return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
		}
		return nil
	})
	if err != nil {
		hlog.CtxErrorf(ctx, "gate %s for %s: %v", ac.View.Action.Name, ac.In.Operator, err)
		resp := failedResponse(*ac, err)
		u.recordMetrics(ac.actionLabel(), fleet.StatusFailed, resp.Error.Reason)
		return resp, err
	}

	u.notifyApproval(ctx, ac, tok)
	u.recordMetrics(ac.actionLabel(), fleet.StatusPending, ReasonAwaitingConfirmation)

	expires := tok.ExpiresAt
	ttl := tok.ExpiresAt.Sub(tok.CreatedAt).Round(time.Second)
	ac.warn(fmt.Sprintf("DESTRUCTIVE: %s cannot be undone. Resubmit with confirmation token %s within %s to proceed.", ac.View.Action.Summary, tok.Token, ttl))
	return Response{
		Action:            ac.actionLabel(),
		Status:            fleet.StatusPending,
		Message:           fmt.Sprintf("Confirmation required for %s. Token: %s", ac.View.Action.Name, tok.Token),
		Data:              data,
		ConfirmationToken: tok.Token,
		ExpiresAt:         &expires,
		Warnings:          ac.Tmp.Warnings,
		LogID:             rec.LogID,
	}, nil
}

func (u UseCase) backupStatus(ctx context.Context, instanceID string) (policy.BackupStatus, error) {
	rctx, cancel := context.WithTimeout(ctx, u.timeouts().Read)
	defer cancel()
	images, err := u.Provider.ListImages(rctx, instanceID)
	if err != nil {
		return policy.BackupStatus{}, err
	}
	return policy.CheckBackupPresence(images, u.now(), u.BackupRecency), nil
}

func (u UseCase) describeVolume(ctx context.Context, volumeID string) (fleet.Volume, error) {
	if u.Provider == nil {
		return fleet.Volume{}, errNoProvider("DescribeVolume")
	}
	rctx, cancel := context.WithTimeout(ctx, u.timeouts().Read)
	defer cancel()
	return u.Provider.DescribeVolume(rctx, volumeID)
}
