package control

import (
	"time"

	"fleetpilot/internal/domain/fleet"
	"fleetpilot/internal/domain/policy"
)

const unknownAction = "unknown"

type ActionInput struct {
	Req      Request
	NowAt    time.Time
	Operator string
	Query    string
	Token    string
}

type ActionView struct {
	// ActionName is the name as resolved or as bound to a token, before any
	// registry check. Audit records use it even for unknown actions.
	ActionName  string
	RawParams   map[string]any
	Action      fleet.Action
	Invocation  fleet.Invocation
	Redeemed    *fleet.ConfirmationToken
	Correlation string
	Instance    *fleet.Instance
	Budget      *policy.BudgetDecision
}

type ActionTmp struct {
	Warnings []string
}

type ActionContext struct {
	In   ActionInput
	View ActionView
	Tmp  ActionTmp
}

func (ac *ActionContext) actionLabel() string {
	if ac.View.Action.Name != "" {
		return string(ac.View.Action.Name)
	}
	if ac.View.ActionName != "" {
		return ac.View.ActionName
	}
	return unknownAction
}

func (ac *ActionContext) warn(msg string) {
	ac.Tmp.Warnings = append(ac.Tmp.Warnings, msg)
}
