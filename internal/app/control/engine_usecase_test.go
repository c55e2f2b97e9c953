package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetpilot/internal/adapter/provider/mock"
	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

func TestHandle_StopInstanceRecordsSuccess(t *testing.T) {
	h := newHarness()

	resp, err := h.handle("stop instance i-1", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Status != fleet.StatusSuccess || resp.Action != "stop_instance" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := countCalls(h.provider.Calls(), "StopInstance"); got != 1 {
		t.Fatalf("expected one StopInstance call, got %d", got)
	}
	recs := h.records()
	if len(recs) != 1 {
		t.Fatalf("expected one audit record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Status != fleet.StatusSuccess || rec.Action != "stop_instance" || rec.OperatorEmail != operator {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.LogID != resp.LogID || rec.Query != "stop instance i-1" {
		t.Fatalf("record not linked to response: %+v vs %+v", rec, resp)
	}
	if !rec.RetainUntil.Equal(rec.Timestamp.Add(DefaultAuditRetention)) {
		t.Fatalf("unexpected retention: %s", rec.RetainUntil)
	}
}

func TestHandle_TerminateRequiresConfirmation(t *testing.T) {
	h := newHarness()
	notes := make(chan notification, 1)
	h.uc.Notifier = chanNotifier{ch: notes}
	h.uc.ApprovalAddress = "arn:aws:sns:us-east-1:123:approvals"

	resp, err := h.handle("terminate i-1", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Status != fleet.StatusPending || resp.ConfirmationToken == "" || resp.ExpiresAt == nil {
		t.Fatalf("expected pending response with token, got %+v", resp)
	}
	if got := countCalls(h.provider.Calls(), "TerminateInstance"); got != 0 {
		t.Fatalf("provider must not be mutated before confirmation")
	}
	if h.store.TokenLen() != 1 {
		t.Fatalf("expected one issued token, got %d", h.store.TokenLen())
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Status != fleet.StatusPending || recs[0].Reason != ReasonAwaitingConfirmation {
		t.Fatalf("expected one pending record, got %+v", recs)
	}
	pendingCorrelation := recs[0].CorrelationID
	if pendingCorrelation == "" || strings.Contains(pendingCorrelation, resp.ConfirmationToken) {
		t.Fatalf("bad correlation id %q", pendingCorrelation)
	}
	if len(resp.Warnings) == 0 {
		t.Fatalf("expected destructive warning")
	}

	select {
	case n := <-notes:
		if n.address != h.uc.ApprovalAddress || !strings.Contains(n.subject, "terminate_instance") {
			t.Fatalf("unexpected notification: %+v", n)
		}
		if strings.Contains(n.body, resp.ConfirmationToken) {
			t.Fatalf("notification must not carry the token")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("approval notification not sent")
	}

	confirmed, err := h.uc.Handle(context.Background(), Request{OperatorEmail: operator, ConfirmationToken: resp.ConfirmationToken})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != fleet.StatusSuccess {
		t.Fatalf("expected success after confirmation, got %+v", confirmed)
	}
	if got := countCalls(h.provider.Calls(), "TerminateInstance"); got != 1 {
		t.Fatalf("expected one TerminateInstance call, got %d", got)
	}
	if inst, _ := h.provider.Instance(runningID); inst.State != fleet.InstanceStateTerminated {
		t.Fatalf("instance not terminated: %+v", inst)
	}

	again, err := h.uc.Handle(context.Background(), Request{OperatorEmail: operator, ConfirmationToken: resp.ConfirmationToken})
	if !errors.Is(err, confirm.ErrTokenConsumed) {
		t.Fatalf("expected ErrTokenConsumed, got %v", err)
	}
	if again.Error == nil || again.Error.Reason != ReasonTokenConsumed {
		t.Fatalf("unexpected second redeem response: %+v", again)
	}
	if got := countCalls(h.provider.Calls(), "TerminateInstance"); got != 1 {
		t.Fatalf("second redeem must not execute, got %d calls", got)
	}

	var success, failed int
	for _, rec := range h.records() {
		switch rec.Status {
		case fleet.StatusSuccess:
			success++
			if rec.CorrelationID != pendingCorrelation {
				t.Fatalf("terminal record not correlated with pending record")
			}
		case fleet.StatusFailed:
			failed++
			if rec.Reason != ReasonTokenConsumed {
				t.Fatalf("unexpected failure reason %q", rec.Reason)
			}
		}
	}
	if success != 1 || failed != 1 {
		t.Fatalf("expected one success and one failed record, got %d/%d", success, failed)
	}
}

func TestHandle_LaunchOverBudgetIsBlocked(t *testing.T) {
	h := newHarness()

	resp, err := h.handle("launch big", "")
	var violation *PolicyViolationError
	if !errors.As(err, &violation) || violation.Policy != ReasonBudget {
		t.Fatalf("expected budget violation, got %v", err)
	}
	if violation.Budget == nil || violation.Budget.HourlyCost != 4.608 {
		t.Fatalf("expected budget details, got %+v", violation.Budget)
	}
	if resp.Error == nil || resp.Error.Kind != KindPolicyViolation || resp.Error.Reason != ReasonBudget {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := countCalls(h.provider.Calls(), "LaunchInstance"); got != 0 {
		t.Fatalf("provider must not be called on policy violation")
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Status != fleet.StatusFailed || recs[0].Reason != "budget" {
		t.Fatalf("expected one failed budget record, got %+v", recs)
	}
}

func TestHandle_LaunchUnderBudgetCallsProvider(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("launch medium", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := countCalls(h.provider.Calls(), "LaunchInstance"); got != 1 {
		t.Fatalf("expected launch, got %d calls", got)
	}
	data := resp.Data.(map[string]any)
	inst := data["instance"].(fleet.Instance)
	if inst.Tags["LaunchedBy"] != operator {
		t.Fatalf("launch not tagged with operator: %+v", inst.Tags)
	}
}

func TestHandle_LaunchDryRunSkipsProvider(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("launch dry", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Status != fleet.StatusSuccess || resp.Message != "Dry run successful" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := countCalls(h.provider.Calls(), "LaunchInstance"); got != 0 {
		t.Fatalf("dry run must not launch")
	}
}

func TestHandle_LaunchUnknownPriceWarns(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("launch exotic", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "x9.mega") {
		t.Fatalf("expected unknown price warning, got %v", resp.Warnings)
	}
}

func TestHandle_ExpiredTokenNeverExecutes(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("terminate i-1", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	h.clock.Advance(5 * time.Minute)

	out, err := h.uc.Handle(context.Background(), Request{OperatorEmail: operator, ConfirmationToken: resp.ConfirmationToken})
	if !errors.Is(err, confirm.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if out.Error.Reason != ReasonTokenExpired || out.Action != "terminate_instance" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if got := countCalls(h.provider.Calls(), "TerminateInstance"); got != 0 {
		t.Fatalf("expired token executed the action")
	}
}

func TestHandle_UnknownTokenIsLogged(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("", "NOSUCHTOKEN")
	if !errors.Is(err, confirm.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if resp.Action != unknownAction {
		t.Fatalf("unexpected action label %q", resp.Action)
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Reason != ReasonTokenNotFound {
		t.Fatalf("expected failed token record, got %+v", recs)
	}
}

func TestHandle_ConcurrentRedemptionHasOneWinner(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("terminate i-1", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.uc.Handle(context.Background(), Request{OperatorEmail: operator, ConfirmationToken: resp.ConfirmationToken})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, consumed int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, confirm.ErrTokenConsumed):
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || consumed != workers-1 {
		t.Fatalf("wins=%d consumed=%d", wins, consumed)
	}
	if got := countCalls(h.provider.Calls(), "TerminateInstance"); got != 1 {
		t.Fatalf("expected exactly one termination, got %d", got)
	}
}

func TestHandle_ValidationRejectsBeforeSideEffects(t *testing.T) {
	h := newHarness()
	for _, req := range []Request{
		{OperatorEmail: "", Query: "stop instance i-1"},
		{OperatorEmail: "not-an-email", Query: "stop instance i-1"},
		{OperatorEmail: "Ops <ops@example.com>", Query: "stop instance i-1"},
		{OperatorEmail: "ops@localhost", Query: "stop instance i-1"},
		{OperatorEmail: "ops@example.com"},
	} {
		resp, err := h.uc.Handle(context.Background(), req)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %+v, got %v", req, err)
		}
		if resp.Error == nil || resp.Error.Kind != KindValidation {
			t.Fatalf("unexpected response: %+v", resp)
		}
	}
	if len(h.records()) != 0 || len(h.provider.Calls()) != 0 {
		t.Fatalf("validation failures must not log or call the provider")
	}
}

func TestHandle_OperatorEmailIsCaseInsensitive(t *testing.T) {
	h := newHarness()
	if _, err := h.uc.Handle(context.Background(), Request{OperatorEmail: "A@B.com", Query: "stop instance i-1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	recs, err := h.audit.ListByOperator(context.Background(), "a@b.com", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].OperatorEmail != "a@b.com" {
		t.Fatalf("expected one record under the lowercased address, got %+v", recs)
	}
}

func TestHandle_UnresolvedIntentIsLogged(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		reason string
		setup  func(h *harness)
	}{
		{name: "resolver error", query: "stop instance i-1", reason: ReasonResolverFailed, setup: func(h *harness) { h.resolver.err = errResolverDown }},
		{name: "no intent", query: "what is love", reason: ReasonResolverFailed},
		{name: "unknown action", query: "reboot everything", reason: ReasonUnknownAction},
		{name: "bad params", query: "stop bad id", reason: ReasonInvalidParameters},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			if tc.setup != nil {
				tc.setup(h)
			}
			resp, err := h.handle(tc.query, "")
			if !errors.Is(err, ErrUnresolvedIntent) {
				t.Fatalf("expected ErrUnresolvedIntent, got %v", err)
			}
			if resp.Error.Kind != KindUnresolvedIntent || resp.Error.Reason != tc.reason {
				t.Fatalf("unexpected error body: %+v", resp.Error)
			}
			recs := h.records()
			if len(recs) != 1 || recs[0].Status != fleet.StatusFailed || recs[0].Reason != tc.reason {
				t.Fatalf("expected failed record, got %+v", recs)
			}
			if len(h.provider.Calls()) != 0 {
				t.Fatalf("provider called for unresolved intent: %v", h.provider.Calls())
			}
		})
	}
}

func TestHandle_ResolverSeesOperatorHistory(t *testing.T) {
	h := newHarness()
	if _, err := h.handle("stop instance i-1", ""); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := h.handle("list instances", ""); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(h.resolver.history) != 1 || h.resolver.history[0].Action != "stop_instance" {
		t.Fatalf("resolver did not receive history: %+v", h.resolver.history)
	}
}

func TestHandle_ResizeRequiresStoppedInstance(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("resize running", "")
	if !errors.Is(err, ErrPolicyViolation) || resp.Error.Reason != ReasonPrecondition {
		t.Fatalf("expected precondition violation, got %v / %+v", err, resp.Error)
	}
	if got := countCalls(h.provider.Calls(), "ModifyInstanceType"); got != 0 {
		t.Fatalf("resize must not reach the provider")
	}
}

func TestHandle_ResizeTakesBackupFirst(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("resize stopped", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	calls := h.provider.Calls()
	backupAt, modifyAt := -1, -1
	for i, c := range calls {
		switch c {
		case "CreateImage":
			backupAt = i
		case "ModifyInstanceType":
			modifyAt = i
		}
	}
	if backupAt < 0 || modifyAt < backupAt {
		t.Fatalf("expected backup before resize, calls=%v", calls)
	}
	data := resp.Data.(map[string]any)
	if data["cost_impact"] != "$60.74/month increase" {
		t.Fatalf("unexpected cost impact %v", data["cost_impact"])
	}
	if inst, _ := h.provider.Instance(stoppedID); inst.InstanceType != "t3.xlarge" {
		t.Fatalf("instance type not changed: %+v", inst)
	}
}

func TestHandle_DeleteAttachedVolumeIsBlocked(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("delete attached volume", "")
	if !errors.Is(err, ErrPolicyViolation) || resp.Error.Reason != ReasonPrecondition {
		t.Fatalf("expected precondition violation, got %v", err)
	}
	if h.store.TokenLen() != 0 {
		t.Fatalf("no token may be issued for a blocked delete")
	}
}

func TestHandle_DeleteFreeVolumeAfterConfirmation(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("delete free volume", "")
	if err != nil || resp.Status != fleet.StatusPending {
		t.Fatalf("expected pending, got %v / %+v", err, resp)
	}
	if _, err := h.handle("", strings.ToLower(resp.ConfirmationToken)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := countCalls(h.provider.Calls(), "DeleteVolume"); got != 1 {
		t.Fatalf("expected one DeleteVolume call, got %d", got)
	}
}

func TestHandle_ProviderTimeoutIsRecorded(t *testing.T) {
	h := newHarness()
	h.uc.Provider = blockingProvider{Provider: h.provider}
	h.uc.Timeouts = Timeouts{Read: 20 * time.Millisecond, StateChange: 20 * time.Millisecond, Default: 20 * time.Millisecond}

	resp, err := h.handle("stop instance i-1", "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if resp.Error.Kind != KindProvider || resp.Error.Reason != ReasonTimeout {
		t.Fatalf("unexpected error body: %+v", resp.Error)
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Reason != ReasonTimeout {
		t.Fatalf("timeout not recorded: %+v", recs)
	}
}

func TestHandle_CallerCancellationDoesNotSkipAudit(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	h.uc.Provider = cancellingProvider{Provider: h.provider, cancel: cancel}

	resp, err := h.uc.Handle(ctx, Request{OperatorEmail: operator, Query: "stop instance i-1"})
	if err != nil {
		t.Fatalf("detached call should succeed, got %v", err)
	}
	if resp.Status != fleet.StatusSuccess || resp.LogID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if ctx.Err() == nil {
		t.Fatalf("caller context should be cancelled")
	}
	if len(h.records()) != 1 {
		t.Fatalf("audit record missing after caller cancellation")
	}
}

func TestHandle_ProviderPanicStillRecordsFailure(t *testing.T) {
	h := newHarness()
	h.uc.Provider = panickingProvider{Provider: h.provider}

	resp, err := h.handle("start instance", "")
	var pe *ports.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if resp.Status != fleet.StatusFailed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	recs := h.records()
	if len(recs) != 1 || recs[0].Status != fleet.StatusFailed || !strings.Contains(recs[0].Error, "sdk exploded") {
		t.Fatalf("panic not recorded: %+v", recs)
	}
}

func TestHandle_ProviderErrorKindIsReported(t *testing.T) {
	h := newHarness()
	h.provider.FailNext("StopInstance", &ports.ProviderError{Kind: ports.ProviderPermissionDenied, Op: "StopInstance"})
	resp, _ := h.handle("stop instance i-1", "")
	if resp.Error == nil || resp.Error.Reason != "provider_permission_denied" {
		t.Fatalf("unexpected error body: %+v", resp.Error)
	}
}

func TestHandle_AuditFailureDegradesToWarning(t *testing.T) {
	h := newHarness()
	h.uc.Audit = flakyAuditRepo{AuditRepository: h.audit, appendErr: errors.New("disk full")}

	resp, err := h.handle("stop instance i-1", "")
	if err != nil {
		t.Fatalf("mutation succeeded, expected nil error, got %v", err)
	}
	if resp.Status != fleet.StatusSuccess {
		t.Fatalf("unexpected status %s", resp.Status)
	}
	if len(resp.Warnings) != 1 || !strings.HasPrefix(resp.Warnings[0], WarningLoggingDegraded) {
		t.Fatalf("expected logging_degraded warning, got %v", resp.Warnings)
	}
	if inst, _ := h.provider.Instance(runningID); inst.State != fleet.InstanceStateStopped {
		t.Fatalf("mutation should have happened")
	}
}

func TestHandle_PendingNotWrittenMeansNoToken(t *testing.T) {
	h := newHarness()
	h.uc.Audit = flakyAuditRepo{AuditRepository: h.audit, appendErr: errors.New("disk full")}

	resp, err := h.handle("terminate i-1", "")
	if !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("expected ErrAuditUnavailable, got %v", err)
	}
	if resp.ConfirmationToken != "" {
		t.Fatalf("token must not be handed out without a pending record")
	}
}

func TestHandle_ListLogsReadsLedger(t *testing.T) {
	h := newHarness()
	_, _ = h.handle("stop instance i-1", "")
	_, _ = h.handle("launch big", "")

	resp, err := h.handle("show logs", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Message, "Found 2") {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestHandle_ListInstancesAddsCost(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("list instances", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	data := resp.Data.(map[string]any)
	instances := data["instances"].([]fleet.Instance)
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}
	if instances[0].HourlyCost != 0.0104 || instances[0].UptimeDays != 3 {
		t.Fatalf("cost/uptime not filled: %+v", instances[0])
	}
}

func TestHandle_BackupCheckAndAlarmDefaults(t *testing.T) {
	h := newHarness()
	resp, err := h.handle("check backup", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Message, "No AMI backups") {
		t.Fatalf("unexpected backup message %q", resp.Message)
	}

	resp, err = h.handle("cpu alarm", "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	data := resp.Data.(map[string]any)
	if data["alarm_name"] != runningID+"-high-cpu" || data["threshold"] != 80.0 {
		t.Fatalf("unexpected alarm defaults: %+v", data)
	}
}

func TestHandle_MetricsSeeEveryOutcome(t *testing.T) {
	h := newHarness()
	_, _ = h.handle("stop instance i-1", "")
	_, _ = h.handle("launch big", "")
	_, _ = h.handle("terminate i-1", "")

	want := []string{
		"stop_instance/success/",
		"launch_instance/failed/budget",
		"terminate_instance/pending/awaiting_confirmation",
	}
	if strings.Join(h.metrics.seen, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected metrics %v", h.metrics.seen)
	}
}

var _ ports.Provider = blockingProvider{}
var _ ports.Provider = (*mock.Provider)(nil)
