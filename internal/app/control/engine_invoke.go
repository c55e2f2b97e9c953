package control

import (
	"context"
	"fmt"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

type outcome struct {
	Message string
	Data    any
}

// InvokeAndRecord performs the provider call and always writes the terminal
// audit record, even when the call panics or the caller goes away.
func (u UseCase) InvokeAndRecord(ctx context.Context, ac *ActionContext) (resp Response, err error) {
	var out outcome
	defer func() {
		if r := recover(); r != nil {
			err = &ports.ProviderError{
				Kind: ports.ProviderUnknown,
				Op:   string(ac.View.Action.Name),
				Err:  fmt.Errorf("panic: %v", r),
			}
		}
		resp, err = u.finish(ctx, ac, out, err)
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeoutFor(ac.View.Action))
	defer cancel()
	out, err = u.dispatch(callCtx, ac)
	return resp, err
}

func (u UseCase) finish(ctx context.Context, ac *ActionContext, out outcome, err error) (Response, error) {
	if err != nil {
		return u.recordFailure(ctx, ac, err)
	}
	rec := u.newRecord(ac, fleet.StatusSuccess)
	rec.Result = encodeJSON(out.Data, "")
	resp := Response{
		Action:   ac.actionLabel(),
		Status:   fleet.StatusSuccess,
		Message:  out.Message,
		Data:     out.Data,
		Warnings: ac.Tmp.Warnings,
	}
	if werr := u.appendRecord(ctx, rec); werr != nil {
		resp.Warnings = append(resp.Warnings, degradedWarning(werr))
	} else {
		resp.LogID = rec.LogID
	}
	u.recordMetrics(ac.actionLabel(), fleet.StatusSuccess, "")
	return resp, nil
}

// dispatch selects the provider operation for the resolved action.
func (u UseCase) dispatch(ctx context.Context, ac *ActionContext) (outcome, error) {
	name := ac.View.Action.Name
	if u.Provider == nil && ac.View.Action.Kind != fleet.KindLog {
		return outcome{}, errNoProvider(string(name))
	}
	switch p := ac.View.Invocation.Params.(type) {
	case fleet.ListInstancesParams:
		return u.listInstances(ctx, p)
	case fleet.LaunchInstanceParams:
		return u.launchInstance(ctx, ac, p)
	case fleet.TerminateInstanceParams:
		return u.terminateInstance(ctx, p)
	case fleet.ChangeInstanceTypeParams:
		return u.changeInstanceType(ctx, ac, p)
	case fleet.InstanceParams:
		switch name {
		case fleet.ActionStartInstance:
			return u.startInstance(ctx, p)
		case fleet.ActionStopInstance:
			return u.stopInstance(ctx, p)
		case fleet.ActionListBackups:
			return u.listBackups(ctx, p)
		case fleet.ActionCheckBackup:
			return u.checkBackup(ctx, p)
		case fleet.ActionListAlarms:
			return u.listAlarms(ctx, p)
		}
	case fleet.ListVolumesParams:
		return u.listVolumes(ctx, p)
	case fleet.CreateVolumeParams:
		return u.createVolume(ctx, p)
	case fleet.AttachVolumeParams:
		return u.attachVolume(ctx, p)
	case fleet.VolumeParams:
		switch name {
		case fleet.ActionDetachVolume:
			return u.detachVolume(ctx, p)
		case fleet.ActionDeleteVolume:
			return u.deleteVolume(ctx, p)
		}
	case fleet.CreateBackupParams:
		return u.createBackup(ctx, ac, p)
	case fleet.CPUAlarmParams:
		return u.createCPUAlarm(ctx, p)
	case fleet.StatusAlarmParams:
		return u.createStatusAlarm(ctx, p)
	case fleet.DeleteAlarmParams:
		return u.deleteAlarm(ctx, p)
	case fleet.ListLogsParams:
		return u.listLogs(ctx, p)
	}
	return outcome{}, fmt.Errorf("no handler for action %s", name)
}
