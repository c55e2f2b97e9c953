package control

import (
	"context"
	"fmt"
	"math"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
	"fleetpilot/internal/domain/policy"
)

func (u UseCase) listInstances(ctx context.Context, p fleet.ListInstancesParams) (outcome, error) {
	instances, err := u.Provider.ListInstances(ctx, p.State)
	if err != nil {
		return outcome{}, err
	}
	now := u.now()
	prices := u.prices()
	for i := range instances {
		hourly, _ := prices.Hourly(instances[i].InstanceType)
		instances[i].HourlyCost = hourly
		instances[i].MonthlyCost = hourly * policy.HoursPerMonth
		if !instances[i].LaunchTime.IsZero() {
			instances[i].UptimeDays = int(now.Sub(instances[i].LaunchTime).Hours() / 24)
		}
	}
	return outcome{
		Message: fmt.Sprintf("Found %d instance(s)", len(instances)),
		Data:    map[string]any{"instances": instances, "count": len(instances)},
	}, nil
}

func (u UseCase) launchInstance(ctx context.Context, ac *ActionContext, p fleet.LaunchInstanceParams) (outcome, error) {
	budget := ac.View.Budget
	if budget == nil {
		d := policy.CheckBudget(p.InstanceType, u.maxHourlyCost(), u.prices())
		budget = &d
	}
	if p.DryRun {
		return outcome{
			Message: "Dry run successful",
			Data:    map[string]any{"dry_run": true, "estimated_cost": budget},
		}, nil
	}
	inst, err := u.Provider.LaunchInstance(ctx, ports.LaunchSpec{
		ImageID:          p.ImageID,
		InstanceType:     p.InstanceType,
		KeyName:          p.KeyName,
		SubnetID:         p.SubnetID,
		SecurityGroupIDs: p.SecurityGroupIDs,
		Tags:             p.Tags,
		LaunchedBy:       ac.In.Operator,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("Instance %s launched successfully", inst.InstanceID),
		Data:    map[string]any{"instance": inst, "cost_estimate": budget},
	}, nil
}

func (u UseCase) startInstance(ctx context.Context, p fleet.InstanceParams) (outcome, error) {
	change, err := u.Provider.StartInstance(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Instance %s starting", p.InstanceID), Data: change}, nil
}

func (u UseCase) stopInstance(ctx context.Context, p fleet.InstanceParams) (outcome, error) {
	change, err := u.Provider.StopInstance(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Instance %s stopping", p.InstanceID), Data: change}, nil
}

func (u UseCase) terminateInstance(ctx context.Context, p fleet.TerminateInstanceParams) (outcome, error) {
	change, err := u.Provider.TerminateInstance(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Instance %s termination initiated", p.InstanceID), Data: change}, nil
}

func (u UseCase) changeInstanceType(ctx context.Context, ac *ActionContext, p fleet.ChangeInstanceTypeParams) (outcome, error) {
	inst := ac.View.Instance
	if inst == nil {
		described, err := u.Provider.DescribeInstance(ctx, p.InstanceID)
		if err != nil {
			return outcome{}, err
		}
		inst = &described
	}
	data := map[string]any{
		"instance_id":    p.InstanceID,
		"old_type":       inst.InstanceType,
		"new_type":       p.NewInstanceType,
		"backup_created": false,
	}
	if p.WantsBackup() {
		image, err := u.Provider.CreateImage(ctx, ports.ImageSpec{
			InstanceID:   p.InstanceID,
			InstanceName: inst.Name(),
			Name:         backupName(inst.Name(), u.now()),
			Description:  fmt.Sprintf("Pre-resize backup: %s to %s", inst.InstanceType, p.NewInstanceType),
			NoReboot:     true,
			CreatedBy:    ac.In.Operator,
		})
		if err != nil {
			return outcome{}, fmt.Errorf("create pre-resize backup: %w", err)
		}
		data["backup_created"] = true
		data["backup_image_id"] = image.ImageID
	}
	if err := u.Provider.ModifyInstanceType(ctx, p.InstanceID, p.NewInstanceType); err != nil {
		return outcome{}, err
	}
	data["cost_impact"] = costImpact(policy.MonthlyDelta(inst.InstanceType, p.NewInstanceType, u.prices()))
	if ac.View.Budget != nil {
		data["cost_estimate"] = ac.View.Budget
	}
	return outcome{
		Message: fmt.Sprintf("Type changed: %s -> %s", inst.InstanceType, p.NewInstanceType),
		Data:    data,
	}, nil
}

func costImpact(delta float64) string {
	direction := "decrease"
	if delta > 0 {
		direction = "increase"
	}
	return fmt.Sprintf("$%.2f/month %s", math.Abs(delta), direction)
}
