package control

import (
	"context"
	"fmt"
	"slices"
	"time"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
	"fleetpilot/internal/domain/policy"
)

func backupName(instanceName string, now time.Time) string {
	return fmt.Sprintf("%s-backup-%s", instanceName, now.UTC().Format("2006-01-02-150405"))
}

func (u UseCase) createBackup(ctx context.Context, ac *ActionContext, p fleet.CreateBackupParams) (outcome, error) {
	inst, err := u.Provider.DescribeInstance(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	now := u.now()
	spec := ports.ImageSpec{
		InstanceID:   p.InstanceID,
		InstanceName: inst.Name(),
		Name:         p.Name,
		Description:  p.Description,
		NoReboot:     p.SkipReboot(),
		CreatedBy:    ac.In.Operator,
	}
	if spec.Name == "" {
		spec.Name = backupName(inst.Name(), now)
	}
	if spec.Description == "" {
		spec.Description = fmt.Sprintf("AMI backup of %s (%s) created on %s", inst.Name(), p.InstanceID, now.Format("2006-01-02-150405"))
	}
	image, err := u.Provider.CreateImage(ctx, spec)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("AMI backup %s created successfully", image.ImageID),
		Data: map[string]any{
			"ami_id":        image.ImageID,
			"ami_name":      spec.Name,
			"instance_id":   p.InstanceID,
			"instance_name": inst.Name(),
			"no_reboot":     spec.NoReboot,
		},
	}, nil
}

func (u UseCase) listBackups(ctx context.Context, p fleet.InstanceParams) (outcome, error) {
	images, err := u.Provider.ListImages(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	slices.SortStableFunc(images, func(a, b fleet.Image) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return outcome{
		Message: fmt.Sprintf("Found %d AMI backup(s) for %s", len(images), p.InstanceID),
		Data:    map[string]any{"amis": images, "count": len(images)},
	}, nil
}

func (u UseCase) checkBackup(ctx context.Context, p fleet.InstanceParams) (outcome, error) {
	images, err := u.Provider.ListImages(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	status := policy.CheckBackupPresence(images, u.now(), u.BackupRecency)
	return outcome{Message: status.Message, Data: status}, nil
}
