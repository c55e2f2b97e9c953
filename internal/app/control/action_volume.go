package control

import (
	"context"
	"fmt"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

func (u UseCase) listVolumes(ctx context.Context, p fleet.ListVolumesParams) (outcome, error) {
	volumes, err := u.Provider.ListVolumes(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("Found %d volume(s)", len(volumes)),
		Data:    map[string]any{"volumes": volumes, "count": len(volumes)},
	}, nil
}

func (u UseCase) createVolume(ctx context.Context, p fleet.CreateVolumeParams) (outcome, error) {
	vol, err := u.Provider.CreateVolume(ctx, ports.VolumeSpec{
		SizeGiB:          p.SizeGiB,
		VolumeType:       p.VolumeType,
		AvailabilityZone: p.AvailabilityZone,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Volume %s created", vol.VolumeID), Data: vol}, nil
}

func (u UseCase) attachVolume(ctx context.Context, p fleet.AttachVolumeParams) (outcome, error) {
	att, err := u.Provider.AttachVolume(ctx, p.VolumeID, p.InstanceID, p.Device)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Volume %s attached to %s at %s", p.VolumeID, p.InstanceID, p.Device), Data: att}, nil
}

func (u UseCase) detachVolume(ctx context.Context, p fleet.VolumeParams) (outcome, error) {
	att, err := u.Provider.DetachVolume(ctx, p.VolumeID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Message: fmt.Sprintf("Volume %s detached", p.VolumeID), Data: att}, nil
}

func (u UseCase) deleteVolume(ctx context.Context, p fleet.VolumeParams) (outcome, error) {
	if err := u.Provider.DeleteVolume(ctx, p.VolumeID); err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("Volume %s deleted", p.VolumeID),
		Data:    map[string]any{"volume_id": p.VolumeID},
	}, nil
}
