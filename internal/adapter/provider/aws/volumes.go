package awsprovider

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

var errEmptyReply = errors.New("empty reply")

func (p *Provider) ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error) {
	in := &ec2.DescribeVolumesInput{}
	if instanceID != "" {
		in.Filters = []types.Filter{{Name: aws.String("attachment.instance-id"), Values: []string{instanceID}}}
	}
	var out []fleet.Volume
	pages := ec2.NewDescribeVolumesPaginator(p.EC2, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListVolumes", err)
		}
		for _, v := range page.Volumes {
			out = append(out, toVolume(v))
		}
	}
	return out, nil
}

func (p *Provider) DescribeVolume(ctx context.Context, volumeID string) (fleet.Volume, error) {
	res, err := p.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{volumeID}})
	if err != nil {
		return fleet.Volume{}, wrap("DescribeVolume", err)
	}
	if len(res.Volumes) == 0 {
		return fleet.Volume{}, notFound("DescribeVolume", volumeID)
	}
	return toVolume(res.Volumes[0]), nil
}

func (p *Provider) CreateVolume(ctx context.Context, spec ports.VolumeSpec) (fleet.Volume, error) {
	az := spec.AvailabilityZone
	if az == "" {
		zones, err := p.EC2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
		if err != nil {
			return fleet.Volume{}, wrap("CreateVolume", err)
		}
		if len(zones.AvailabilityZones) == 0 {
			return fleet.Volume{}, wrap("CreateVolume", errors.New("no availability zones"))
		}
		az = aws.ToString(zones.AvailabilityZones[0].ZoneName)
	}
	res, err := p.EC2.CreateVolume(ctx, &ec2.CreateVolumeInput{
		Size:             aws.Int32(spec.SizeGiB),
		VolumeType:       types.VolumeType(spec.VolumeType),
		AvailabilityZone: aws.String(az),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeVolume,
			Tags:         toTags(map[string]string{"ManagedBy": "fleetpilot"}),
		}},
	})
	if err != nil {
		return fleet.Volume{}, wrap("CreateVolume", err)
	}
	return fleet.Volume{
		VolumeID:         aws.ToString(res.VolumeId),
		SizeGiB:          aws.ToInt32(res.Size),
		VolumeType:       string(res.VolumeType),
		State:            string(res.State),
		AvailabilityZone: aws.ToString(res.AvailabilityZone),
	}, nil
}

func (p *Provider) AttachVolume(ctx context.Context, volumeID, instanceID, device string) (fleet.VolumeAttachment, error) {
	res, err := p.EC2.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	if err != nil {
		return fleet.VolumeAttachment{}, wrap("AttachVolume", err)
	}
	return fleet.VolumeAttachment{
		VolumeID:   aws.ToString(res.VolumeId),
		InstanceID: aws.ToString(res.InstanceId),
		Device:     aws.ToString(res.Device),
		State:      string(res.State),
	}, nil
}

func (p *Provider) DetachVolume(ctx context.Context, volumeID string) (fleet.VolumeAttachment, error) {
	res, err := p.EC2.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: aws.String(volumeID)})
	if err != nil {
		return fleet.VolumeAttachment{}, wrap("DetachVolume", err)
	}
	return fleet.VolumeAttachment{
		VolumeID:   aws.ToString(res.VolumeId),
		InstanceID: aws.ToString(res.InstanceId),
		Device:     aws.ToString(res.Device),
		State:      string(res.State),
	}, nil
}

func (p *Provider) DeleteVolume(ctx context.Context, volumeID string) error {
	_, err := p.EC2.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)})
	return wrap("DeleteVolume", err)
}

func toVolume(v types.Volume) fleet.Volume {
	out := fleet.Volume{
		VolumeID:         aws.ToString(v.VolumeId),
		SizeGiB:          aws.ToInt32(v.Size),
		VolumeType:       string(v.VolumeType),
		State:            string(v.State),
		AvailabilityZone: aws.ToString(v.AvailabilityZone),
	}
	for _, a := range v.Attachments {
		out.Attachments = append(out.Attachments, fleet.VolumeAttachment{
			VolumeID:   aws.ToString(a.VolumeId),
			InstanceID: aws.ToString(a.InstanceId),
			Device:     aws.ToString(a.Device),
			State:      string(a.State),
		})
	}
	return out
}
