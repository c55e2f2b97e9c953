package awsprovider

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

func (p *Provider) CreateImage(ctx context.Context, spec ports.ImageSpec) (fleet.Image, error) {
	now := p.now()
	tags := map[string]string{
		"Name":               spec.Name,
		"SourceInstanceId":   spec.InstanceID,
		"SourceInstanceName": spec.InstanceName,
		"BackupType":         "AMI",
		"CreatedBy":          spec.CreatedBy,
		"CreatedAt":          now.Format(time.RFC3339),
	}
	res, err := p.EC2.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId:  aws.String(spec.InstanceID),
		Name:        aws.String(spec.Name),
		Description: aws.String(spec.Description),
		NoReboot:    aws.Bool(spec.NoReboot),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeImage,
			Tags:         toTags(tags),
		}},
	})
	if err != nil {
		return fleet.Image{}, wrap("CreateImage", err)
	}
	return fleet.Image{
		ImageID:     aws.ToString(res.ImageId),
		Name:        spec.Name,
		State:       string(types.ImageStatePending),
		CreatedAt:   now,
		Description: spec.Description,
		Tags:        tags,
	}, nil
}

// ListImages returns the caller-owned images tagged as backups of instanceID.
func (p *Provider) ListImages(ctx context.Context, instanceID string) ([]fleet.Image, error) {
	res, err := p.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners:  []string{"self"},
		Filters: []types.Filter{{Name: aws.String("tag:SourceInstanceId"), Values: []string{instanceID}}},
	})
	if err != nil {
		return nil, wrap("ListImages", err)
	}
	out := make([]fleet.Image, 0, len(res.Images))
	for _, img := range res.Images {
		created, _ := time.Parse(time.RFC3339, aws.ToString(img.CreationDate))
		out = append(out, fleet.Image{
			ImageID:     aws.ToString(img.ImageId),
			Name:        aws.ToString(img.Name),
			State:       string(img.State),
			CreatedAt:   created.UTC(),
			Description: aws.ToString(img.Description),
			Tags:        fromTags(img.Tags),
		})
	}
	return out, nil
}
