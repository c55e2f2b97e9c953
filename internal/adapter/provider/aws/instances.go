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

func (p *Provider) ListInstances(ctx context.Context, state string) ([]fleet.Instance, error) {
	in := &ec2.DescribeInstancesInput{}
	if state != "" {
		in.Filters = []types.Filter{{Name: aws.String("instance-state-name"), Values: []string{state}}}
	}
	var out []fleet.Instance
	pages := ec2.NewDescribeInstancesPaginator(p.EC2, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListInstances", err)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, toInstance(inst))
			}
		}
	}
	return out, nil
}

func (p *Provider) DescribeInstance(ctx context.Context, instanceID string) (fleet.Instance, error) {
	res, err := p.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fleet.Instance{}, wrap("DescribeInstance", err)
	}
	for _, r := range res.Reservations {
		for _, inst := range r.Instances {
			return toInstance(inst), nil
		}
	}
	return fleet.Instance{}, notFound("DescribeInstance", instanceID)
}

func (p *Provider) LaunchInstance(ctx context.Context, spec ports.LaunchSpec) (fleet.Instance, error) {
	tags := map[string]string{}
	for k, v := range spec.Tags {
		tags[k] = v
	}
	tags["ManagedBy"] = "fleetpilot"
	tags["LaunchedBy"] = spec.LaunchedBy
	tags["LaunchedAt"] = p.now().Format(time.RFC3339)

	in := &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.ImageID),
		InstanceType:     types.InstanceType(spec.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: spec.SecurityGroupIDs,
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         toTags(tags),
		}},
	}
	if spec.KeyName != "" {
		in.KeyName = aws.String(spec.KeyName)
	}
	if spec.SubnetID != "" {
		in.SubnetId = aws.String(spec.SubnetID)
	}
	res, err := p.EC2.RunInstances(ctx, in)
	if err != nil {
		return fleet.Instance{}, wrap("LaunchInstance", err)
	}
	if len(res.Instances) == 0 {
		return fleet.Instance{}, wrap("LaunchInstance", errEmptyReply)
	}
	return toInstance(res.Instances[0]), nil
}

func (p *Provider) StartInstance(ctx context.Context, instanceID string) (fleet.StateChange, error) {
	res, err := p.EC2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fleet.StateChange{}, wrap("StartInstance", err)
	}
	return firstChange(instanceID, res.StartingInstances), nil
}

func (p *Provider) StopInstance(ctx context.Context, instanceID string) (fleet.StateChange, error) {
	res, err := p.EC2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fleet.StateChange{}, wrap("StopInstance", err)
	}
	return firstChange(instanceID, res.StoppingInstances), nil
}

func (p *Provider) TerminateInstance(ctx context.Context, instanceID string) (fleet.StateChange, error) {
	res, err := p.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fleet.StateChange{}, wrap("TerminateInstance", err)
	}
	return firstChange(instanceID, res.TerminatingInstances), nil
}

func (p *Provider) ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error {
	_, err := p.EC2.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(instanceID),
		InstanceType: &types.AttributeValue{Value: aws.String(instanceType)},
	})
	return wrap("ModifyInstanceType", err)
}

func toInstance(inst types.Instance) fleet.Instance {
	out := fleet.Instance{
		InstanceID:       aws.ToString(inst.InstanceId),
		InstanceType:     string(inst.InstanceType),
		LaunchTime:       aws.ToTime(inst.LaunchTime).UTC(),
		PrivateIPAddress: aws.ToString(inst.PrivateIpAddress),
		PublicIPAddress:  aws.ToString(inst.PublicIpAddress),
		Tags:             fromTags(inst.Tags),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		out.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	return out
}

func firstChange(instanceID string, changes []types.InstanceStateChange) fleet.StateChange {
	out := fleet.StateChange{InstanceID: instanceID}
	if len(changes) == 0 {
		return out
	}
	c := changes[0]
	if c.PreviousState != nil {
		out.PreviousState = string(c.PreviousState.Name)
	}
	if c.CurrentState != nil {
		out.CurrentState = string(c.CurrentState.Name)
	}
	return out
}

func toTags(m map[string]string) []types.Tag {
	tags := make([]types.Tag, 0, len(m))
	for k, v := range m {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return tags
}

func fromTags(tags []types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
