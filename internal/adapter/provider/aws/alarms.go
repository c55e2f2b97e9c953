package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

const ec2Namespace = "AWS/EC2"

func (p *Provider) PutAlarm(ctx context.Context, spec ports.AlarmSpec) error {
	_, err := p.CloudWatch.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(spec.AlarmName),
		AlarmDescription:   aws.String(spec.Description),
		ActionsEnabled:     aws.Bool(len(spec.ActionARNs) > 0),
		AlarmActions:       spec.ActionARNs,
		MetricName:         aws.String(spec.MetricName),
		Namespace:          aws.String(ec2Namespace),
		Statistic:          cwtypes.Statistic(spec.Statistic),
		Dimensions:         []cwtypes.Dimension{{Name: aws.String("InstanceId"), Value: aws.String(spec.InstanceID)}},
		Period:             aws.Int32(spec.PeriodSeconds),
		EvaluationPeriods:  aws.Int32(spec.EvaluationPeriods),
		Threshold:          aws.Float64(spec.Threshold),
		ComparisonOperator: cwtypes.ComparisonOperatorGreaterThanThreshold,
	})
	return wrap("PutAlarm", err)
}

// ListAlarms matches alarms by name prefix, the naming used by PutAlarm's
// callers.
func (p *Provider) ListAlarms(ctx context.Context, instanceID string) ([]fleet.Alarm, error) {
	var out []fleet.Alarm
	pages := cloudwatch.NewDescribeAlarmsPaginator(p.CloudWatch, &cloudwatch.DescribeAlarmsInput{
		AlarmNamePrefix: aws.String(instanceID),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, wrap("ListAlarms", err)
		}
		for _, a := range page.MetricAlarms {
			alarm := fleet.Alarm{
				AlarmName:      aws.ToString(a.AlarmName),
				MetricName:     aws.ToString(a.MetricName),
				Threshold:      aws.ToFloat64(a.Threshold),
				State:          string(a.StateValue),
				ActionsEnabled: aws.ToBool(a.ActionsEnabled),
				Description:    aws.ToString(a.AlarmDescription),
			}
			for _, d := range a.Dimensions {
				if aws.ToString(d.Name) == "InstanceId" {
					alarm.InstanceID = aws.ToString(d.Value)
				}
			}
			out = append(out, alarm)
		}
	}
	return out, nil
}

func (p *Provider) DeleteAlarm(ctx context.Context, alarmName string) error {
	_, err := p.CloudWatch.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: []string{alarmName}})
	return wrap("DeleteAlarm", err)
}
