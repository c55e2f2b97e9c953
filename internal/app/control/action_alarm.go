package control

import (
	"context"
	"fmt"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

func alarmActions(topicARN string) []string {
	if topicARN == "" {
		return nil
	}
	return []string{topicARN}
}

func (u UseCase) createCPUAlarm(ctx context.Context, p fleet.CPUAlarmParams) (outcome, error) {
	name := p.AlarmName
	if name == "" {
		name = p.InstanceID + "-high-cpu"
	}
	threshold := p.ThresholdOrDefault()
	err := u.Provider.PutAlarm(ctx, ports.AlarmSpec{
		AlarmName:         name,
		InstanceID:        p.InstanceID,
		MetricName:        "CPUUtilization",
		Statistic:         "Average",
		Threshold:         threshold,
		PeriodSeconds:     300,
		EvaluationPeriods: 2,
		Description:       fmt.Sprintf("Alert when CPU exceeds %g%% for %s", threshold, p.InstanceID),
		ActionARNs:        alarmActions(p.SNSTopicARN),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: "CPU alarm created: " + name,
		Data:    map[string]any{"alarm_name": name, "threshold": threshold, "instance_id": p.InstanceID},
	}, nil
}

func (u UseCase) createStatusAlarm(ctx context.Context, p fleet.StatusAlarmParams) (outcome, error) {
	name := p.AlarmName
	if name == "" {
		name = p.InstanceID + "-status-check-failed"
	}
	err := u.Provider.PutAlarm(ctx, ports.AlarmSpec{
		AlarmName:         name,
		InstanceID:        p.InstanceID,
		MetricName:        "StatusCheckFailed",
		Statistic:         "Maximum",
		Threshold:         0,
		PeriodSeconds:     60,
		EvaluationPeriods: 2,
		Description:       "Alert when status check fails for " + p.InstanceID,
		ActionARNs:        alarmActions(p.SNSTopicARN),
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: "Status check alarm created: " + name,
		Data:    map[string]any{"alarm_name": name, "instance_id": p.InstanceID},
	}, nil
}

func (u UseCase) listAlarms(ctx context.Context, p fleet.InstanceParams) (outcome, error) {
	alarms, err := u.Provider.ListAlarms(ctx, p.InstanceID)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("Found %d alarm(s) for %s", len(alarms), p.InstanceID),
		Data:    map[string]any{"alarms": alarms, "count": len(alarms)},
	}, nil
}

func (u UseCase) deleteAlarm(ctx context.Context, p fleet.DeleteAlarmParams) (outcome, error) {
	if err := u.Provider.DeleteAlarm(ctx, p.AlarmName); err != nil {
		return outcome{}, err
	}
	return outcome{
		Message: fmt.Sprintf("Alarm %s deleted", p.AlarmName),
		Data:    map[string]any{"alarm_name": p.AlarmName},
	}, nil
}
