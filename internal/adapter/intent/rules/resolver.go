// Package rules resolves operator queries with fixed patterns. It needs no
// model access and is deterministic, which makes it the local-mode and test
// resolver.
package rules

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

var (
	instanceIDRe   = regexp.MustCompile(`\bi-[0-9a-z]+\b`)
	volumeIDRe     = regexp.MustCompile(`\bvol-[0-9a-z]+\b`)
	imageIDRe      = regexp.MustCompile(`\bami-[0-9a-z]+\b`)
	instanceTypeRe = regexp.MustCompile(`\b[a-z][a-z0-9-]*\.[0-9]*(?:nano|micro|small|medium|large|xlarge|metal)\b`)
	deviceRe       = regexp.MustCompile(`/dev/[a-z0-9]+`)
	sizeRe         = regexp.MustCompile(`\b(\d+)\s*(?:gb|gib|g)\b`)
	percentRe      = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:%|percent)`)
	limitRe        = regexp.MustCompile(`\b(?:last|limit|top)\s+(\d+)\b`)
	volumeTypeRe   = regexp.MustCompile(`\b(gp2|gp3|io1|io2|st1|sc1|standard)\b`)
	zoneRe         = regexp.MustCompile(`\b[a-z]{2}-[a-z]+-\d[a-z]\b`)
	alarmNameRe    = regexp.MustCompile(`\balarm\s+(?:named\s+)?([A-Za-z0-9_.-]+-[A-Za-z0-9_.-]+)`)
	emailRe        = regexp.MustCompile(`\b[^\s@]+@[^\s@]+\.[^\s@]+\b`)
	stateRe        = regexp.MustCompile(`\b(running|stopped|pending|stopping|terminated)\b`)
	statusRe       = regexp.MustCompile(`\b(success|failed|pending)\b`)
)

type rule struct {
	action fleet.ActionName
	match  func(q string) bool
	params func(q string, history []fleet.AuditRecord) map[string]any
}

func has(words ...string) func(string) bool {
	return func(q string) bool {
		for _, w := range words {
			if !strings.Contains(q, w) {
				return false
			}
		}
		return true
	}
}

func anyOf(preds ...func(string) bool) func(string) bool {
	return func(q string) bool {
		for _, p := range preds {
			if p(q) {
				return true
			}
		}
		return false
	}
}

// Resolver matches rules in order; the first match wins.
type Resolver struct {
	rules []rule
}

func New() *Resolver {
	return &Resolver{rules: catalogue()}
}

func (r *Resolver) Resolve(_ context.Context, query string, history []fleet.AuditRecord) (ports.Intent, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ports.Intent{}, ports.ErrNoIntent
	}
	for _, ru := range r.rules {
		if ru.match(q) {
			return ports.Intent{Action: string(ru.action), Parameters: ru.params(q, history)}, nil
		}
	}
	return ports.Intent{}, ports.ErrNoIntent
}

// catalogue is ordered from the most specific wording to the most generic.
func catalogue() []rule {
	return []rule{
		{fleet.ActionListLogs, anyOf(has("logs"), has("log "), has("history"), has("audit")), logParams},
		{fleet.ActionDeleteAlarm, has("delete", "alarm"), deleteAlarmParams},
		{fleet.ActionCreateCPUAlarm, has("cpu", "alarm"), cpuAlarmParams},
		{fleet.ActionCreateStatusAlarm, has("status", "alarm"), alarmParams},
		{fleet.ActionListAlarms, has("alarm"), instanceParams},
		{fleet.ActionTerminateInstance, anyOf(has("terminate"), has("destroy")), terminateParams},
		{fleet.ActionLaunchInstance, anyOf(has("launch"), has("create", "instance")), launchParams},
		{fleet.ActionChangeInstanceType, anyOf(has("resize"), has("change", "type"), has("instance type")), resizeParams},
		{fleet.ActionCheckBackup, anyOf(has("check", "backup"), has("has", "backup")), instanceParams},
		{fleet.ActionListBackups, anyOf(has("list", "ami"), has("list", "backup"), has("show", "backup")), instanceParams},
		{fleet.ActionCreateBackup, anyOf(has("backup"), has("ami", "create"), has("snapshot")), backupParams},
		{fleet.ActionAttachVolume, has("attach"), attachParams},
		{fleet.ActionDetachVolume, has("detach"), volumeParams},
		{fleet.ActionCreateVolume, has("create", "volume"), createVolumeParams},
		{fleet.ActionDeleteVolume, anyOf(has("delete", "vol"), has("remove", "vol")), volumeParams},
		{fleet.ActionListVolumes, anyOf(has("volume"), has("disk")), listVolumesParams},
		{fleet.ActionStartInstance, anyOf(has("start"), has("boot")), instanceParams},
		{fleet.ActionStopInstance, anyOf(has("stop"), has("shut down"), has("shutdown")), instanceParams},
		{fleet.ActionListInstances, anyOf(has("instance"), has("server"), has("fleet")), listInstancesParams},
	}
}

func instanceID(q string, history []fleet.AuditRecord) string {
	if id := instanceIDRe.FindString(q); id != "" {
		return id
	}
	return lastInstanceID(history)
}

// lastInstanceID lets "stop it" refer to the instance of the operator's most
// recent request.
func lastInstanceID(history []fleet.AuditRecord) string {
	for _, rec := range history {
		var params map[string]any
		if err := json.Unmarshal([]byte(rec.Parameters), &params); err != nil {
			continue
		}
		if id, ok := params["instance_id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

func put(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func instanceParams(q string, history []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "instance_id", instanceID(q, history))
	return p
}

func terminateParams(q string, history []fleet.AuditRecord) map[string]any {
	p := instanceParams(q, history)
	if strings.Contains(q, "skip backup") || strings.Contains(q, "without backup") {
		p["skip_backup_check"] = true
	}
	return p
}

func listInstancesParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "state", stateRe.FindString(q))
	return p
}

func launchParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "ami_id", imageIDRe.FindString(q))
	put(p, "instance_type", instanceTypeRe.FindString(q))
	if strings.Contains(q, "dry run") || strings.Contains(q, "dry-run") {
		p["dry_run"] = true
	}
	return p
}

func resizeParams(q string, history []fleet.AuditRecord) map[string]any {
	p := instanceParams(q, history)
	put(p, "new_instance_type", instanceTypeRe.FindString(q))
	if strings.Contains(q, "no backup") || strings.Contains(q, "without backup") {
		p["create_backup"] = false
	}
	return p
}

func backupParams(q string, history []fleet.AuditRecord) map[string]any {
	p := instanceParams(q, history)
	if strings.Contains(q, "reboot") && !strings.Contains(q, "no reboot") && !strings.Contains(q, "without reboot") {
		p["no_reboot"] = false
	}
	return p
}

func listVolumesParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "instance_id", instanceIDRe.FindString(q))
	return p
}

func createVolumeParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	if m := sizeRe.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p["size"] = n
		}
	}
	put(p, "volume_type", volumeTypeRe.FindString(q))
	put(p, "availability_zone", zoneRe.FindString(q))
	return p
}

func attachParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "volume_id", volumeIDRe.FindString(q))
	put(p, "instance_id", instanceIDRe.FindString(q))
	put(p, "device", deviceRe.FindString(q))
	return p
}

func volumeParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	put(p, "volume_id", volumeIDRe.FindString(q))
	return p
}

func alarmParams(q string, history []fleet.AuditRecord) map[string]any {
	return instanceParams(q, history)
}

func cpuAlarmParams(q string, history []fleet.AuditRecord) map[string]any {
	p := instanceParams(q, history)
	if m := percentRe.FindStringSubmatch(q); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			p["threshold"] = f
		}
	}
	return p
}

func deleteAlarmParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	if m := alarmNameRe.FindStringSubmatch(q); m != nil {
		p["alarm_name"] = m[1]
	}
	return p
}

func logParams(q string, _ []fleet.AuditRecord) map[string]any {
	p := map[string]any{}
	if m := limitRe.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p["limit"] = n
		}
	}
	put(p, "operator_email", emailRe.FindString(q))
	put(p, "status", statusRe.FindString(q))
	return p
}
