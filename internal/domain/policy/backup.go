package policy

import (
	"fmt"
	"slices"
	"time"

	"fleetpilot/internal/domain/fleet"
)

const DefaultBackupRecency = 7 * 24 * time.Hour

type BackupStatus struct {
	HasBackup       bool          `json:"has_backup"`
	HasRecentBackup bool          `json:"has_recent_backup"`
	Latest          *fleet.Image  `json:"latest_ami,omitempty"`
	LastBackupAge   time.Duration `json:"-"`
	RecentCount     int           `json:"recent_amis_count"`
	TotalCount      int           `json:"total_amis_count"`
	Message         string        `json:"message"`
	Recommendation  string        `json:"recommendation,omitempty"`
}

// CheckBackupPresence is advisory; it never blocks an action on its own.
func CheckBackupPresence(images []fleet.Image, now time.Time, recency time.Duration) BackupStatus {
	if recency <= 0 {
		recency = DefaultBackupRecency
	}
	if len(images) == 0 {
		return BackupStatus{
			Message:        "No AMI backups found for this instance",
			Recommendation: "Create an AMI backup before proceeding",
		}
	}

	sorted := slices.Clone(images)
	slices.SortStableFunc(sorted, func(a, b fleet.Image) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	latest := sorted[0]
	cutoff := now.Add(-recency)
	recent := 0
	for _, img := range sorted {
		if img.CreatedAt.After(cutoff) {
			recent++
		}
	}

	st := BackupStatus{
		HasBackup:     true,
		Latest:        &latest,
		LastBackupAge: now.Sub(latest.CreatedAt),
		RecentCount:   recent,
		TotalCount:    len(sorted),
	}
	if recent > 0 {
		st.HasRecentBackup = true
		st.Message = fmt.Sprintf("Latest AMI backup: %s from %s", latest.ImageID, latest.CreatedAt.UTC().Format(time.RFC3339))
		return st
	}
	st.Message = fmt.Sprintf("Latest AMI backup is older than %s: %s", formatWindow(recency), latest.CreatedAt.UTC().Format(time.RFC3339))
	st.Recommendation = "Consider creating a fresh AMI backup"
	return st
}

func formatWindow(d time.Duration) string {
	const day = 24 * time.Hour
	if d%day != 0 {
		return d.String()
	}
	if days := int(d / day); days != 1 {
		return fmt.Sprintf("%d days", days)
	}
	return "1 day"
}
