package audit

import (
	"time"

	"fleetpilot/internal/domain/fleet"
)

// Request selects at most one filter. Operator and Status are mutually
// exclusive; with neither set the most recent records are returned.
type Request struct {
	Operator string
	Status   string
	Limit    int
	From     time.Time
	To       time.Time
}

type Response struct {
	Records []fleet.AuditRecord `json:"logs"`
	Count   int                 `json:"count"`
}
