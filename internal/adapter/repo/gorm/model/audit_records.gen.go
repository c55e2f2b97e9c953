package model

import (
	"time"

	"gorm.io/datatypes"
)

const TableNameAuditRecord = "audit_records"

// AuditRecord mapped from table <audit_records>
type AuditRecord struct {
	LogID         string         `gorm:"column:log_id;primaryKey" json:"log_id"`
	OccurredAt    time.Time      `gorm:"column:occurred_at;not null;index:idx_audit_occurred_at" json:"occurred_at"`
	Action        string         `gorm:"column:action;not null" json:"action"`
	Parameters    datatypes.JSON `gorm:"column:parameters" json:"parameters"`
	Status        string         `gorm:"column:status;not null;index:idx_audit_status" json:"status"`
	Result        datatypes.JSON `gorm:"column:result" json:"result"`
	OperatorEmail string         `gorm:"column:operator_email;not null;index:idx_audit_operator" json:"operator_email"`
	Query         string         `gorm:"column:query" json:"query"`
	Error         string         `gorm:"column:error" json:"error"`
	Reason        string         `gorm:"column:reason" json:"reason"`
	CorrelationID string         `gorm:"column:correlation_id;index:idx_audit_correlation" json:"correlation_id"`
	RetainUntilMs int64          `gorm:"column:retain_until_ms;not null;index:idx_audit_retain_until" json:"retain_until_ms"`
}

// TableName AuditRecord's table name
func (*AuditRecord) TableName() string {
	return TableNameAuditRecord
}
