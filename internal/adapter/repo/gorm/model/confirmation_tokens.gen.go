package model

import (
	"time"

	"gorm.io/datatypes"
)

const TableNameConfirmationToken = "confirmation_tokens"

// ConfirmationToken mapped from table <confirmation_tokens>
type ConfirmationToken struct {
	Token         string         `gorm:"column:token;primaryKey" json:"token"`
	Action        string         `gorm:"column:action;not null" json:"action"`
	Parameters    datatypes.JSON `gorm:"column:parameters" json:"parameters"`
	OperatorEmail string         `gorm:"column:operator_email;not null" json:"operator_email"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	ExpiresAtMs   int64          `gorm:"column:expires_at_ms;not null;index:idx_tokens_expires_at" json:"expires_at_ms"`
	Consumed      bool           `gorm:"column:consumed;not null;default:false" json:"consumed"`
	ConsumedAt    *time.Time     `gorm:"column:consumed_at" json:"consumed_at"`
}

// TableName ConfirmationToken's table name
func (*ConfirmationToken) TableName() string {
	return TableNameConfirmationToken
}
