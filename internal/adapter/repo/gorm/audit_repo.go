package gormrepo

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetpilot/internal/adapter/repo/gorm/model"
	"fleetpilot/internal/domain/fleet"
)

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepo {
	return AuditRepo{db: db}
}

func (r AuditRepo) Append(ctx context.Context, record fleet.AuditRecord) error {
	m := model.AuditRecord{
		LogID:         record.LogID,
		OccurredAt:    record.Timestamp.UTC(),
		Action:        record.Action,
		Parameters:    jsonColumn(record.Parameters),
		Status:        string(record.Status),
		Result:        jsonColumn(record.Result),
		OperatorEmail: record.OperatorEmail,
		Query:         record.Query,
		Error:         record.Error,
		Reason:        record.Reason,
		CorrelationID: record.CorrelationID,
		RetainUntilMs: record.RetainUntil.UnixMilli(),
	}
	return getDBFromCtx(ctx, r.db).WithContext(ctx).Create(&m).Error
}

func (r AuditRepo) ListRecent(ctx context.Context, limit int) ([]fleet.AuditRecord, error) {
	return r.list(ctx, limit, nil)
}

func (r AuditRepo) ListByOperator(ctx context.Context, email string, limit int) ([]fleet.AuditRecord, error) {
	return r.list(ctx, limit, &model.AuditRecord{OperatorEmail: email})
}

func (r AuditRepo) ListByStatus(ctx context.Context, status fleet.Status, limit int) ([]fleet.AuditRecord, error) {
	return r.list(ctx, limit, &model.AuditRecord{Status: string(status)})
}

func (r AuditRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := getDBFromCtx(ctx, r.db).WithContext(ctx).
		Where("retain_until_ms > 0 AND retain_until_ms <= ?", now.UnixMilli()).
		Delete(&model.AuditRecord{})
	return res.RowsAffected, res.Error
}

func (r AuditRepo) list(ctx context.Context, limit int, where *model.AuditRecord) ([]fleet.AuditRecord, error) {
	rows := []model.AuditRecord{}
	query := getDBFromCtx(ctx, r.db).WithContext(ctx).
		Clauses(clause.OrderBy{
			Columns: []clause.OrderByColumn{
				{Column: clause.Column{Name: "occurred_at"}, Desc: true},
				{Column: clause.Column{Name: "log_id"}, Desc: true},
			},
		})
	if where != nil {
		query = query.Where(where)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]fleet.AuditRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, fleet.AuditRecord{
			LogID:         row.LogID,
			Timestamp:     row.OccurredAt.UTC(),
			Action:        row.Action,
			Parameters:    string(row.Parameters),
			Status:        fleet.Status(row.Status),
			Result:        string(row.Result),
			OperatorEmail: row.OperatorEmail,
			Query:         row.Query,
			Error:         row.Error,
			Reason:        row.Reason,
			CorrelationID: row.CorrelationID,
			RetainUntil:   time.UnixMilli(row.RetainUntilMs).UTC(),
		})
	}
	return out, nil
}

func jsonColumn(raw string) datatypes.JSON {
	if raw == "" {
		return nil
	}
	return datatypes.JSON(raw)
}
