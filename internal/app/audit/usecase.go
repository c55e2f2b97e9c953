package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrInvalidRequest = errors.New("invalid audit query")

type UseCase struct {
	Records ports.AuditRepository
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	operator := strings.TrimSpace(req.Operator)
	rawStatus := strings.TrimSpace(req.Status)
	if u.Records == nil || (operator != "" && rawStatus != "") || req.Limit < 0 {
		return Response{}, ErrInvalidRequest
	}
	limit := clampLimit(req.Limit)

	var (
		records []fleet.AuditRecord
		err     error
	)
	switch {
	case operator != "":
		records, err = u.Records.ListByOperator(ctx, operator, limit)
	case rawStatus != "":
		status, ok := fleet.ParseStatus(rawStatus)
		if !ok {
			return Response{}, ErrInvalidRequest
		}
		records, err = u.Records.ListByStatus(ctx, status, limit)
	default:
		records, err = u.Records.ListRecent(ctx, limit)
	}
	if err != nil {
		return Response{}, err
	}
	records = filterByTimeWindow(records, req.From, req.To)
	return Response{Records: records, Count: len(records)}, nil
}

func (u UseCase) Recent(ctx context.Context, limit int) ([]fleet.AuditRecord, error) {
	resp, err := u.Execute(ctx, Request{Limit: limit})
	return resp.Records, err
}

func (u UseCase) ByOperator(ctx context.Context, email string, limit int) ([]fleet.AuditRecord, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrInvalidRequest
	}
	resp, err := u.Execute(ctx, Request{Operator: email, Limit: limit})
	return resp.Records, err
}

func (u UseCase) ByStatus(ctx context.Context, status fleet.Status, limit int) ([]fleet.AuditRecord, error) {
	if status == "" {
		return nil, ErrInvalidRequest
	}
	resp, err := u.Execute(ctx, Request{Status: string(status), Limit: limit})
	return resp.Records, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func filterByTimeWindow(records []fleet.AuditRecord, from, to time.Time) []fleet.AuditRecord {
	if from.IsZero() && to.IsZero() {
		return records
	}
	out := make([]fleet.AuditRecord, 0, len(records))
	for _, rec := range records {
		if !from.IsZero() && rec.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && rec.Timestamp.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
