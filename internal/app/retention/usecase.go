package retention

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"fleetpilot/internal/app/ports"
)

const DefaultInterval = time.Minute

type Result struct {
	TokensDeleted  int64 `json:"tokens_deleted"`
	RecordsDeleted int64 `json:"records_deleted"`
}

// Reaper removes expired confirmation tokens and audit records past their
// retention. Redemption and queries never depend on it having run.
type Reaper struct {
	Tokens   ports.TokenRepository
	Audit    ports.AuditRepository
	Interval time.Duration
	Now      func() time.Time
}

func (r Reaper) RunOnce(ctx context.Context) (Result, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	var (
		res  Result
		errs []error
	)
	if r.Tokens != nil {
		n, err := r.Tokens.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		res.TokensDeleted = n
	}
	if r.Audit != nil {
		n, err := r.Audit.PurgeExpired(ctx, now)
		if err != nil {
			errs = append(errs, err)
		}
		res.RecordsDeleted = n
	}
	return res, errors.Join(errs...)
}

// Run calls RunOnce every Interval until ctx is done.
func (r Reaper) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := r.RunOnce(ctx)
			if err != nil {
				hlog.CtxWarnf(ctx, "retention sweep: %v", err)
				continue
			}
			if res.TokensDeleted > 0 || res.RecordsDeleted > 0 {
				hlog.CtxInfof(ctx, "retention sweep removed %d token(s) and %d audit record(s)", res.TokensDeleted, res.RecordsDeleted)
			}
		}
	}
}
