package control

import (
	"context"
	"fmt"

	"fleetpilot/internal/app/audit"
	"fleetpilot/internal/domain/fleet"
)

func (u UseCase) listLogs(ctx context.Context, p fleet.ListLogsParams) (outcome, error) {
	req := audit.Request{Operator: p.OperatorEmail, Status: string(p.Status), Limit: p.Limit}
	// The ledger filters on one key; with both set, filter status here.
	both := req.Operator != "" && req.Status != ""
	if both {
		req.Status = ""
		req.Limit = audit.MaxLimit
	}
	resp, err := audit.UseCase{Records: u.Audit}.Execute(ctx, req)
	if err != nil {
		return outcome{}, err
	}
	if both {
		kept := resp.Records[:0]
		for _, rec := range resp.Records {
			if rec.Status == p.Status && len(kept) < p.Limit {
				kept = append(kept, rec)
			}
		}
		resp.Records, resp.Count = kept, len(kept)
	}
	return outcome{
		Message: fmt.Sprintf("Found %d action log(s)", resp.Count),
		Data:    resp,
	}, nil
}
