package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"fleetpilot/internal/app/audit"
	"fleetpilot/internal/app/control"
	"fleetpilot/internal/domain/fleet"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Handler struct {
	ControlUC control.UseCase
	AuditUC   audit.UseCase
	Registry  *fleet.Registry
	Limiter   *OperatorLimiter
	KPI       kpiSnapshotProvider

	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware(h.AllowedOrigins))

	api := s.Group("/api")
	api.POST("/requests", h.request)
	api.GET("/audit", h.audit)
	api.GET("/actions", h.actions)

	s.GET("/ops/kpi", h.kpi)
	s.GET("/healthz", h.healthz)
}

type operatorRequest struct {
	OperatorEmail     string `json:"operator_email"`
	Query             string `json:"query"`
	ConfirmationToken string `json:"confirmation_token,omitempty"`
}

func (h Handler) request(c context.Context, ctx *app.RequestContext) {
	var body operatorRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	operator := strings.ToLower(strings.TrimSpace(body.OperatorEmail))
	if h.Limiter != nil && operator != "" && !h.Limiter.Allow(operator) {
		hlog.CtxWarnf(c, "rate limited operator=%s", operator)
		writeErrorBody(ctx, consts.StatusTooManyRequests, "rate_limited", "too many requests")
		return
	}

	resp, err := h.ControlUC.Handle(c, control.Request{
		OperatorEmail:     body.OperatorEmail,
		Query:             body.Query,
		ConfirmationToken: body.ConfirmationToken,
	})
	if err != nil {
		if errors.Is(err, control.ErrInvalidRequest) {
			ctx.JSON(consts.StatusBadRequest, resp)
			return
		}
		hlog.CtxInfof(c, "request finished status=%s action=%s err=%v", resp.Status, resp.Action, err)
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) audit(c context.Context, ctx *app.RequestContext) {
	limit := 0
	if raw := strings.TrimSpace(string(ctx.Query("limit"))); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "limit must be an integer")
			return
		}
		limit = n
	}
	from, errFrom := parseTimeParam(string(ctx.Query("from")))
	to, errTo := parseTimeParam(string(ctx.Query("to")))
	if errFrom != nil || errTo != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "from/to must be RFC3339 timestamps")
		return
	}

	resp, err := h.AuditUC.Execute(c, audit.Request{
		Operator: string(ctx.Query("operator")),
		Status:   string(ctx.Query("status")),
		Limit:    limit,
		From:     from,
		To:       to,
	})
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

type paramView struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Enum     []string `json:"enum,omitempty"`
}

type actionView struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Mutating    bool        `json:"mutating"`
	Destructive bool        `json:"destructive"`
	Summary     string      `json:"summary"`
	Params      []paramView `json:"parameters"`
}

func (h Handler) actions(_ context.Context, ctx *app.RequestContext) {
	reg := h.Registry
	if reg == nil {
		reg = fleet.DefaultRegistry()
	}
	actions := reg.Actions()
	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		v := actionView{
			Name:        string(a.Name),
			Kind:        string(a.Kind),
			Mutating:    a.Mutating,
			Destructive: a.Destructive,
			Summary:     a.Summary,
			Params:      make([]paramView, 0, len(a.Params)),
		}
		for _, p := range a.Params {
			v.Params = append(v.Params, paramView{Name: p.Name, Type: string(p.Type), Required: p.Required, Enum: p.Enum})
		}
		out = append(out, v)
	}
	ctx.JSON(consts.StatusOK, map[string]any{"actions": out})
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func (h Handler) healthz(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeError(c context.Context, ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	default:
		hlog.CtxErrorf(c, "audit query failed: %v", err)
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
