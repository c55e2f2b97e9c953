package gormrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetpilot/internal/adapter/repo/gorm/model"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

type TokenRepo struct {
	db *gorm.DB
}

func NewTokenRepo(db *gorm.DB) TokenRepo {
	return TokenRepo{db: db}
}

func (r TokenRepo) Insert(ctx context.Context, token fleet.ConfirmationToken) error {
	m := model.ConfirmationToken{
		Token:         token.Token,
		Action:        string(token.Action),
		Parameters:    jsonColumn(token.Parameters),
		OperatorEmail: token.OperatorEmail,
		CreatedAt:     token.CreatedAt.UTC(),
		ExpiresAtMs:   token.ExpiresAt.UnixMilli(),
		Consumed:      token.Consumed,
	}
	res := getDBFromCtx(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}
	return nil
}

// Consume is a single conditional UPDATE; the row count decides the winner.
func (r TokenRepo) Consume(ctx context.Context, token string, now time.Time) (fleet.ConfirmationToken, error) {
	db := getDBFromCtx(ctx, r.db).WithContext(ctx)
	consumedAt := now.UTC()
	res := db.Model(&model.ConfirmationToken{}).
		Where("token = ? AND consumed = ? AND expires_at_ms > ?", token, false, now.UnixMilli()).
		Updates(map[string]any{"consumed": true, "consumed_at": &consumedAt})
	if res.Error != nil {
		return fleet.ConfirmationToken{}, res.Error
	}

	var m model.ConfirmationToken
	if err := db.Where("token = ?", token).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fleet.ConfirmationToken{}, ports.ErrNotFound
		}
		return fleet.ConfirmationToken{}, err
	}
	tok := toDomainToken(m)
	if res.RowsAffected != 1 {
		return tok, ports.ErrTokenSpent
	}
	return tok, nil
}

func (r TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := getDBFromCtx(ctx, r.db).WithContext(ctx).
		Where("expires_at_ms <= ?", before.UnixMilli()).
		Delete(&model.ConfirmationToken{})
	return res.RowsAffected, res.Error
}

func toDomainToken(m model.ConfirmationToken) fleet.ConfirmationToken {
	return fleet.ConfirmationToken{
		Token:         m.Token,
		Action:        fleet.ActionName(m.Action),
		Parameters:    string(m.Parameters),
		OperatorEmail: m.OperatorEmail,
		CreatedAt:     m.CreatedAt.UTC(),
		ExpiresAt:     time.UnixMilli(m.ExpiresAtMs).UTC(),
		Consumed:      m.Consumed,
	}
}
