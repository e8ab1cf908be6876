package market

import (
	"context"
	"errors"
	"stockchat/internal/model"
)

var ErrNoData = errors.New("no market data")

type Provider interface {
	Snapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error)
	Name() string
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func optInt(i int64) *int64 {
	if i == 0 {
		return nil
	}
	return &i
}
