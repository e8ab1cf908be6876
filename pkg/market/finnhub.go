package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"stockchat/internal/model"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
)

type FinnhubProvider struct {
	client *finnhub.DefaultApiService
}

// NewFinnhubProvider builds a provider against the Finnhub API. baseURL
// overrides the API server and is only needed in tests.
func NewFinnhubProvider(apiKey, baseURL string) *FinnhubProvider {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	if baseURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: baseURL}}
	}
	client := finnhub.NewAPIClient(cfg).DefaultApi
	return &FinnhubProvider{client: client}
}

func (p *FinnhubProvider) Name() string {
	return "Finnhub"
}

func (p *FinnhubProvider) Snapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error) {
	quote, _, err := p.client.Quote(ctx).Symbol(ticker).Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub quote %s: %w", ticker, err)
	}

	// Funds and ETFs have no company profile; the quote still stands.
	profile, _, err := p.client.CompanyProfile2(ctx).Symbol(ticker).Execute()
	if err != nil {
		slog.Warn("finnhub company profile unavailable", "ticker", ticker, "error", err)
		profile = finnhub.CompanyProfile2{}
	}

	snapshot := &model.MarketSnapshot{}

	if profile.Ticker != nil {
		snapshot.Symbol = optString(*profile.Ticker)
	}
	if profile.Name != nil {
		snapshot.ShortName = optString(*profile.Name)
	}
	if profile.FinnhubIndustry != nil {
		snapshot.Industry = optString(*profile.FinnhubIndustry)
	}
	if profile.MarketCapitalization != nil {
		// Finnhub reports market capitalization in millions.
		snapshot.MarketCap = optInt(int64(math.Round(float64(*profile.MarketCapitalization) * 1e6)))
	}
	if quote.C != nil {
		snapshot.CurrentPrice = optFloat(fromFloat32(*quote.C))
	}
	if quote.Pc != nil {
		snapshot.PreviousClose = optFloat(fromFloat32(*quote.Pc))
	}

	// Unknown symbols come back as an empty profile and a zeroed quote.
	if snapshot.Symbol == nil && snapshot.CurrentPrice == nil {
		return nil, ErrNoData
	}
	if snapshot.Symbol == nil {
		snapshot.Symbol = optString(ticker)
	}

	return snapshot, nil
}

// fromFloat32 widens a float32 price and drops the binary noise the
// conversion adds, e.g. 123.45 stays 123.45 instead of 123.44999694824219.
func fromFloat32(f float32) float64 {
	return math.Round(float64(f)*1e4) / 1e4
}
