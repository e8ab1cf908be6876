package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"stockchat/internal/model"
	"time"

	"github.com/go-resty/resty/v2"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"
)

const (
	yahooSummaryURL     = "https://query2.finance.yahoo.com"
	defaultYahooTimeout = 10 * time.Second
)

// YahooProvider reads the quote through finance-go and the sector and
// industry from the quote summary asset profile, which finance-go does not
// cover.
type YahooProvider struct {
	quote  func(symbol string) (*finance.Equity, error)
	client *resty.Client
}

// NewYahooProvider builds the provider. timeout bounds both Yahoo calls;
// finance-go keeps a package level client, so it is replaced here too.
func NewYahooProvider(summaryURL string, timeout time.Duration) *YahooProvider {
	if summaryURL == "" {
		summaryURL = yahooSummaryURL
	}
	if timeout <= 0 {
		timeout = defaultYahooTimeout
	}
	finance.SetHTTPClient(&http.Client{Timeout: timeout})

	client := resty.New().
		SetBaseURL(summaryURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; stockchat/1.0)")

	return &YahooProvider{
		quote:  equity.Get,
		client: client,
	}
}

func (p *YahooProvider) Name() string {
	return "Yahoo"
}

func (p *YahooProvider) Snapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eq, err := p.fetchQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	if eq == nil {
		return nil, ErrNoData
	}

	snapshot := &model.MarketSnapshot{
		Symbol:        optString(eq.Symbol),
		ShortName:     optString(eq.ShortName),
		CurrentPrice:  optFloat(eq.RegularMarketPrice),
		PreviousClose: optFloat(eq.RegularMarketPreviousClose),
		MarketCap:     optInt(eq.MarketCap),
	}

	sector, industry, err := p.profile(ctx, ticker)
	if err != nil {
		slog.Warn("yahoo asset profile unavailable", "ticker", ticker, "error", err)
	} else {
		snapshot.Sector = optString(sector)
		snapshot.Industry = optString(industry)
	}

	return snapshot, nil
}

// fetchQuote runs the finance-go lookup, which takes no context, and stops
// waiting for it once ctx is done.
func (p *YahooProvider) fetchQuote(ctx context.Context, ticker string) (*finance.Equity, error) {
	type result struct {
		eq  *finance.Equity
		err error
	}

	done := make(chan result, 1)
	go func() {
		eq, err := p.quote(ticker)
		done <- result{eq, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.eq, r.err
	}
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (p *YahooProvider) profile(ctx context.Context, ticker string) (string, string, error) {
	var out quoteSummaryResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("symbol", ticker).
		SetQueryParam("modules", "assetProfile").
		SetResult(&out).
		Get("/v10/finance/quoteSummary/{symbol}")
	if err != nil {
		return "", "", err
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("quote summary status %d", resp.StatusCode())
	}
	if out.QuoteSummary.Error != nil {
		return "", "", fmt.Errorf("quote summary: %s", out.QuoteSummary.Error.Description)
	}
	if len(out.QuoteSummary.Result) == 0 {
		return "", "", ErrNoData
	}

	profile := out.QuoteSummary.Result[0].AssetProfile
	return profile.Sector, profile.Industry, nil
}
