package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"stockchat/internal/metrics"
	"stockchat/internal/model"
	"stockchat/pkg/market"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeExtractor struct {
	tickers map[string]string
	err     error
}

func (f *fakeExtractor) ExtractTicker(ctx context.Context, query string) (string, error) {
	return f.tickers[query], f.err
}

type fakeFunds struct {
	records map[string]model.FundRecord
	err     error
	pingErr error
}

func (f *fakeFunds) FindBySymbol(ctx context.Context, symbol string) (model.FundRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[symbol]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

func (f *fakeFunds) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeMarket struct {
	snapshot *model.MarketSnapshot
	err      error
	calls    int
}

func (f *fakeMarket) Snapshot(ctx context.Context, ticker string) (*model.MarketSnapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type fakeHistory struct {
	users     map[string][]model.Turn
	window    int
	appendErr error
	readErr   error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{users: map[string][]model.Turn{}, window: 5}
}

func (f *fakeHistory) History(ctx context.Context, user string) ([]model.Turn, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if _, ok := f.users[user]; !ok {
		f.users[user] = []model.Turn{}
	}
	return model.LastTurns(f.users[user], f.window), nil
}

func (f *fakeHistory) Append(ctx context.Context, user string, turn model.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.users[user] = model.LastTurns(append(f.users[user], turn), f.window)
	return nil
}

func (f *fakeHistory) Ping(ctx context.Context) error {
	return f.readErr
}

func msftPrice() *model.MarketSnapshot {
	price := 410.25
	symbol := "MSFT"
	return &model.MarketSnapshot{Symbol: &symbol, CurrentPrice: &price}
}

type testDeps struct {
	extractor *fakeExtractor
	funds     *fakeFunds
	market    *fakeMarket
	history   *fakeHistory
	metrics   *metrics.Metrics
}

func newTestDeps() *testDeps {
	return &testDeps{
		extractor: &fakeExtractor{tickers: map[string]string{
			"Tell me about Microsoft.":       "MSFT",
			"Search for information on 3M.": "MMM",
		}},
		funds: &fakeFunds{records: map[string]model.FundRecord{
			"MSFT": {"Symbol": "MSFT", "Security": "Microsoft", "GICS Sector": "Information Technology"},
		}},
		market:  &fakeMarket{snapshot: msftPrice()},
		history: newFakeHistory(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
}

func newTestRouter(d *testDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewStockHandler(StockHandlerConfig{
		Extractor: d.extractor,
		Funds:     d.funds,
		Market:    d.market,
		History:   d.history,
		Metrics:   d.metrics,
	})
	r.GET("/search_stock/", h.SearchStock)
	r.GET("/user_history/", h.GetUserHistory)
	r.GET("/health", h.GetHealth)
	return r
}

func search(r *gin.Engine, user, query string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	target := fmt.Sprintf("/search_stock/?user=%s&query=%s", url.QueryEscape(user), url.QueryEscape(query))
	r.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func history(r *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/user_history/?user="+url.QueryEscape(user), nil))
	return w
}

func TestSearchStock_Found(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := search(r, "alice", "Tell me about Microsoft.")

	assert.Equal(t, http.StatusOK, w.Code)

	var res map[string]any
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "MSFT", res["ticker"])
	assert.Equal(t, map[string]any{
		"Symbol":      "MSFT",
		"Security":    "Microsoft",
		"GICS Sector": "Information Technology",
	}, res["mongo_data"])
	yf := res["yfinance_data"].(map[string]any)
	assert.Equal(t, 410.25, yf["currentPrice"])
	_, hasMessage := res["message"]
	assert.Equal(t, false, hasMessage)

	turns := d.history.users["alice"]
	assert.Equal(t, 1, len(turns))
	assert.Equal(t, "Tell me about Microsoft.", turns[0].Query)
	assert.Equal(t, "MSFT", turns[0].Answer.Ticker)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.SearchOutcomesTotal.WithLabelValues(metrics.OutcomeFound)))
}

func TestSearchStock_NoTicker(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := search(r, "alice", "How are markets doing today?")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"message":"No stock ticker found in the query."}`, w.Body.String())
	assert.Equal(t, 1, len(d.history.users["alice"]))
	assert.Equal(t, model.NoTickerAnswer(), d.history.users["alice"][0].Answer)
}

func TestSearchStock_FundMissing(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := search(r, "alice", "Search for information on 3M.")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"ticker":"MMM","message":"No data found for MMM in MongoDB."}`, w.Body.String())
	assert.Equal(t, 1, len(d.history.users["alice"]))
	assert.Equal(t, 0, d.market.calls)
}

func TestSearchStock_ExtractorErrorDegradesToNoTicker(t *testing.T) {
	d := newTestDeps()
	d.extractor.err = errors.New("llm down")
	r := newTestRouter(d)

	w := search(r, "alice", "Tell me about Microsoft.")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"message":"No stock ticker found in the query."}`, w.Body.String())
	assert.Equal(t, 1, len(d.history.users["alice"]))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.UpstreamFailuresTotal.WithLabelValues(metrics.ComponentLLM)))
}

func TestSearchStock_FundStoreErrorDegradesToMissing(t *testing.T) {
	d := newTestDeps()
	d.funds.err = errors.New("connection refused")
	r := newTestRouter(d)

	w := search(r, "alice", "Tell me about Microsoft.")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"ticker":"MSFT","message":"No data found for MSFT in MongoDB."}`, w.Body.String())
}

func TestSearchStock_MarketFailureKeepsFundData(t *testing.T) {
	for _, err := range []error{market.ErrNoData, errors.New("yahoo down")} {
		d := newTestDeps()
		d.market = &fakeMarket{err: err}
		r := newTestRouter(d)

		w := search(r, "alice", "Tell me about Microsoft.")

		assert.Equal(t, http.StatusOK, w.Code)
		var res map[string]any
		json.Unmarshal(w.Body.Bytes(), &res)
		assert.Equal(t, "MSFT", res["ticker"])
		assert.NotEqual(t, nil, res["mongo_data"])
		yf, present := res["yfinance_data"]
		assert.Equal(t, true, present)
		assert.Equal(t, nil, yf)
	}
}

func TestSearchStock_HistoryFailureStillResponds(t *testing.T) {
	d := newTestDeps()
	d.history.appendErr = errors.New("write failed")
	r := newTestRouter(d)

	w := search(r, "alice", "Tell me about Microsoft.")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearchStock_MissingParams(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	assert.Equal(t, http.StatusBadRequest, search(r, "", "Tell me about Microsoft.").Code)
	assert.Equal(t, http.StatusBadRequest, search(r, "alice", "  ").Code)
	assert.Equal(t, 0, len(d.history.users))
}

func TestGetUserHistory_UnknownUser(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := history(r, "newbie")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"user":"newbie","history":[]}`, w.Body.String())
	_, created := d.history.users["newbie"]
	assert.Equal(t, true, created)
}

func TestGetUserHistory_ReturnsLastWindowInOrder(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	for i := 0; i < 7; i++ {
		search(r, "bob", fmt.Sprintf("question %d", i))
	}

	w := history(r, "bob")
	assert.Equal(t, http.StatusOK, w.Code)

	var res struct {
		User    string       `json:"user"`
		History []model.Turn `json:"history"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, nil, err)
	assert.Equal(t, "bob", res.User)
	assert.Equal(t, 5, len(res.History))
	for i, turn := range res.History {
		assert.Equal(t, fmt.Sprintf("question %d", i+2), turn.Query)
		assert.Equal(t, model.NoTickerMessage, turn.Answer.Message)
	}
}

func TestGetUserHistory_TurnGroupShape(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	search(r, "carol", "Search for information on 3M.")

	w := history(r, "carol")
	assert.Equal(t, `{"user":"carol","history":[[{"0":"Search for information on 3M."},`+
		`{"1":{"ticker":"MMM","message":"No data found for MMM in MongoDB."}}]]}`, w.Body.String())
}

func TestGetUserHistory_LegacyUserNameParam(t *testing.T) {
	d := newTestDeps()
	r := newTestRouter(d)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/user_history/?user_name=dave", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"user":"dave","history":[]}`, w.Body.String())
}

func TestGetUserHistory_StoreErrorReturnsEmpty(t *testing.T) {
	d := newTestDeps()
	d.history.readErr = errors.New("DB down")
	r := newTestRouter(d)

	w := history(r, "erin")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"user":"erin","history":[]}`, w.Body.String())
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		historyErr error
		fundErr    error
		wantCode   int
		want       map[string]string
	}{
		{
			name:     "all connected",
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "healthy", "history": "connected", "fund_store": "connected"},
		},
		{
			name:       "history down",
			historyErr: errors.New("DB down"),
			wantCode:   http.StatusServiceUnavailable,
			want:       map[string]string{"status": "unhealthy", "history": "disconnected", "fund_store": "connected"},
		},
		{
			name:     "fund store down",
			fundErr:  errors.New("DB down"),
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"status": "unhealthy", "history": "connected", "fund_store": "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.history.readErr = tt.historyErr
			d.funds.pingErr = tt.fundErr
			r := newTestRouter(d)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

			var res map[string]string
			json.Unmarshal(w.Body.Bytes(), &res)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.want, res)
		})
	}
}
