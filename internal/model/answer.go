package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

const NoTickerMessage = "No stock ticker found in the query."

var ErrNotFound = errors.New("not found")

// FundRecord is a fund constituent row as stored in the fund collection.
// Keys are the CSV column names; "Symbol" holds the ticker.
type FundRecord map[string]any

type MarketSnapshot struct {
	Symbol        *string  `json:"symbol" bson:"symbol"`
	ShortName     *string  `json:"shortName" bson:"shortName"`
	CurrentPrice  *float64 `json:"currentPrice" bson:"currentPrice"`
	PreviousClose *float64 `json:"previousClose" bson:"previousClose"`
	MarketCap     *int64   `json:"marketCap" bson:"marketCap"`
	Sector        *string  `json:"sector" bson:"sector"`
	Industry      *string  `json:"industry" bson:"industry"`
}

// Answer is the payload returned by a stock search. Which fields are set
// decides its JSON shape:
//
//	no ticker:    {"message"}
//	fund missing: {"ticker", "message"}
//	found:        {"ticker", "mongo_data", "yfinance_data"}
type Answer struct {
	Ticker     string          `json:"ticker,omitempty" bson:"ticker,omitempty"`
	FundData   FundRecord      `json:"mongo_data,omitempty" bson:"mongo_data,omitempty"`
	MarketData *MarketSnapshot `json:"yfinance_data,omitempty" bson:"yfinance_data,omitempty"`
	Message    string          `json:"message,omitempty" bson:"message,omitempty"`
}

func NoTickerAnswer() Answer {
	return Answer{Message: NoTickerMessage}
}

func FundMissingAnswer(ticker string) Answer {
	return Answer{
		Ticker:  ticker,
		Message: fmt.Sprintf("No data found for %s in MongoDB.", ticker),
	}
}

func FoundAnswer(ticker string, fund FundRecord, snapshot *MarketSnapshot) Answer {
	return Answer{Ticker: ticker, FundData: fund, MarketData: snapshot}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.Ticker == "":
		return json.Marshal(struct {
			Message string `json:"message"`
		}{a.Message})
	case a.FundData == nil:
		return json.Marshal(struct {
			Ticker  string `json:"ticker"`
			Message string `json:"message"`
		}{a.Ticker, a.Message})
	default:
		return json.Marshal(struct {
			Ticker     string          `json:"ticker"`
			FundData   FundRecord      `json:"mongo_data"`
			MarketData *MarketSnapshot `json:"yfinance_data"`
		}{a.Ticker, a.FundData, a.MarketData})
	}
}
