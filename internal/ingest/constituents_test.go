package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stockchat/internal/model"

	"github.com/go-playground/assert/v2"
)

const sampleCSV = "\ufeffSymbol,Security,GICS Sector,Date added,CIK,Weight\n" +
	"MMM,3M,Industrials,1957-03-04,66740,0.12\n" +
	"MSFT,Microsoft,Information Technology,1994-06-01,789019,\n" +
	"BRK.B,\"Berkshire Hathaway, Inc.\",Financials,2010-02-16,1067983,1.5\n"

func TestReadConstituents(t *testing.T) {
	records, err := ReadConstituents(strings.NewReader(sampleCSV))

	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(records))

	assert.Equal(t, model.FundRecord{
		"Symbol":      "MMM",
		"Security":    "3M",
		"GICS Sector": "Industrials",
		"Date added":  "1957-03-04",
		"CIK":         int64(66740),
		"Weight":      0.12,
	}, records[0])
	assert.Equal(t, nil, records[1]["Weight"])
	assert.Equal(t, "Berkshire Hathaway, Inc.", records[2]["Security"])
	assert.Equal(t, "BRK.B", records[2]["Symbol"])
}

func TestReadConstituents_Errors(t *testing.T) {
	_, err := ReadConstituents(strings.NewReader(""))
	assert.NotEqual(t, nil, err)

	_, err = ReadConstituents(strings.NewReader("Symbol,Security\nMMM,3M,extra\n"))
	assert.NotEqual(t, nil, err)
}

func TestParseCell(t *testing.T) {
	assert.Equal(t, nil, parseCell("  "))
	assert.Equal(t, int64(42), parseCell("42"))
	assert.Equal(t, 3.5, parseCell("3.5"))
	assert.Equal(t, "NaN", parseCell("NaN"))
	assert.Equal(t, "INF", parseCell("INF"))
	assert.Equal(t, "AAPL", parseCell("AAPL"))
}

type fakeWriter struct {
	batches [][]model.FundRecord
	failAt  int
}

func (f *fakeWriter) InsertFunds(ctx context.Context, records []model.FundRecord) (int, error) {
	if f.failAt > 0 && len(f.batches)+1 == f.failAt {
		return 0, errors.New("insert failed")
	}
	f.batches = append(f.batches, records)
	return len(records), nil
}

func makeRecords(n int) []model.FundRecord {
	records := make([]model.FundRecord, n)
	for i := range records {
		records[i] = model.FundRecord{"Symbol": i}
	}
	return records
}

func TestLoad_Batches(t *testing.T) {
	w := &fakeWriter{}

	n, err := Load(context.Background(), w, makeRecords(7), 3)

	assert.Equal(t, nil, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 3, len(w.batches))
	assert.Equal(t, 1, len(w.batches[2]))
}

func TestLoad_StopsOnError(t *testing.T) {
	w := &fakeWriter{failAt: 2}

	n, err := Load(context.Background(), w, makeRecords(7), 3)

	assert.NotEqual(t, nil, err)
	assert.Equal(t, 3, n)
}

func TestLoad_Empty(t *testing.T) {
	w := &fakeWriter{}

	n, err := Load(context.Background(), w, nil, 0)

	assert.Equal(t, nil, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, len(w.batches))
}
