// Package ingest loads fund constituent CSV files into the fund store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"stockchat/internal/model"
)

const defaultBatchSize = 500

type FundWriter interface {
	InsertFunds(ctx context.Context, records []model.FundRecord) (int, error)
}

// ReadConstituents parses a CSV with a header row into fund records. Cells
// holding integers or floats are stored as numbers and empty cells as nil.
func ReadConstituents(r io.Reader) ([]model.FundRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []model.FundRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rec := make(model.FundRecord, len(header))
		for i, col := range header {
			rec[col] = parseCell(row[i])
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseCell(cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return cell
}

// Load writes records in batches and returns how many were stored.
func Load(ctx context.Context, w FundWriter, records []model.FundRecord, batchSize int) (int, error) {
	if len(records) == 0 {
		slog.Info("no data to load")
		return 0, nil
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	loaded := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		n, err := w.InsertFunds(ctx, records[start:end])
		loaded += n
		if err != nil {
			return loaded, fmt.Errorf("load records %d-%d: %w", start, end-1, err)
		}
	}

	return loaded, nil
}
