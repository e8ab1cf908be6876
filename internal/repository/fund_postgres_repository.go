package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"stockchat/internal/model"
)

// PostgresFundRepository keeps each fund record as a JSONB document next to
// its symbol, for deployments without MongoDB.
type PostgresFundRepository struct {
	db *sql.DB
}

func NewPostgresFundRepository(db *sql.DB) *PostgresFundRepository {
	return &PostgresFundRepository{db: db}
}

func (r *PostgresFundRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fund_record (
			id      BIGSERIAL PRIMARY KEY,
			symbol  TEXT NOT NULL,
			data    JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS fund_record_symbol_idx ON fund_record(symbol);
	`)
	return err
}

func (r *PostgresFundRepository) FindBySymbol(ctx context.Context, symbol string) (model.FundRecord, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM fund_record
		WHERE symbol = $1
		ORDER BY id ASC
		LIMIT 1
	`, symbol).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find fund %s: %w", symbol, err)
	}

	var record model.FundRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode fund %s: %w", symbol, err)
	}
	return record, nil
}

func (r *PostgresFundRepository) InsertFunds(ctx context.Context, records []model.FundRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fund_record(symbol, data) VALUES($1, $2)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range records {
		symbol, _ := rec[symbolField].(string)

		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode fund %s: %w", symbol, err)
		}

		if _, err := stmt.ExecContext(ctx, symbol, data); err != nil {
			return 0, fmt.Errorf("insert fund %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *PostgresFundRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
