package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"stockchat/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const symbolField = "Symbol"

type FundRepository struct {
	collection *mongo.Collection
}

func NewFundRepository(collection *mongo.Collection) *FundRepository {
	return &FundRepository{collection: collection}
}

func (r *FundRepository) FindBySymbol(ctx context.Context, symbol string) (model.FundRecord, error) {
	var record model.FundRecord
	err := r.collection.FindOne(ctx, bson.M{symbolField: symbol}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find fund %s: %w", symbol, err)
	}

	delete(record, "_id")
	return sanitizeRecord(record), nil
}

func (r *FundRepository) InsertFunds(ctx context.Context, records []model.FundRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]any, len(records))
	for i, rec := range records {
		docs[i] = rec
	}

	res, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert funds: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (r *FundRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

// sanitizeRecord replaces NaN and infinite floats, which older loaders wrote
// for empty CSV cells, with nil so the record stays JSON encodable.
func sanitizeRecord(record model.FundRecord) model.FundRecord {
	for k, v := range record {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			record[k] = nil
		}
	}
	return record
}
