package repository

import (
	"context"
	"errors"
	"fmt"
	"stockchat/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const userNameField = "user_name"

// turnEntry is one half of a stored turn group. The query half is keyed "0"
// and the answer half "1", so a group reads [{"0": q}, {"1": a}].
type turnEntry struct {
	Query  *string       `bson:"0,omitempty"`
	Answer *model.Answer `bson:"1,omitempty"`
}

type historyDocument struct {
	UserName string        `bson:"user_name"`
	History  [][]turnEntry `bson:"history"`
}

type HistoryRepository struct {
	collection *mongo.Collection
	window     int
}

func NewHistoryRepository(collection *mongo.Collection, window int) *HistoryRepository {
	if window < 1 {
		window = model.DefaultHistoryWindow
	}
	return &HistoryRepository{collection: collection, window: window}
}

func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: userNameField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// History returns the user's most recent turns, creating an empty record for
// users seen for the first time.
func (r *HistoryRepository) History(ctx context.Context, user string) ([]model.Turn, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"history": bson.M{"$slice": -r.window}})

	var doc historyDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{userNameField: user},
		bson.M{"$setOnInsert": bson.M{"history": bson.A{}}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", user, err)
	}

	turns := make([]model.Turn, 0, len(doc.History))
	for i, group := range doc.History {
		turn, err := groupToTurn(group)
		if err != nil {
			return nil, fmt.Errorf("history for %s, turn %d: %w", user, i, err)
		}
		turns = append(turns, turn)
	}

	return model.LastTurns(turns, r.window), nil
}

// Append pushes a turn and trims the history to the window in one update,
// so concurrent appends for the same user cannot drop each other.
func (r *HistoryRepository) Append(ctx context.Context, user string, turn model.Turn) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{userNameField: user},
		bson.M{"$push": bson.M{"history": bson.M{
			"$each":  bson.A{turnToGroup(turn)},
			"$slice": -r.window,
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("append history for %s: %w", user, err)
	}
	return nil
}

func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

func turnToGroup(turn model.Turn) []turnEntry {
	query := turn.Query
	answer := turn.Answer
	return []turnEntry{{Query: &query}, {Answer: &answer}}
}

func groupToTurn(group []turnEntry) (model.Turn, error) {
	if len(group) != 2 || group[0].Query == nil || group[1].Answer == nil {
		return model.Turn{}, errors.New("malformed turn group")
	}
	return model.Turn{Query: *group[0].Query, Answer: *group[1].Answer}, nil
}
