package repository

import (
	"context"
	"fmt"
	"log/slog"
	"stockchat/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// flatEntry is the legacy history entry layout: a flat list alternating
// {"type": "human", "content": query} and {"type": "bot", "content": answer}.
type flatEntry struct {
	Type    string        `bson:"type"`
	Content bson.RawValue `bson:"content"`
}

// flatHistoryDocument keeps history elements raw: a legacy user who searched
// after the switch has turn groups pushed behind the flat entries.
type flatHistoryDocument struct {
	ID       bson.ObjectID   `bson:"_id"`
	UserName string          `bson:"user_name"`
	History  []bson.RawValue `bson:"history"`
}

// MigrateFlat rewrites every history still holding flat human/bot entries
// into turn groups. It returns the number of documents rewritten.
func (r *HistoryRepository) MigrateFlat(ctx context.Context) (int, error) {
	filter := bson.M{"history": bson.M{"$elemMatch": bson.M{"type": bson.M{"$exists": true}}}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("find flat histories: %w", err)
	}
	defer cursor.Close(ctx)

	migrated := 0
	for cursor.Next(ctx) {
		var doc flatHistoryDocument
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("skipping unreadable history document", "error", err)
			continue
		}

		turns := model.LastTurns(legacyTurns(doc.History), r.window)

		groups := make([][]turnEntry, len(turns))
		for i, t := range turns {
			groups[i] = turnToGroup(t)
		}

		_, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": doc.ID},
			bson.M{"$set": bson.M{"history": groups}},
		)
		if err != nil {
			return migrated, fmt.Errorf("rewrite history for %s: %w", doc.UserName, err)
		}

		slog.Info("migrated history", "user_name", doc.UserName, "entries", len(doc.History), "turns", len(turns))
		migrated++
	}

	if err := cursor.Err(); err != nil {
		return migrated, err
	}
	return migrated, nil
}

// legacyTurns reads a history that may mix flat entries with turn groups.
// Runs of flat entries are paired in place and groups are kept as they are.
func legacyTurns(values []bson.RawValue) []model.Turn {
	var turns []model.Turn
	var pending []flatEntry

	for i, v := range values {
		switch v.Type {
		case bson.TypeEmbeddedDocument:
			var entry flatEntry
			if err := v.Unmarshal(&entry); err != nil {
				slog.Warn("skipping unreadable history entry", "index", i, "error", err)
				continue
			}
			pending = append(pending, entry)
		case bson.TypeArray:
			var group []turnEntry
			if err := v.Unmarshal(&group); err != nil {
				slog.Warn("skipping unreadable turn group", "index", i, "error", err)
				continue
			}
			turn, err := groupToTurn(group)
			if err != nil {
				slog.Warn("skipping malformed turn group", "index", i, "error", err)
				continue
			}
			turns = append(turns, pairFlatEntries(pending)...)
			pending = nil
			turns = append(turns, turn)
		default:
			slog.Warn("skipping history entry of unexpected type", "index", i, "type", v.Type.String())
		}
	}

	return append(turns, pairFlatEntries(pending)...)
}

// pairFlatEntries joins each human entry with the bot entry right after it.
// Entries without a partner are dropped.
func pairFlatEntries(entries []flatEntry) []model.Turn {
	var turns []model.Turn
	for i := 0; i+1 < len(entries); i++ {
		human, bot := entries[i], entries[i+1]
		if human.Type != "human" || bot.Type != "bot" {
			continue
		}

		query, ok := human.Content.StringValueOK()
		if !ok {
			continue
		}

		var answer model.Answer
		if err := bot.Content.Unmarshal(&answer); err != nil {
			slog.Warn("skipping unreadable bot entry", "error", err)
			continue
		}

		turns = append(turns, model.Turn{Query: query, Answer: answer})
		i++
	}
	return turns
}
