package model

import (
	"encoding/json"
	"fmt"
)

const DefaultHistoryWindow = 5

// Turn is one query/answer exchange. On the wire a turn is a two-element
// group keyed by position: [{"0": query}, {"1": answer}].
type Turn struct {
	Query  string
	Answer Answer
}

type queryEntry struct {
	Query string `json:"0"`
}

type answerEntry struct {
	Answer Answer `json:"1"`
}

func (t Turn) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{queryEntry{t.Query}, answerEntry{t.Answer}})
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var group []json.RawMessage
	if err := json.Unmarshal(data, &group); err != nil {
		return err
	}
	if len(group) != 2 {
		return fmt.Errorf("turn group has %d entries, want 2", len(group))
	}

	var q queryEntry
	if err := json.Unmarshal(group[0], &q); err != nil {
		return fmt.Errorf("turn query entry: %w", err)
	}
	var a answerEntry
	if err := json.Unmarshal(group[1], &a); err != nil {
		return fmt.Errorf("turn answer entry: %w", err)
	}

	t.Query = q.Query
	t.Answer = a.Answer
	return nil
}

// LastTurns returns the most recent window turns, oldest first.
func LastTurns(turns []Turn, window int) []Turn {
	if window < 1 {
		window = DefaultHistoryWindow
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	if turns == nil {
		return []Turn{}
	}
	return turns
}
