package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type TickerExtractor interface {
	ExtractTicker(ctx context.Context, query string) (string, error)
	Name() string
}

// parseTicker reads the ticker out of a model reply. An empty object, a null
// ticker or an empty string all mean no ticker was found.
func parseTicker(content string) (string, error) {
	content = cleanJSONResponse(content)

	var parsed struct {
		Ticker *string `json:"ticker"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	if parsed.Ticker == nil {
		return "", nil
	}
	return strings.ToUpper(strings.TrimSpace(*parsed.Ticker)), nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
