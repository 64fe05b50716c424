package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tkteam/meeting-assistant/internal/task"
)

// ErrParse marks an external response that could not be interpreted into
// the expected action-item structure.
var ErrParse = errors.New("parse error")

var (
	codeFenceRe = regexp.MustCompile("(?mi)^```(?:json)?|```$")
	arrayRe     = regexp.MustCompile(`(?s)\[.*\]`)
)

// requiredKeys are the keys every extracted element must carry. The external
// service emits "duedate", which is normalized to due_date in the result.
var requiredKeys = []string{"item", "action", "owner", "duedate"}

// ParseActionItems recovers a JSON array from a possibly fence-wrapped
// response and validates every element. A missing key in any element fails
// the whole parse; there is no partial success.
func ParseActionItems(raw string) ([]task.ActionItemCandidate, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
	if !(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
		if m := arrayRe.FindString(s); m != "" {
			s = m
		}
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("%w: extractor did not return a JSON array: %v", ErrParse, err)
	}

	items := make([]task.ActionItemCandidate, 0, len(rows))
	for _, row := range rows {
		for _, key := range requiredKeys {
			if _, ok := row[key]; !ok {
				return nil, fmt.Errorf("%w: extractor element is missing required key %q", ErrParse, key)
			}
		}
		items = append(items, task.ActionItemCandidate{
			Item:    asString(row["item"]),
			Action:  asString(row["action"]),
			Owner:   asString(row["owner"]),
			DueDate: asString(row["duedate"]),
		})
	}
	return items, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
