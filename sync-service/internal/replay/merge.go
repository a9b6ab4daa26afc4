package replay

import (
	"encoding/json"
	"fmt"
	"time"
)

// Merge lays client over server. Client keys win, and where both sides hold
// an object the two are merged recursively. Neither input is modified.
func Merge(server, client map[string]any) map[string]any {
	out := make(map[string]any, len(server)+len(client))
	for k, v := range server {
		out[k] = v
	}
	for k, cv := range client {
		if cm, ok := cv.(map[string]any); ok {
			if sm, ok := out[k].(map[string]any); ok {
				out[k] = Merge(sm, cm)
				continue
			}
		}
		out[k] = cv
	}
	return out
}

// DecodeObject parses a JSON object. Anything else is an error.
func DecodeObject(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}
	return doc, nil
}

// versionFields are the timestamps services stamp on every write.
var versionFields = []string{"updatedTimestamp", "updatedAt"}

// Version reads the last-modified time of a server document.
func Version(doc map[string]any) (time.Time, bool) {
	for _, field := range versionFields {
		raw, ok := doc[field].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
