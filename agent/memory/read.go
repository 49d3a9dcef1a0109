package memory

import (
	"bytes"
	"context"
	"encoding/json"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

// ReadSlice reads an append log. Absent or non-array values read as an
// empty log.
func ReadSlice(ctx context.Context, m contractx.Memory, key, userID string) ([]json.RawMessage, error) {
	raw, err := m.Read(ctx, key, userID)
	if contractx.Failed(err) {
		return nil, err
	}
	var items []json.RawMessage
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if jerr := json.Unmarshal(trimmed, &items); jerr != nil {
			items = nil
		}
	}
	return items, err
}

// ReadObject reads a context blob, defaulting to an empty object.
func ReadObject(ctx context.Context, m contractx.Memory, key, userID string) (json.RawMessage, error) {
	raw, err := m.Read(ctx, key, userID)
	if contractx.Failed(err) {
		return nil, err
	}
	if isNull(raw) {
		return json.RawMessage("{}"), err
	}
	return raw, err
}
