package feed

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
)

// cursorToken is the decoded shape of the opaque pagination cursor: a
// position in the globally sorted, deduplicated entry list.
type cursorToken struct {
	Offset int `json:"o"`
}

func encodeCursor(offset int) string {
	data, _ := json.Marshal(cursorToken{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor resolves a cursor to an offset. A malformed cursor restarts
// from the beginning rather than failing a render path.
func decodeCursor(raw string) int {
	if raw == "" {
		return 0
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		slog.Warn("Malformed feed cursor, restarting from top", "cursor", raw)
		return 0
	}

	var token cursorToken
	if err := json.Unmarshal(data, &token); err != nil || token.Offset < 0 {
		slog.Warn("Malformed feed cursor, restarting from top", "cursor", raw)
		return 0
	}

	return token.Offset
}
