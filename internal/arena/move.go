package arena

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// ParseMove decodes a "move" payload. It never fails: anything that is not a
// move object or a notation string yields an empty request, which the board
// rejects as illegal.
func ParseMove(raw json.RawMessage) MoveRequest {
	req := MoveRequest{Raw: append(json.RawMessage(nil), raw...)}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return req
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			req.Notation = strings.TrimSpace(s)
		}
	case '{':
		var p arenadto.MovePayload
		if err := json.Unmarshal(trimmed, &p); err == nil {
			req.From = strings.ToLower(strings.TrimSpace(p.From))
			req.To = strings.ToLower(strings.TrimSpace(p.To))
			req.Promotion = strings.ToLower(strings.TrimSpace(p.Promotion))
		}
	}
	return req
}

func validSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// promotionLetter maps a client promotion choice to its UCI letter.
// An empty choice means queen.
func promotionLetter(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", "q", "queen":
		return "q", true
	case "r", "rook":
		return "r", true
	case "b", "bishop":
		return "b", true
	case "n", "knight":
		return "n", true
	default:
		return "", false
	}
}
