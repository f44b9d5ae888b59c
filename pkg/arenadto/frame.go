package arenadto

import "encoding/json"

// Frame is the JSON envelope exchanged over the websocket in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MovePayload is the object form of a "move" frame.
type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}
