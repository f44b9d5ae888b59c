package arenadto

import (
	"encoding/json"
	"time"
)

// FeedEntry is one room broadcast as published on the event feed.
type FeedEntry struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    time.Time       `json:"at"`
}
