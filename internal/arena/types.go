package arena

import "encoding/json"

// Color identifies a seat. Values match the role strings sent to clients.
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// ConnID is the opaque identifier of one client connection.
type ConnID string

// Wire event names.
const (
	EventPlayerRole       = "playerRole"
	EventSpectatorRole    = "spectatorRole"
	EventBoardState       = "boardState"
	EventGameStart        = "gameStart"
	EventWaitingForPlayer = "waitingForPlayer"
	EventRematchStarted   = "rematchStarted"
	EventGameOver         = "gameOver"
	EventInvalidMove      = "InvalidMove"

	EventMove    = "move"
	EventRematch = "rematch"
)

// Game-over reasons.
const (
	ReasonCheckmate = "checkmate"
	ReasonDraw      = "draw"
)

// GameOver is the payload of EventGameOver.
type GameOver struct {
	Reason string `json:"reason"`
}

// Event is one outbound message. Target is empty for broadcasts.
type Event struct {
	Name   string
	Data   any
	Target ConnID
}

func (e Event) Broadcast() bool { return e.Target == "" }

// MoveRequest is a move intent from a client. Either From/To (with optional
// Promotion) or Notation (SAN or UCI) is set. Raw keeps the payload as
// received so rejections can echo it back.
type MoveRequest struct {
	From      string
	To        string
	Promotion string
	Notation  string
	Raw       json.RawMessage
}
