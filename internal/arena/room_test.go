package arena

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

const recvWithin = 200 * time.Millisecond

// recvEvent receives one event with a timeout so tests never hang.
func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return ev
	case <-time.After(recvWithin):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func expectEvent(t *testing.T, ch <-chan Event, name string) Event {
	t.Helper()
	ev := recvEvent(t, ch)
	if ev.Name != name {
		t.Fatalf("want event %q, got %q (%+v)", name, ev.Name, ev.Data)
	}
	return ev
}

// expectQuiet syncs with the room and then asserts nothing is queued for ch.
func expectQuiet(t *testing.T, r *Room, ch <-chan Event) {
	t.Helper()
	if _, err := r.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("expected no event, got %q (%+v)", ev.Name, ev.Data)
		}
	default:
	}
}

func newTestRoom(t *testing.T, opts ...Option) *Room {
	t.Helper()
	r := NewRoom(context.Background(), opts...)
	t.Cleanup(r.Close)
	return r
}

func send(t *testing.T, r *Room, m Msg) {
	t.Helper()
	if err := r.Send(context.Background(), m); err != nil {
		t.Fatalf("send %T: %v", m, err)
	}
}

func connect(t *testing.T, r *Room, id ConnID) chan Event {
	t.Helper()
	out := make(chan Event, 32)
	send(t, r, Connect{ID: id, Outbox: out})
	return out
}

func uciMove(s string) MoveRequest {
	raw, _ := json.Marshal(s)
	return ParseMove(raw)
}

// startGame seats white and black and drains their connect events.
func startGame(t *testing.T, r *Room) (white, black chan Event) {
	t.Helper()
	white = connect(t, r, "w1")
	expectEvent(t, white, EventPlayerRole)
	expectEvent(t, white, EventBoardState)

	black = connect(t, r, "b1")
	expectEvent(t, black, EventPlayerRole)
	expectEvent(t, black, EventGameStart)
	expectEvent(t, black, EventBoardState)
	expectEvent(t, white, EventGameStart)
	return white, black
}

func TestRoom_Connect_AssignsRolesInOrder(t *testing.T) {
	r := newTestRoom(t)

	c1 := connect(t, r, "c1")
	ev := expectEvent(t, c1, EventPlayerRole)
	if ev.Data != "w" {
		t.Fatalf("first role: want w, got %v", ev.Data)
	}
	ev = expectEvent(t, c1, EventBoardState)
	if ev.Data != StartFEN {
		t.Fatalf("boardState: want start fen, got %v", ev.Data)
	}

	c2 := connect(t, r, "c2")
	ev = expectEvent(t, c2, EventPlayerRole)
	if ev.Data != "b" {
		t.Fatalf("second role: want b, got %v", ev.Data)
	}
	if ev.Target != "c2" {
		t.Fatalf("playerRole must be unicast, target=%q", ev.Target)
	}
	expectEvent(t, c2, EventGameStart)
	expectEvent(t, c2, EventBoardState)
	expectEvent(t, c1, EventGameStart)

	c3 := connect(t, r, "c3")
	expectEvent(t, c3, EventSpectatorRole)
	expectEvent(t, c3, EventBoardState)
	expectQuiet(t, r, c1)
	expectQuiet(t, r, c2)

	v, err := r.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if v.White != "c1" || v.Black != "c2" || !v.Active || v.Clients != 3 {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestRoom_Move_WrongTurnIgnored(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	send(t, r, Move{ID: "b1", Req: uciMove("e7e5")})
	expectQuiet(t, r, black)
	expectQuiet(t, r, white)

	viewer := connect(t, r, "s1")
	expectEvent(t, viewer, EventSpectatorRole)
	expectEvent(t, viewer, EventBoardState)
	send(t, r, Move{ID: "s1", Req: uciMove("e2e4")})
	expectQuiet(t, r, viewer)
	expectQuiet(t, r, white)
}

func TestRoom_Move_LegalBroadcastsBoardState(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)
	viewer := connect(t, r, "s1")
	expectEvent(t, viewer, EventSpectatorRole)
	expectEvent(t, viewer, EventBoardState)

	send(t, r, Move{ID: "w1", Req: ParseMove(json.RawMessage(`{"from":"e2","to":"e4"}`))})
	for name, ch := range map[string]chan Event{"white": white, "black": black, "spectator": viewer} {
		ev := expectEvent(t, ch, EventBoardState)
		fen, _ := ev.Data.(string)
		b, err := NewBoardFromFEN(fen)
		if err != nil {
			t.Fatalf("%s: bad fen %q: %v", name, fen, err)
		}
		if b.Turn() != Black {
			t.Fatalf("%s: want black to move after e4, fen=%s", name, fen)
		}
		expectQuiet(t, r, ch)
	}

	v, _ := r.Snapshot(context.Background())
	if v.LastFrom != "e2" || v.LastTo != "e4" {
		t.Fatalf("last move: got %s-%s", v.LastFrom, v.LastTo)
	}
}

func TestRoom_Move_IllegalEchoesPayload(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	raw := json.RawMessage(`{"from":"e2","to":"e5"}`)
	for i := 0; i < 2; i++ {
		send(t, r, Move{ID: "w1", Req: ParseMove(raw)})
		ev := expectEvent(t, white, EventInvalidMove)
		echo, ok := ev.Data.(json.RawMessage)
		if !ok || string(echo) != string(raw) {
			t.Fatalf("attempt %d: want echo %s, got %#v", i, raw, ev.Data)
		}
	}
	expectQuiet(t, r, black)

	v, _ := r.Snapshot(context.Background())
	if v.FEN != StartFEN {
		t.Fatalf("illegal move changed the board: %s", v.FEN)
	}
}

func TestRoom_FoolsMate_GameOverThenRejects(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	plies := []struct {
		id  ConnID
		uci string
	}{{"w1", "f2f3"}, {"b1", "e7e5"}, {"w1", "g2g4"}, {"b1", "d8h4"}}
	for _, p := range plies {
		send(t, r, Move{ID: p.id, Req: uciMove(p.uci)})
		expectEvent(t, white, EventBoardState)
		expectEvent(t, black, EventBoardState)
	}

	for _, ch := range []chan Event{white, black} {
		ev := expectEvent(t, ch, EventGameOver)
		over, ok := ev.Data.(GameOver)
		if !ok || over.Reason != ReasonCheckmate {
			t.Fatalf("want checkmate, got %#v", ev.Data)
		}
	}

	send(t, r, Move{ID: "w1", Req: uciMove("a2a3")})
	expectEvent(t, white, EventInvalidMove)
	expectQuiet(t, r, black)
}

func TestRoom_Repetition_BroadcastsDraw(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	plies := []struct {
		id  ConnID
		uci string
	}{{"w1", "g1f3"}, {"b1", "g8f6"}, {"w1", "f3g1"}, {"b1", "f6g8"}}
	for round := 0; round < 2; round++ {
		for _, p := range plies {
			send(t, r, Move{ID: p.id, Req: uciMove(p.uci)})
			expectEvent(t, white, EventBoardState)
			expectEvent(t, black, EventBoardState)
		}
	}

	for _, ch := range []chan Event{white, black} {
		ev := expectEvent(t, ch, EventGameOver)
		over, ok := ev.Data.(GameOver)
		if !ok || over.Reason != ReasonDraw {
			t.Fatalf("want draw, got %#v", ev.Data)
		}
		expectQuiet(t, r, ch)
	}
}

func TestRoom_Rematch_ResetsBoard(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	send(t, r, Move{ID: "w1", Req: uciMove("e2e4")})
	expectEvent(t, white, EventBoardState)
	expectEvent(t, black, EventBoardState)

	send(t, r, Rematch{ID: "b1"})
	for _, ch := range []chan Event{white, black} {
		ev := expectEvent(t, ch, EventBoardState)
		if ev.Data != StartFEN {
			t.Fatalf("rematch: want start fen, got %v", ev.Data)
		}
		expectEvent(t, ch, EventRematchStarted)
	}

	v, _ := r.Snapshot(context.Background())
	if !v.Active || v.LastFrom != "" {
		t.Fatalf("after rematch: %+v", v)
	}
}

func TestRoom_Rematch_NeedsBothSeats(t *testing.T) {
	r := newTestRoom(t)
	c1 := connect(t, r, "c1")
	expectEvent(t, c1, EventPlayerRole)
	expectEvent(t, c1, EventBoardState)

	send(t, r, Rematch{ID: "c1"})
	expectQuiet(t, r, c1)
}

func TestRoom_Disconnect_PlayerFreesSeat(t *testing.T) {
	r := newTestRoom(t)
	_, black := startGame(t, r)

	send(t, r, Disconnect{ID: "w1"})
	expectEvent(t, black, EventWaitingForPlayer)

	// black cannot move while the game is inactive
	send(t, r, Move{ID: "b1", Req: uciMove("e7e5")})
	expectQuiet(t, r, black)

	next := connect(t, r, "w2")
	ev := expectEvent(t, next, EventPlayerRole)
	if ev.Data != "w" {
		t.Fatalf("freed seat: want w, got %v", ev.Data)
	}
	expectEvent(t, next, EventGameStart)
	expectEvent(t, next, EventBoardState)
	expectEvent(t, black, EventGameStart)
}

func TestRoom_Disconnect_SpectatorDeactivates(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)
	viewer := connect(t, r, "s1")
	expectEvent(t, viewer, EventSpectatorRole)
	expectEvent(t, viewer, EventBoardState)

	send(t, r, Disconnect{ID: "s1"})
	expectEvent(t, white, EventWaitingForPlayer)
	expectEvent(t, black, EventWaitingForPlayer)

	if _, ok := <-viewer; ok {
		t.Fatalf("spectator outbox should be closed")
	}

	v, _ := r.Snapshot(context.Background())
	if v.Active || v.White != "w1" || v.Black != "b1" {
		t.Fatalf("after spectator leave: %+v", v)
	}

	send(t, r, Move{ID: "w1", Req: uciMove("e2e4")})
	expectQuiet(t, r, white)
}

func TestRoom_SlowClientDropped(t *testing.T) {
	r := newTestRoom(t)
	white, black := startGame(t, r)

	slow := make(chan Event, 2)
	send(t, r, Connect{ID: "slow", Outbox: slow})

	for _, mv := range []struct {
		id  ConnID
		uci string
	}{{"w1", "e2e4"}, {"b1", "e7e5"}} {
		send(t, r, Move{ID: mv.id, Req: uciMove(mv.uci)})
		expectEvent(t, white, EventBoardState)
		expectEvent(t, black, EventBoardState)
	}

	v, _ := r.Snapshot(context.Background())
	if v.Clients != 2 {
		t.Fatalf("slow client should be dropped, clients=%d", v.Clients)
	}
	n := 0
	for range slow {
		n++
	}
	if n != 2 {
		t.Fatalf("slow outbox: want 2 buffered events before close, got %d", n)
	}
}

type recordingObserver struct{ events chan Event }

func (o recordingObserver) Observe(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

func TestRoom_ObserverSeesEvents(t *testing.T) {
	obs := recordingObserver{events: make(chan Event, 16)}
	r := newTestRoom(t, WithObserver(obs))
	startGame(t, r)
	if _, err := r.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	var names []string
	for len(obs.events) > 0 {
		names = append(names, (<-obs.events).Name)
	}
	want := []string{EventPlayerRole, EventBoardState, EventPlayerRole, EventGameStart, EventBoardState}
	if len(names) != len(want) {
		t.Fatalf("observer events: want %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("observer events: want %v, got %v", want, names)
		}
	}
}

func TestRoom_CloseClosesOutboxes(t *testing.T) {
	r := NewRoom(context.Background())
	c1 := connect(t, r, "c1")
	expectEvent(t, c1, EventPlayerRole)
	expectEvent(t, c1, EventBoardState)

	r.Close()
	if _, ok := <-c1; ok {
		t.Fatalf("outbox should be closed after Close")
	}
	if err := r.Send(context.Background(), Rematch{ID: "c1"}); err != ErrRoomClosed {
		t.Fatalf("send after close: want ErrRoomClosed, got %v", err)
	}
}
