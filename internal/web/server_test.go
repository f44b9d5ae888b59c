package web

import (
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	room := arena.NewRoom(context.Background())
	t.Cleanup(room.Close)
	srv, err := NewServer(room, Config{Title: "ChessKhelo", OutboxSize: 16})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readFrame reads one frame with a timeout so tests never hang.
func readFrame(t *testing.T, conn *websocket.Conn) arenadto.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f arenadto.Frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func expectFrame(t *testing.T, conn *websocket.Conn, event string) arenadto.Frame {
	t.Helper()
	f := readFrame(t, conn)
	if f.Event != event {
		t.Fatalf("want %q, got %q (%s)", event, f.Event, f.Data)
	}
	return f
}

func writeRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestIndex_RendersTitle(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<title>ChessKhelo</title>") {
		t.Fatalf("index: status=%d body=%s", resp.StatusCode, body)
	}
}

func TestStatic_ServesClient(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/static/js/game.js")
	if err != nil {
		t.Fatalf("GET game.js: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "boardState") {
		t.Fatalf("game.js: status=%d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || h.Active || h.Turn != "w" {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestBoardPNG(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/board.png", "/board.png?view=b"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Fatalf("%s content type: %s", path, ct)
		}
		if _, err := png.Decode(resp.Body); err != nil {
			t.Fatalf("%s decode: %v", path, err)
		}
		resp.Body.Close()
	}
}

func TestWS_GameFlow(t *testing.T) {
	ts := newTestServer(t)

	white := dial(t, ts)
	f := expectFrame(t, white, arena.EventPlayerRole)
	if string(f.Data) != `"w"` {
		t.Fatalf("white role: %s", f.Data)
	}
	expectFrame(t, white, arena.EventBoardState)

	black := dial(t, ts)
	f = expectFrame(t, black, arena.EventPlayerRole)
	if string(f.Data) != `"b"` {
		t.Fatalf("black role: %s", f.Data)
	}
	expectFrame(t, black, arena.EventGameStart)
	expectFrame(t, black, arena.EventBoardState)
	expectFrame(t, white, arena.EventGameStart)

	writeRaw(t, white, `{"event":"move","data":{"from":"e2","to":"e4"}}`)
	for _, c := range []*websocket.Conn{white, black} {
		f := expectFrame(t, c, arena.EventBoardState)
		var fen string
		if err := json.Unmarshal(f.Data, &fen); err != nil || !strings.Contains(fen, " b ") {
			t.Fatalf("fen after e4: %s (%v)", f.Data, err)
		}
	}

	// noise is ignored without dropping the connection
	writeRaw(t, black, `not json`)
	writeRaw(t, black, `{"event":"resign"}`)
	writeRaw(t, black, `{"event":"move","data":{"from":"e7","to":"e4"}}`)
	f = expectFrame(t, black, arena.EventInvalidMove)
	if string(f.Data) != `{"from":"e7","to":"e4"}` {
		t.Fatalf("invalid move echo: %s", f.Data)
	}

	writeRaw(t, black, `{"event":"move","data":"e5"}`)
	expectFrame(t, white, arena.EventBoardState)
	expectFrame(t, black, arena.EventBoardState)

	writeRaw(t, white, `{"event":"rematch"}`)
	for _, c := range []*websocket.Conn{white, black} {
		expectFrame(t, c, arena.EventBoardState)
		expectFrame(t, c, arena.EventRematchStarted)
	}
}

func TestWS_DisconnectNotifiesOthers(t *testing.T) {
	ts := newTestServer(t)

	white := dial(t, ts)
	expectFrame(t, white, arena.EventPlayerRole)
	expectFrame(t, white, arena.EventBoardState)

	black := dial(t, ts)
	expectFrame(t, black, arena.EventPlayerRole)
	expectFrame(t, black, arena.EventGameStart)
	expectFrame(t, black, arena.EventBoardState)

	_ = white.Close(websocket.StatusNormalClosure, "leaving")
	expectFrame(t, black, arena.EventWaitingForPlayer)

	next := dial(t, ts)
	f := expectFrame(t, next, arena.EventPlayerRole)
	if string(f.Data) != `"w"` {
		t.Fatalf("freed seat should be white, got %s", f.Data)
	}
}
