package arena

import (
	"context"

	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

// Msg is anything the room inbox accepts.
type Msg interface{ isRoomMsg() }

// Connect registers a connection. The room owns Outbox from then on and
// closes it when the connection leaves, is dropped, or the room stops.
type Connect struct {
	ID     ConnID
	Outbox chan<- Event
}

type Disconnect struct{ ID ConnID }

type Move struct {
	ID  ConnID
	Req MoveRequest
}

type Rematch struct{ ID ConnID }

// GetState asks for a View of the room.
type GetState struct {
	Reply chan<- View
}

func (Connect) isRoomMsg()    {}
func (Disconnect) isRoomMsg() {}
func (Move) isRoomMsg()       {}
func (Rematch) isRoomMsg()    {}
func (GetState) isRoomMsg()   {}

// View is a read-only copy of the room state.
type View struct {
	White    ConnID
	Black    ConnID
	Active   bool
	FEN      string
	Turn     Color
	LastFrom string
	LastTo   string
	Clients  int
}

// Room is the single game: seats, board and connected clients, owned by one
// goroutine that processes inbox messages one at a time.
type Room struct {
	inbox   chan Msg
	seats   seats
	board   *Board
	clients *registry
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Room)

// WithObserver adds an observer for every emitted event.
func WithObserver(o Observer) Option {
	return func(r *Room) {
		if o != nil {
			r.clients.observers = append(r.clients.observers, o)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Room) {
		if l != nil {
			r.logger = l
			r.clients.logger = l
		}
	}
}

// WithBoard replaces the initial board.
func WithBoard(b *Board) Option {
	return func(r *Room) {
		if b != nil {
			r.board = b
		}
	}
}

func NewRoom(parent context.Context, opts ...Option) *Room {
	ctx, cancel := context.WithCancel(parent)
	logger := obslog.L()
	r := &Room{
		inbox:   make(chan Msg, 64),
		board:   NewBoard(),
		clients: newRegistry(logger),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop()
	return r
}

// Send queues m for processing.
func (r *Room) Send(ctx context.Context, m Msg) error {
	select {
	case <-r.ctx.Done():
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current View.
func (r *Room) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.Send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return View{}, ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close stops the room and closes every outbox.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.clients.closeAll()
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Connect:
				r.handleConnect(msg)
			case Disconnect:
				r.handleDisconnect(msg)
			case Move:
				r.handleMove(msg)
			case Rematch:
				r.handleRematch(msg)
			case GetState:
				msg.Reply <- r.view()
			}
		}
	}
}

func (r *Room) handleConnect(msg Connect) {
	if msg.ID == "" || msg.Outbox == nil {
		return
	}
	if !r.clients.add(msg.ID, msg.Outbox) {
		r.logger.Warn("arena_connect_duplicate", zap.String("conn_id", string(msg.ID)))
		return
	}

	role := "spectator"
	if color, ok := r.seats.assign(msg.ID); ok {
		role = string(color)
		r.clients.unicast(msg.ID, EventPlayerRole, string(color))
	} else {
		r.clients.unicast(msg.ID, EventSpectatorRole, nil)
	}

	if r.seats.full() && !r.seats.active {
		r.seats.active = true
		r.clients.broadcast(EventGameStart, nil)
		r.logger.Info("arena_game_start",
			zap.String("white_id", string(r.seats.white)),
			zap.String("black_id", string(r.seats.black)),
		)
	}

	r.clients.unicast(msg.ID, EventBoardState, r.board.FEN())
	r.logger.Info("arena_connect",
		zap.String("conn_id", string(msg.ID)),
		zap.String("role", role),
		zap.Int("clients", r.clients.len()),
	)
}

// handleDisconnect resets the game on every departure, spectators included.
func (r *Room) handleDisconnect(msg Disconnect) {
	r.clients.remove(msg.ID)
	color, seated := r.seats.release(msg.ID)
	r.seats.active = false
	r.clients.broadcast(EventWaitingForPlayer, nil)
	r.logger.Info("arena_disconnect",
		zap.String("conn_id", string(msg.ID)),
		zap.Bool("seated", seated),
		zap.String("color", string(color)),
		zap.Int("clients", r.clients.len()),
	)
}

func (r *Room) handleMove(msg Move) {
	if !r.seats.active {
		return
	}
	turn := r.board.Turn()
	if r.seats.holder(turn) != msg.ID {
		return
	}

	if err := r.board.Apply(msg.Req); err != nil {
		var echo any
		if len(msg.Req.Raw) > 0 {
			echo = msg.Req.Raw
		}
		r.clients.unicast(msg.ID, EventInvalidMove, echo)
		r.logger.Info("arena_move_rejected",
			zap.String("conn_id", string(msg.ID)),
			zap.String("turn", string(turn)),
			zap.Error(err),
		)
		return
	}

	fen := r.board.FEN()
	r.clients.broadcast(EventBoardState, fen)
	from, to := r.board.LastMove()
	r.logger.Info("arena_move",
		zap.String("conn_id", string(msg.ID)),
		zap.String("color", string(turn)),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("fen", fen),
	)

	if reason, over := r.board.Outcome(); over {
		r.clients.broadcast(EventGameOver, GameOver{Reason: reason})
		r.logger.Info("arena_game_over", zap.String("reason", reason), zap.String("fen", fen))
	}
}

// handleRematch is honored whenever both seats are held, even mid-game.
func (r *Room) handleRematch(msg Rematch) {
	if !r.seats.full() {
		return
	}
	r.board.Reset()
	r.seats.active = true
	r.clients.broadcast(EventBoardState, r.board.FEN())
	r.clients.broadcast(EventRematchStarted, nil)
	r.logger.Info("arena_rematch", zap.String("conn_id", string(msg.ID)))
}

func (r *Room) view() View {
	from, to := r.board.LastMove()
	return View{
		White:    r.seats.white,
		Black:    r.seats.black,
		Active:   r.seats.active,
		FEN:      r.board.FEN(),
		Turn:     r.board.Turn(),
		LastFrom: from,
		LastTo:   to,
		Clients:  r.clients.len(),
	}
}
