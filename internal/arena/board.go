package arena

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the canonical initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Board wraps the rules engine. It is not safe for concurrent use; the Room
// goroutine is its only caller.
type Board struct {
	game     *nchess.Game
	lastFrom string
	lastTo   string
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// NewBoardFromFEN starts from an arbitrary position.
func NewBoardFromFEN(fen string) (*Board, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

func (b *Board) FEN() string { return b.game.FEN() }

func (b *Board) Turn() Color {
	if b.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// LastMove returns the squares of the most recent move, or empty strings.
func (b *Board) LastMove() (from, to string) { return b.lastFrom, b.lastTo }

func (b *Board) Reset() {
	b.game = nchess.NewGame()
	b.lastFrom, b.lastTo = "", ""
}

// Apply validates and plays req. Every failure, including a panic inside the
// rules engine, wraps ErrIllegalMove or is ErrGameOver, and leaves the
// position untouched.
func (b *Board) Apply(req MoveRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: rules engine panic: %v", ErrIllegalMove, r)
		}
	}()

	if b.game.Outcome() != nchess.NoOutcome {
		return ErrGameOver
	}
	if req.Notation != "" {
		err = b.pushNotation(req.Notation)
	} else {
		err = b.pushSquares(req.From, req.To, req.Promotion)
	}
	if err != nil {
		return err
	}

	if mv := lastMove(b.game); mv != nil {
		b.lastFrom, b.lastTo = mv.S1().String(), mv.S2().String()
	}
	b.claimAutomaticDraw()
	return nil
}

// Outcome reports whether the game has ended and why.
func (b *Board) Outcome() (reason string, over bool) {
	if b.game.Outcome() == nchess.NoOutcome {
		return "", false
	}
	if b.game.Method() == nchess.Checkmate {
		return ReasonCheckmate, true
	}
	return ReasonDraw, true
}

// pushNotation accepts UCI first and falls back to SAN. A four-letter UCI
// pawn move onto the back rank promotes to a queen.
func (b *Board) pushNotation(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("%w: empty notation", ErrIllegalMove)
	}
	uci := strings.ToLower(s)
	if len(uci) == 4 && validSquare(uci[:2]) && validSquare(uci[2:]) && b.isPromotion(uci[:2], uci[2:]) {
		uci += "q"
	}
	if err := b.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err == nil {
		return nil
	}
	if err := b.game.PushNotationMove(s, nchess.AlgebraicNotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	return nil
}

func (b *Board) pushSquares(from, to, promo string) error {
	if !validSquare(from) || !validSquare(to) {
		return fmt.Errorf("%w: bad squares %q-%q", ErrIllegalMove, from, to)
	}
	uci := from + to
	if b.isPromotion(from, to) {
		letter, ok := promotionLetter(promo)
		if !ok {
			return fmt.Errorf("%w: bad promotion %q", ErrIllegalMove, promo)
		}
		uci += letter
	}
	if err := b.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	return nil
}

// isPromotion reports whether a pawn sits on from and to is a back rank.
// The promotion choice is ignored for every other move.
func (b *Board) isPromotion(from, to string) bool {
	if to[1] != '1' && to[1] != '8' {
		return false
	}
	sq := nchess.NewSquare(nchess.File(from[0]-'a'), nchess.Rank(from[1]-'1'))
	return b.game.Position().Board().Piece(sq).Type() == nchess.Pawn
}

// claimAutomaticDraw ends the game on threefold repetition or the fifty-move
// rule, which the engine only treats as claimable.
func (b *Board) claimAutomaticDraw() {
	if b.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = b.game.Draw(m)
			return
		}
	}
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
