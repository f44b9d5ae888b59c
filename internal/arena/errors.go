package arena

import "errors"

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game already over")
	ErrRoomClosed  = errors.New("room closed")
)
