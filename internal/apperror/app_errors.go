package apperror

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotRoomMember = errors.New("connection is not a room member")
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrCellOccupied  = errors.New("cell is already occupied")
	ErrGameFinished  = errors.New("game is already finished")
	ErrAlreadyInRoom = errors.New("connection is already in a room")
)
