package session

import "errors"

// Admission and lifecycle rejections. Rule rejections come from the engine.
var (
	ErrSessionOver  = errors.New("session is over")
	ErrUnknownSeat  = errors.New("unknown seat")
	ErrSeatOccupied = errors.New("seat is occupied")
	ErrSeatVacant   = errors.New("seat is vacant")
	ErrNotBootable  = errors.New("seat is not bootable")
	ErrWrongUser    = errors.New("seat belongs to another user")
	ErrBadCommand   = errors.New("malformed command")
)
