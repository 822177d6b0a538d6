package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrSummaryNotFound   = errors.New("room summary not found")
	ErrJoiningIDTaken    = errors.New("room name and joining id are already in use")
	ErrStaleSummary      = errors.New("room summary is older than the stored one")
)
