package store

import "errors"

var (
	ErrNotFound = errors.New("not_found")
	// ErrConflict means a conditional update matched no row: another request
	// won the race. Callers re-read fresh state before answering.
	ErrConflict = errors.New("conflict")

	ErrSessionFull    = errors.New("session_full")
	ErrAlreadyJoined  = errors.New("already_joined")
	ErrNotAccepting   = errors.New("not_accepting")
	ErrNotParticipant = errors.New("not_participant")
)
