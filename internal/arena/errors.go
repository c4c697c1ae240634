package arena

import "errors"

// Policy rejections. These reach clients verbatim as rejection reasons, so
// they stay short snake_case codes. Storage-level rejections
// (store.ErrSessionFull and friends) pass through unchanged.
var (
	ErrNotHost          = errors.New("not_host")
	ErrNotStarted       = errors.New("not_started")
	ErrNotWaiting       = errors.New("not_waiting")
	ErrNotEnoughPlayers = errors.New("not_enough_players")
	ErrNotAllReady      = errors.New("not_all_ready")
	ErrKickAfterStart   = errors.New("kick_after_start")
	ErrKickHost         = errors.New("kick_host")
	ErrSessionEnded     = errors.New("session_ended")
)
