package ws

import "errors"

var (
	errNotIdentified = errors.New("not_identified")
	errBadMessage    = errors.New("bad_message")
	errNoSession     = errors.New("no_session")
)
