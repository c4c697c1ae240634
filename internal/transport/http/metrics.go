package httptransport

import "expvar"

var (
	sessionsCreatedTotal = expvar.NewInt("arena_sessions_created_total")

	actionsTotal         = expvar.NewInt("arena_actions_total")
	actionsRejectedTotal = expvar.NewInt("arena_actions_rejected_total")
)
