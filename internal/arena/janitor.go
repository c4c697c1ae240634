package arena

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartJanitor runs the deadline sweep until ctx is cancelled. In-process
// timers end sessions on time during normal operation; the sweep is the
// fallback that catches deadlines whose timers were lost to a restart, since
// ends_at and grace_ends_at are persisted.
func (c *Coordinator) StartJanitor(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweepExpired()
			}
		}
	}()
}

func (c *Coordinator) sweepExpired() {
	ctx, cancel := c.opCtx()
	defer cancel()

	now := c.now()
	sessions, err := c.store.ListExpiredSessions(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("expired session sweep failed")
		return
	}
	for i := range sessions {
		sess := &sessions[i]
		cause := "deadline"
		if sess.GraceEndsAt != nil && !sess.GraceEndsAt.After(now) {
			cause = "grace_elapsed"
		}
		if err := c.Terminate(ctx, sess.ID, cause); err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).Msg("sweep end failed")
		}
	}
}
