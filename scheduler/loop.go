package scheduler

import (
	"context"
	"log"
	"time"
)

// Loop runs cycles at the configured slot times until the context is
// canceled. The clock is checked every pollInterval rather than armed with
// one long timer, so suspend/resume and clock adjustments self-correct
// within one poll.
func (o *Orchestrator) Loop(ctx context.Context, pollInterval time.Duration) error {
	next := o.table.NextFire(o.now())
	log.Printf("scheduler: next cycle at %s", next.Format(time.RFC3339))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := o.now()
			if now.Before(next) {
				continue
			}

			res, err := o.RunCycle(ctx)
			if err != nil {
				log.Printf("scheduler: cycle failed: %v", err)
			} else {
				log.Printf("scheduler: cycle done: uploaded=%d failed=%d recovered=%d aborted=%v",
					res.Uploaded, res.Failed, res.Recovered, res.Aborted)
			}

			next = o.table.NextFire(o.now())
			log.Printf("scheduler: next cycle at %s", next.Format(time.RFC3339))
		}
	}
}
