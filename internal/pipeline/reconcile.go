package pipeline

import (
	"context"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/store"
)

// reconcileLimit bounds how many entries of one source are examined.
const reconcileLimit = 100000

// reconcile updates presence counters for every source that answered this
// cycle with at least one candidate. Observed entries are reset and
// reactivated; active entries that were not observed accumulate a missed
// cycle and are deactivated once DeactivateAfter is reached. Failed or empty
// sources are left untouched.
func (o *Orchestrator) reconcile(ctx context.Context, batches []sourceBatch, report *domain.RunReport) error {
	if o.opts.DeactivateAfter < 0 {
		return nil
	}

	for _, b := range batches {
		if b.err != nil || len(b.candidates) == 0 {
			continue
		}

		observed := make(map[string]struct{}, len(b.candidates))
		for _, c := range b.candidates {
			observed[c.ExternalID] = struct{}{}
		}

		entries, err := o.store.List(ctx, store.Filter{Source: b.name, Limit: reconcileLimit})
		if err != nil {
			return storageError("reconcile list", err)
		}

		for _, e := range entries {
			missed, active := e.MissedCycles, e.IsActive
			if _, seen := observed[e.ExternalID]; seen {
				missed, active = 0, true
			} else if e.IsActive {
				missed++
				active = missed < o.opts.DeactivateAfter
			}
			if missed == e.MissedCycles && active == e.IsActive {
				continue
			}

			if err := o.store.UpdatePresence(ctx, e.ExternalID, missed, active); err != nil {
				return storageError("reconcile update", err)
			}
			if e.IsActive && !active {
				report.Deactivated++
				o.log.Info("entry deactivated",
					logger.String("source", b.name),
					logger.String("external_id", e.ExternalID),
					logger.Int("missed_cycles", missed))
			}
		}
	}
	return nil
}

func storageError(op string, err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	return domain.StorageUnavailable(op, err)
}
