// Package monitoring holds background maintenance loops.
package monitoring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/feedwall-be/internal/services"
	"github.com/isdelr/feedwall-be/internal/storage"
)

// artifactGracePeriod is how old an unreferenced artifact must be before the
// reconciler removes it. It shields uploads racing with their record write.
const artifactGracePeriod = time.Hour

// Reconciler repairs the gaps the lifecycle's best-effort steps can leave
// behind: image artifacts no post references, and user back-references that
// drifted out of sync with the posts table.
type Reconciler struct {
	db       *sql.DB
	store    *storage.LocalStore
	eventSvc services.EventServiceProvider
	schedule cron.Schedule
	done     chan bool
}

// NewReconciler creates a reconciler running at the cadence of the given
// cron expression.
func NewReconciler(db *sql.DB, store *storage.LocalStore, eventSvc services.EventServiceProvider, cronExpr string) (*Reconciler, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile cron expression: %w", err)
	}
	return &Reconciler{
		db:       db,
		store:    store,
		eventSvc: eventSvc,
		schedule: schedule,
		done:     make(chan bool),
	}, nil
}

// Run starts the reconciliation loop. It blocks until Stop is called.
func (r *Reconciler) Run() {
	log.Info().Msg("Starting background reconciler")

	// Run once immediately on start
	r.reconcile()

	for {
		next := r.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-r.done:
			timer.Stop()
			log.Info().Msg("Stopping background reconciler")
			return
		case <-timer.C:
			r.reconcile()
		}
	}
}

// Stop signals the loop to exit.
func (r *Reconciler) Stop() {
	r.done <- true
}

func (r *Reconciler) reconcile() {
	if err := r.repairBackReferences(); err != nil {
		log.Error().Err(err).Msg("Back-reference repair failed")
	}
	if err := r.sweepOrphanArtifacts(); err != nil {
		log.Error().Err(err).Msg("Orphan artifact sweep failed")
	}
}

// repairBackReferences re-derives the user_posts table from the posts table:
// missing rows are inserted, rows for deleted posts are removed. Both
// statements are idempotent.
func (r *Reconciler) repairBackReferences() error {
	res, err := r.db.Exec("INSERT OR IGNORE INTO user_posts (user_id, post_id) SELECT creator, id FROM posts")
	if err != nil {
		return err
	}
	added, _ := res.RowsAffected()

	res, err = r.db.Exec("DELETE FROM user_posts WHERE post_id NOT IN (SELECT id FROM posts)")
	if err != nil {
		return err
	}
	removed, _ := res.RowsAffected()

	if added > 0 || removed > 0 {
		log.Info().Int64("added", added).Int64("removed", removed).Msg("Repaired user back-references")
		r.recordEvent("reconcile.backref", "info",
			fmt.Sprintf("Back-reference repair: %d added, %d removed.", added, removed))
	}
	return nil
}

// sweepOrphanArtifacts removes stored artifacts past the grace period that
// no post references.
func (r *Reconciler) sweepOrphanArtifacts() error {
	refs, err := r.store.Refs()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-artifactGracePeriod)
	for _, ref := range refs {
		if ref.ModTime.After(cutoff) {
			continue
		}

		var count int
		if err := r.db.QueryRow("SELECT COUNT(*) FROM posts WHERE image_ref = ?", ref.Ref).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		if err := r.store.Delete(ref.Ref); err != nil {
			log.Warn().Err(err).Str("ref", ref.Ref).Msg("Failed to delete orphaned artifact")
			continue
		}
		log.Info().Str("ref", ref.Ref).Msg("Deleted orphaned artifact")
		r.recordEvent("reconcile.artifact", "info",
			fmt.Sprintf("Deleted orphaned artifact '%s'.", ref.Ref))
	}
	return nil
}

func (r *Reconciler) recordEvent(eventType, level, message string) {
	if err := r.eventSvc.CreateEvent(eventType, level, message, nil); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record event")
	}
}
