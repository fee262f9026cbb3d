package services

import (
	"log"
	"time"

	"claims-api/models"

	"gorm.io/gorm"
)

// DefaultSweepInterval is how often idle drafts are checked for expiry.
const DefaultSweepInterval = time.Hour

// StartDraftSweeper runs the draft expiry sweep in the background until the
// returned stop function is called. The sweep is best-effort cleanup; the
// duplicate guard makes an orphaned draft harmless either way.
func StartDraftSweeper(db *gorm.DB, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				removed, err := models.SweepExpiredDrafts(db, time.Now())
				if err != nil {
					log.Printf("Draft sweep failed: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("Draft sweep removed %d expired drafts", removed)
				}
			}
		}
	}()

	return func() { close(done) }
}
