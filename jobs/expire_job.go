package jobs

import (
	"log"
	"time"

	"github.com/tutorhive/tutorhive/services"
)

var sessions *services.SessionService

// Init hands the job package the lifecycle engine. Sweeps go through the
// regular cancellation transition as the system actor, so refunds and slot
// release behave exactly as a manual cancellation would.
func Init(s *services.SessionService) {
	sessions = s
}

// ExpireStaleSessions cancels scheduled sessions whose date passed a full day
// ago without ever being started.
func ExpireStaleSessions() {
	log.Println("Running job: ExpireStaleSessions...")

	cutoff := time.Now().AddDate(0, 0, -1)
	expired, err := sessions.ExpireStale(cutoff)
	if err != nil {
		log.Printf("Error expiring stale sessions: %v", err)
		return
	}
	if expired == 0 {
		log.Println("No stale sessions found.")
		return
	}
	log.Printf("Canceled %d stale session(s).", expired)
}
