package schedule

import (
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Start runs job on a standard 5-field cron expression
// (minute hour day-of-month month day-of-week) in a background
// goroutine. Examples: "0 * * * *" (hourly), "30 3 * * *" (daily 3:30).
// The job's return value is logged after each run. An empty schedule
// disables the job; an invalid one disables it with a warning.
func Start(name, schedule string, loc *time.Location, job func() string) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Printf("%s disabled (no schedule set)", name)
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid %s schedule '%s': %v — job disabled", name, schedule, err)
		return
	}
	log.Printf("%s scheduled (cron: %s)", name, schedule)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next %s at %s (in %s)", name, next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary := job()
			log.Printf("%s complete: %s", name, summary)
		}
	}()
}
