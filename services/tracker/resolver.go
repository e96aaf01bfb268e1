package tracker

import (
	"time"

	"cryptotrack-backend/models"
)

// DueSubscribers returns the subscribers whose configured interval has
// elapsed since their last notification. The comparison is inclusive: a
// subscriber exactly at the boundary is due. A subscriber that has never
// been notified is due immediately.
//
// Both timestamps are normalized to UTC before comparison, so stored
// offsets never influence the elapsed time. Evaluation has no side effects;
// resolving the same input twice yields the same due set.
func DueSubscribers(now time.Time, subscribers []models.Subscriber) []models.Subscriber {
	due := make([]models.Subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		if isDue(now, sub) {
			due = append(due, sub)
		}
	}
	return due
}

func isDue(now time.Time, sub models.Subscriber) bool {
	if sub.LastNotifiedAt == nil {
		return true
	}
	elapsed := now.UTC().Sub(sub.LastNotifiedAt.UTC())
	return elapsed >= time.Duration(sub.IntervalMinutes)*time.Minute
}
