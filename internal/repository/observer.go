package repository

import "time"

// QueryObserver receives one latency sample per executed statement.
type QueryObserver func(operation string, elapsed time.Duration)

func observeQuery(obs QueryObserver, operation string, start time.Time) {
	if obs != nil {
		obs(operation, time.Since(start))
	}
}
