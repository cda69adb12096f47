// Package ai submits posting descriptions to Google Gemini under a strict
// request budget and decodes the structured eligibility verdict.
package ai

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces the classifier's requests-per-window ceiling. Tokens
// refill evenly across the window so no rolling window ever holds more than
// the ceiling of completed calls; a caller with no token available suspends
// instead of failing.
//
// One API key means one process-wide budget: construct a single Limiter in
// main and share it across every concurrent run.
type Limiter struct {
	limiter *rate.Limiter
}

func NewLimiter(requestsPerWindow int, window time.Duration) *Limiter {
	if requestsPerWindow <= 0 {
		requestsPerWindow = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	interval := window / time.Duration(requestsPerWindow)
	log.Printf("AI rate limiter: %d requests per %s", requestsPerWindow, window)
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
