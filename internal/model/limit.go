// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited wraps a Capability so that calls share one request budget.
type Limited struct {
	next    Capability
	limiter *rate.Limiter
}

// NewLimited allows requestsPerMinute calls to next, with a burst of one.
func NewLimited(next Capability, requestsPerMinute int) *Limited {
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

func (l *Limited) Classify(ctx context.Context, text string) (Classification, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Classification{}, err
	}
	return l.next.Classify(ctx, text)
}

func (l *Limited) Draft(ctx context.Context, req DraftRequest) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Draft(ctx, req)
}

func (l *Limited) Score(ctx context.Context, req ScoreRequest) (Assessment, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Assessment{}, err
	}
	return l.next.Score(ctx, req)
}
