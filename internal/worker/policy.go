package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"medbook/pkg/model"
)

// Decision is the outcome a Policy picked for a work item.
type Decision struct {
	Status  model.Status
	Message string
}

// Policy decides whether a booking can be honored. Implementations must
// return when ctx is done.
type Policy interface {
	Decide(ctx context.Context, item model.WorkItem) (Decision, error)
}

// RandomPolicy stands in for a real availability check: it waits a random
// delay and confirms with probability SuccessRate.
type RandomPolicy struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	successRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomPolicy(minDelay, maxDelay time.Duration, successRate float64) *RandomPolicy {
	return newRandomPolicy(minDelay, maxDelay, successRate, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newRandomPolicy(minDelay, maxDelay time.Duration, successRate float64, rnd *rand.Rand) *RandomPolicy {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RandomPolicy{
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		successRate: successRate,
		rnd:         rnd,
	}
}

func (p *RandomPolicy) Decide(ctx context.Context, _ model.WorkItem) (Decision, error) {
	delay, confirm := p.draw()

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case <-t.C:
	}

	if confirm {
		return Decision{Status: model.StatusConfirmed, Message: model.MessageConfirmed}, nil
	}
	return Decision{Status: model.StatusRejected, Message: model.MessageRejected}, nil
}

// draw takes both random values under one lock; *rand.Rand is not safe for
// concurrent use.
func (p *RandomPolicy) draw() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.minDelay
	if span := p.maxDelay - p.minDelay; span > 0 {
		delay += time.Duration(p.rnd.Int63n(int64(span) + 1))
	}
	return delay, p.rnd.Float64() < p.successRate
}
