package services

import (
	"context"
	"sync"

	"github.com/avatarctic/ticket-cache/internal/core/domain/ticket"
	"github.com/google/uuid"
)

const subscriberBuffer = 8

// OutcomeWaiter is a TicketListener that fans outcomes out to subscribers,
// letting synchronous callers wait for the next resolved request.
type OutcomeWaiter struct {
	mu   sync.Mutex
	next int
	subs map[int]chan ticket.Outcome
}

func NewOutcomeWaiter() *OutcomeWaiter {
	return &OutcomeWaiter{subs: make(map[int]chan ticket.Outcome)}
}

// Subscribe registers for the next outcome. Call the returned func to unsubscribe.
func (w *OutcomeWaiter) Subscribe() (<-chan ticket.Outcome, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.next
	w.next++
	ch := make(chan ticket.Outcome, subscriberBuffer)
	w.subs[id] = ch
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *OutcomeWaiter) OnTicketOutcome(outcome ticket.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- outcome:
		default:
		}
	}
}

// WaitFor blocks until the outcome for request id arrives on ch or ctx is done.
// Outcomes for other requests are skipped.
func WaitFor(ctx context.Context, ch <-chan ticket.Outcome, id uuid.UUID) (ticket.Outcome, error) {
	for {
		select {
		case o := <-ch:
			if o.RequestID == id {
				return o, nil
			}
		case <-ctx.Done():
			return ticket.Outcome{}, ctx.Err()
		}
	}
}
