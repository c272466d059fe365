package merger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PreComponentUpdateEvent is published to every subscriber before a
// component is stopped or reconfigured, per spec.md §4.4 phase 3 and
// SPEC_FULL.md §9's deferral design note: message-passing over a channel,
// not a callback registry.
type PreComponentUpdateEvent struct {
	RequestID     string
	ComponentName string
	Deadline      time.Time
}

// DeferComponentUpdate is a subscriber's response to a PreComponentUpdateEvent.
type DeferComponentUpdate struct {
	RequestID     string
	ComponentName string
	DeferMillis   int64
}

// Broker implements the update-check vote: the merger publishes one event
// per candidate component and waits, bounded by a timeout, for deferral
// responses from every current subscriber (typically the Local IPC
// surface's lifecycle subscription channel, spec.md §6).
type Broker struct {
	mu        sync.Mutex
	subs      map[string]chan PreComponentUpdateEvent
	responses chan DeferComponentUpdate
}

func NewBroker() *Broker {
	return &Broker{
		subs:      map[string]chan PreComponentUpdateEvent{},
		responses: make(chan DeferComponentUpdate, 64),
	}
}

// Subscribe registers subscriberID to receive PreComponentUpdateEvents.
// The returned channel is closed by Unsubscribe.
func (b *Broker) Subscribe(subscriberID string) <-chan PreComponentUpdateEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan PreComponentUpdateEvent, 8)
	b.subs[subscriberID] = ch
	return ch
}

func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[subscriberID]; ok {
		close(ch)
		delete(b.subs, subscriberID)
	}
}

// Defer records a subscriber's deferral response. Safe to call after the
// request's timeout has already elapsed; the late response is simply
// dropped by Publish's select.
func (b *Broker) Defer(resp DeferComponentUpdate) {
	select {
	case b.responses <- resp:
	default:
	}
}

// Publish broadcasts a PreComponentUpdateEvent for componentName and
// collects deferral votes for up to timeout, returning the largest
// requested deferral (zero if none voted or no one deferred). Deferral is
// a cooperative hint, not a veto, per spec.md §4.4 phase 3.
func (b *Broker) Publish(ctx context.Context, componentName string, timeout time.Duration) time.Duration {
	requestID := uuid.NewString()
	event := PreComponentUpdateEvent{
		RequestID:     requestID,
		ComponentName: componentName,
		Deadline:      time.Now().Add(timeout),
	}

	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	b.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var maxDefer time.Duration
	for {
		select {
		case resp := <-b.responses:
			if resp.RequestID != requestID {
				continue
			}
			d := time.Duration(resp.DeferMillis) * time.Millisecond
			if d > maxDefer {
				maxDefer = d
			}
		case <-deadline.C:
			return maxDefer
		case <-ctx.Done():
			return maxDefer
		}
	}
}
