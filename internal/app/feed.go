package app

import (
	"sync"

	"counseling-intake/internal/domain"
)

// Feed fans completion events out to subscribers such as the admin dashboard.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan domain.ScoreEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.ScoreEvent]struct{})}
}

// Subscribe returns a channel of completion events.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe() (<-chan domain.ScoreEvent, func()) {
	ch := make(chan domain.ScoreEvent, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber. A full subscriber loses its oldest event.
func (f *Feed) Publish(ev domain.ScoreEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
