package review

import "sync"

// Feed fans transitions out to subscribers. A subscriber that is not keeping up
// misses transitions rather than blocking the workflow.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Transition]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: map[chan Transition]struct{}{}}
}

// Publish is a workflow observer.
func (f *Feed) Publish(t Transition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// Subscribe returns a buffered channel of transitions and the function that
// detaches and closes it.
func (f *Feed) Subscribe(buffer int) (<-chan Transition, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Transition, buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}
