package events

import (
	"context"
	"sync"
	"time"

	"camstack.org/internal/camera"
)

// StatusEvent announces one camera lifecycle transition to live listeners
// (the dashboard SSE stream).
type StatusEvent struct {
	CameraID string        `json:"cameraId"`
	Name     string        `json:"name"`
	Status   camera.Status `json:"status"`
	At       time.Time     `json:"at"`
}

// Bus fan-outs status events to all active subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan StatusEvent
	next int
}

// NewBus initialises an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan StatusEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan StatusEvent {
	ch := make(chan StatusEvent, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (b *Bus) Publish(evt StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
