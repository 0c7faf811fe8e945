package hub

import (
	"context"
	"sync"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/pkg/buffer"
)

// Subscription is one sink's handle on a channel. Events are read with
// Receive; Unsubscribe is idempotent and safe from any goroutine.
type Subscription struct {
	hub     *Hub
	channel string

	queue  buffer.Buffer[Event]
	notify chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

func newSubscription(h *Hub, channel string, queueSize int) (*Subscription, error) {
	sub := &Subscription{
		hub:     h,
		channel: channel,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	queue, err := buffer.NewCircularBuffer[Event](queueSize,
		buffer.WithOverflowPolicy[Event](buffer.DropOldest),
		buffer.WithDropCallback[Event](func(Event) {
			h.recordDrop(channel)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Hub", "Subscribe", "create sink queue")
	}
	sub.queue = queue

	return sub, nil
}

// Channel returns the channel key this subscription is bound to.
func (s *Subscription) Channel() string {
	return s.channel
}

// deliver enqueues an event without blocking. A full queue drops the
// oldest event; a closed queue reports the sink as dead.
func (s *Subscription) deliver(event Event) error {
	if err := s.queue.Write(event); err != nil {
		return errors.Wrap(errors.ErrSinkClosed, "Hub", "Publish", "enqueue event")
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns the next event in publish order, blocking until one
// arrives, the context ends, or the subscription is closed.
func (s *Subscription) Receive(ctx context.Context) (Event, error) {
	for {
		if event, ok := s.queue.Read(); ok {
			return event, nil
		}

		select {
		case <-s.notify:
		case <-s.done:
			// Drain anything delivered before the close won the race.
			if event, ok := s.queue.Read(); ok {
				return event, nil
			}
			return Event{}, errors.ErrSinkClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Unsubscribe removes the sink from its channel and wakes any blocked
// Receive. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
		s.queue.Close()
	})
}
