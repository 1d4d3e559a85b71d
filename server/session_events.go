package server

import (
	"github.com/rs/zerolog/log"
)

const socketEventBuffer = 8

// eventQueue hands session events from the bus to a socket's writer goroutine
// so a slow client never holds up whoever published the renewal. When the
// client falls behind the oldest queued event is dropped.
type eventQueue struct {
	events chan SessionEvent
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{events: make(chan SessionEvent, size)}
}

// push never blocks
func (q *eventQueue) push(ev SessionEvent) {
	for {
		select {
		case q.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-q.events:
			log.Debug().Str("type", dropped.Type).Msg("session socket behind, dropping oldest event")
		default:
		}
	}
}

// run writes queued events until done is closed
func (q *eventQueue) run(done <-chan struct{}, write func(SessionEvent) error) {
	for {
		select {
		case <-done:
			return
		case ev := <-q.events:
			if err := write(ev); err != nil {
				log.Debug().Err(err).Str("type", ev.Type).Msg("failed to push session event")
			}
		}
	}
}
