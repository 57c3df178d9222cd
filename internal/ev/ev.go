// Package ev provides the event queue used by the client runtime.
// Both decoded events and outgoing requests are queued as closures,
// so whichever goroutine drains the queue becomes the single place
// where protocol work happens.
package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

type Queue = cq.BulkQueue[func() error, *Events]

func NewQueue() *Queue {
	return cq.New(func(v []func() error) *Events {
		return &Events{
			events: v,
		}
	})
}

// Events is one batch pulled off a Queue.
type Events struct {
	events []func() error
}

// Flush runs every event in the batch, collecting errors instead of
// stopping at the first one.
func (q *Events) Flush() error {
	return errors.Join(Flush(q)...)
}

func Flush(queue *Events) (errs []error) {
	for _, ev := range queue.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	queue.events = nil
	return errs
}
