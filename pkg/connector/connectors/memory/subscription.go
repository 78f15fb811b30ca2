package memory

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

const eventBuffer = 64

// subscription delivers change events on its own goroutine. Producers block
// while the buffer is full so no event is dropped.
type subscription struct {
	store       *store
	objectClass core.ObjectClass
	handler     core.ChangeHandler

	events  chan *core.ChangeEvent
	done    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func newSubscription(s *store, oc core.ObjectClass, handler core.ChangeHandler) *subscription {
	sub := &subscription{
		store:       s,
		objectClass: oc,
		handler:     handler,
		events:      make(chan *core.ChangeEvent, eventBuffer),
		done:        make(chan struct{}),
	}
	s.attach(sub)

	go sub.deliver()
	return sub
}

func (sub *subscription) offer(event *core.ChangeEvent) {
	if sub.stopped.Load() {
		return
	}
	select {
	case sub.events <- event:
	case <-sub.done:
	}
}

func (sub *subscription) deliver() {
	for {
		select {
		case <-sub.done:
			return
		case event := <-sub.events:
			if sub.stopped.Load() {
				return
			}
			if !sub.handler(event) {
				sub.stop()
				return
			}
		}
	}
}

func (sub *subscription) stop() {
	sub.once.Do(func() {
		sub.stopped.Store(true)
		sub.store.detach(sub)
		close(sub.done)
	})
}

// Close stops delivery. It does not wait for a handler call already in
// progress, so handlers may call Close themselves.
func (sub *subscription) Close() error {
	sub.stop()
	return nil
}

func (sub *subscription) IsUnsubscribed() bool {
	return sub.stopped.Load()
}
