package client

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrSessionClosed is returned by session calls made after Close.
var ErrSessionClosed = errors.New("session closed")

// eventLoop runs every state mutation of a session on one goroutine.
// Work from other goroutines (dial results, inbound frames, timer fires,
// facade calls) is posted as a task and executed in arrival order.
type eventLoop struct {
	tasks    chan func()
	quit     chan struct{}
	quitOnce sync.Once
	stopped  chan struct{}
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		tasks:   make(chan func(), 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *eventLoop) run() {
	defer close(l.stopped)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

// post schedules fn on the loop. It returns false once the loop is stopped.
// Must not be called from the loop itself with a full buffer, so loop-side
// code runs follow-up work directly instead of posting it.
func (l *eventLoop) post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// call runs fn on the loop and waits for it to finish.
func (l *eventLoop) call(fn func()) error {
	done := make(chan struct{})
	if !l.post(func() { fn(); close(done) }) {
		return ErrSessionClosed
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The loop may have exited between accepting the task and running it.
		select {
		case <-done:
			return nil
		default:
			return ErrSessionClosed
		}
	}
}

// stop ends the loop after the task that is currently running and waits
// for it to exit. Calling it from a loop task deadlocks.
func (l *eventLoop) stop() {
	l.quitOnce.Do(func() { close(l.quit) })
	<-l.stopped
}
