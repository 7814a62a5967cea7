package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Printf("world %s running at %d Hz", w.id, w.tune.TickRateHz)

	// Callers blocked in Do see ErrStopped once the loop exits.
	defer w.Stop()

	var pending []doReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.observers[req.SessionID] = req.TickOut
		case id := <-w.observerLeave:
			delete(w.observers, id)
		case r := <-w.inbox:
			pending = append(pending, r)
		case <-ticker.C:
			for _, r := range pending {
				r.fn(w)
				close(r.done)
			}
			pending = pending[:0]
			w.StepOnce()
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Do runs fn on the world goroutine at the next tick boundary and waits for it
// to finish. fn may read and mutate the world freely; it must not call Do.
func (w *World) Do(ctx context.Context, fn func(*World)) error {
	r := doReq{fn: fn, done: make(chan struct{})}
	select {
	case w.inbox <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stop:
		return ErrStopped
	}
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
