package stream

import (
	"iter"

	"github.com/agentkit/orchestrator/pkg/runner"
)

// iterPull adapts a push-based iter.Seq2 (the runner's Run result) into
// a pull-based next()/stop() pair, run on its own goroutine. The
// Handler's turn loop needs to interleave "pull the next event" with
// "check for cancellation/deadline between events", which a plain
// range-over-func can't express -- range commits to draining (or
// panicking via a non-local return) the whole sequence.
//
// next and stop are not safe for concurrent use; callers must finish
// pulling (next returns ok=false, or they decide to bail early) before
// calling stop, and must not call next again afterward.
func iterPull(seq iter.Seq2[runner.RawEvent, error]) (next func() (runner.RawEvent, error, bool), stop func()) {
	type item struct {
		evt runner.RawEvent
		err error
	}
	items := make(chan item)
	done := make(chan struct{})

	go func() {
		defer close(items)
		seq(func(evt runner.RawEvent, err error) bool {
			select {
			case items <- item{evt, err}:
				return true
			case <-done:
				return false
			}
		})
	}()

	var stopped bool
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		for range items {
			// drain so the producer goroutine's blocked send (if any)
			// unblocks and it can observe done and exit.
		}
	}

	next = func() (runner.RawEvent, error, bool) {
		it, ok := <-items
		if !ok {
			return runner.RawEvent{}, nil, false
		}
		return it.evt, it.err, true
	}

	return next, stop
}
