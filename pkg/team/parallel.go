package team

import (
	"context"
	"iter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// parallelGracePeriod bounds how long the composite waits for children
// to cooperatively terminate after the enclosing session is cancelled
// (spec §4.4 "the composite awaits their cooperative termination with a
// bounded grace period").
const parallelGracePeriod = 5 * time.Second

// parallel runs every sub-instance concurrently on the same input,
// interleaving their events (each tagged with its origin) as they
// arrive, and completes only once every child has terminated -- success
// or failure (spec §4.4 parallel). A child's error event does not stop
// its siblings; the group's shared context only cancels when the
// caller's ctx itself cancels. Grounded on the teacher's
// errgroup+resultsChan/doneChan fan-in in
// pkg/agent/workflowagent/parallel.go.
type parallel struct {
	id   string
	subs []agent.Executable
}

func (p *parallel) ID() string { return p.id }

type taggedResult struct {
	event runner.RawEvent
	err   error
}

func (p *parallel) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return func(yield func(runner.RawEvent, error) bool) {
		group, groupCtx := errgroup.WithContext(ctx)
		done := make(chan struct{})
		results := make(chan taggedResult)

		for _, sub := range p.subs {
			sub := sub
			group.Go(func() error {
				runParallelChild(groupCtx, sub, session, turn, cancel, results, done)
				return nil
			})
		}

		go func() {
			_ = group.Wait()
			close(results)
		}()
		defer close(done)

		var grace <-chan time.Time
		for {
			select {
			case res, ok := <-results:
				if !ok {
					return
				}
				if !yield(res.event, res.err) {
					return
				}
			case <-ctx.Done():
				if grace == nil {
					timer := time.NewTimer(parallelGracePeriod)
					defer timer.Stop()
					grace = timer.C
				}
			case <-grace:
				return
			}
		}
	}
}

// runParallelChild drives one sub-instance and forwards its events onto
// results, tagged with its origin. It never returns an error to the
// errgroup -- a child's failure is surfaced as a tagged error event,
// not as a reason to cancel its siblings.
func runParallelChild(ctx context.Context, sub agent.Executable, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}, results chan<- taggedResult, done <-chan struct{}) {
	seq := sub.Run(ctx, session, turn, cancel)
	seq(func(e runner.RawEvent, err error) bool {
		if err != nil {
			select {
			case <-done:
			case results <- taggedResult{err: err}:
			}
			return false
		}
		select {
		case <-done:
			return false
		case results <- taggedResult{event: tagOrigin(e, sub.ID())}:
			return true
		}
	})
}
