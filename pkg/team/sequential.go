package team

import (
	"context"
	"iter"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// sequential runs sub-instances in order, feeding step k's output text
// into step k+1's input. A step's failure terminates the pipeline with
// a final error event; later steps do not run (spec §4.4 sequential).
type sequential struct {
	id   string
	subs []agent.Executable
}

func (s *sequential) ID() string { return s.id }

func (s *sequential) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return func(yield func(runner.RawEvent, error) bool) {
		currentTurn := turn
		for _, sub := range s.subs {
			text, errored, stopped := drive(ctx, sub, session, currentTurn, cancel, yield)
			if stopped {
				return
			}
			if errored {
				yield(runner.RawEvent{
					Kind:          runner.KindError,
					OriginAgentID: sub.ID(),
					ErrClass:      runner.ErrClassRunnerFailure,
					ErrMessage:    "sequential step " + sub.ID() + " failed; remaining steps skipped",
				}, nil)
				return
			}
			currentTurn = runner.UserTurn{Text: text, Metadata: turn.Metadata}
		}
	}
}
