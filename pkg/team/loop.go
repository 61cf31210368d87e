package team

import (
	"context"
	"iter"
	"strings"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

// loopTerminationMarker is the sentinel a sub-instance emits in its
// final text to stop loop re-entry (spec §4.4 loop: "A sub-instance may
// emit a termination marker in its output to stop iteration").
const loopTerminationMarker = "[[LOOP_DONE]]"

// loop runs sub-instances in order, re-entering the first after the
// last, until a step's output contains loopTerminationMarker or
// maxIterations full passes have run (spec §4.4 loop).
type loop struct {
	id            string
	subs          []agent.Executable
	maxIterations int
}

func (l *loop) ID() string { return l.id }

func (l *loop) Run(ctx context.Context, session runner.SessionContext, turn runner.UserTurn, cancel <-chan struct{}) iter.Seq2[runner.RawEvent, error] {
	return func(yield func(runner.RawEvent, error) bool) {
		currentTurn := turn
		for iteration := 0; iteration < l.maxIterations; iteration++ {
			for _, sub := range l.subs {
				select {
				case <-cancel:
					return
				case <-ctx.Done():
					return
				default:
				}

				text, errored, stopped := drive(ctx, sub, session, currentTurn, cancel, yield)
				if stopped {
					return
				}
				if errored {
					yield(runner.RawEvent{
						Kind:          runner.KindError,
						OriginAgentID: sub.ID(),
						ErrClass:      runner.ErrClassRunnerFailure,
						ErrMessage:    "loop step " + sub.ID() + " failed",
					}, nil)
					return
				}
				if strings.Contains(text, loopTerminationMarker) {
					clean := strings.ReplaceAll(text, loopTerminationMarker, "")
					yield(runner.RawEvent{Kind: runner.KindFinal, OriginAgentID: sub.ID(), FinalText: strings.TrimSpace(clean)}, nil)
					return
				}
				currentTurn = runner.UserTurn{Text: text, Metadata: turn.Metadata}
			}
		}
		yield(runner.RawEvent{
			Kind:       runner.KindError,
			ErrClass:   runner.ErrClassLoopExhausted,
			ErrMessage: "loop exceeded MAX_LOOP_ITERATIONS without a termination marker",
		}, nil)
	}
}
