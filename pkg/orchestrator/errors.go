// Package orchestrator is the composition root (spec §9): it wires
// pkg/toolkit, pkg/agent, pkg/team, pkg/convo, pkg/runner, pkg/stream
// and pkg/store into one Runtime via explicit constructor injection --
// no package-level globals, no init() magic -- grounded on the
// teacher's pkg/runtime/local.go + pkg/runtime/factories.go wiring
// style, trimmed to this core's scope (no LLM-provider factory map;
// the Runner is injected directly by the caller).
package orchestrator

import (
	"errors"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/stream"
)

// Public error kinds (spec §7), errors.Is-comparable regardless of
// which component actually produced the underlying failure.
var (
	ErrNotFound            = errors.New("orchestrator: not found")
	ErrValidation          = errors.New("orchestrator: validation failed")
	ErrToolUnavailable     = errors.New("orchestrator: tool unavailable")
	ErrCyclicAgentTool     = errors.New("orchestrator: cyclic agent-as-tool reference")
	ErrSubAgentUnavailable = errors.New("orchestrator: sub-agent unavailable")
	ErrPersistenceDegraded = errors.New("orchestrator: persistence degraded")
	ErrLoopExhausted       = errors.New("orchestrator: loop exhausted")
	ErrCancelled           = errors.New("orchestrator: cancelled")
	ErrTimeout             = errors.New("orchestrator: timed out")
	ErrRunnerInternal      = errors.New("orchestrator: runner internal error")
)

// wrappedError pairs one of the sentinels above with the concrete
// underlying error so callers can both errors.Is against the stable
// kind and inspect/log the original message.
type wrappedError struct {
	kind error
	err  error
}

func (e *wrappedError) Error() string { return e.kind.Error() + ": " + e.err.Error() }
func (e *wrappedError) Unwrap() []error { return []error{e.kind, e.err} }

func wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrappedError{kind: kind, err: err}
}

// classifyAgentErr maps pkg/agent's typed errors to the public
// sentinels. Any error type not recognized here (e.g. a plain
// fmt.Errorf-wrapped store failure) is left unmapped -- callers that
// care fall back to errors.Is against the concrete pkg/agent type.
func classifyAgentErr(err error) error {
	if err == nil {
		return nil
	}
	var notFound *agent.NotFoundError
	var toolUnavail *agent.ToolUnavailableError
	var cyclic *agent.CyclicAgentToolError
	var subUnavail *agent.SubAgentUnavailableError
	var validation *agent.ValidationError
	switch {
	case errors.As(err, &notFound):
		return wrap(ErrNotFound, err)
	case errors.As(err, &toolUnavail):
		return wrap(ErrToolUnavailable, err)
	case errors.As(err, &cyclic):
		return wrap(ErrCyclicAgentTool, err)
	case errors.As(err, &subUnavail):
		return wrap(ErrSubAgentUnavailable, err)
	case errors.As(err, &validation):
		return wrap(ErrValidation, err)
	default:
		return err
	}
}

// classifyConvoErr maps pkg/convo's typed errors to the public
// sentinels.
func classifyConvoErr(err error) error {
	if err == nil {
		return nil
	}
	var notFound *convo.NotFoundError
	if errors.As(err, &notFound) {
		return wrap(ErrNotFound, err)
	}
	return err
}

// ClassifyError maps any error produced by a Runtime collaborator
// (pkg/agent or pkg/convo) to the public sentinels above. pkg/httpapi
// uses this to turn a handler error into an HTTP status without
// needing to know which component underneath actually failed.
func ClassifyError(err error) error {
	return classifyConvoErr(classifyAgentErr(err))
}

// ErrKindToSentinel maps the stream package's wire-level error kind
// strings (as surfaced on a TypeError Event's Metadata["err_kind"])
// back to the same public sentinels, for callers that need to turn a
// terminal streaming error into an HTTP status code. Nothing in this
// module calls it.
func ErrKindToSentinel(kind string) error {
	switch kind {
	case stream.ErrKindNotFound:
		return ErrNotFound
	case stream.ErrKindValidation:
		return ErrValidation
	case stream.ErrKindToolUnavailable:
		return ErrToolUnavailable
	case stream.ErrKindCyclicAgentTool:
		return ErrCyclicAgentTool
	case stream.ErrKindSubAgentUnavailable:
		return ErrSubAgentUnavailable
	case stream.ErrKindLoopExhausted:
		return ErrLoopExhausted
	case stream.ErrKindCancelled:
		return ErrCancelled
	case stream.ErrKindTimeout:
		return ErrTimeout
	default:
		return ErrRunnerInternal
	}
}
