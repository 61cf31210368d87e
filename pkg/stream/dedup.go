package stream

import (
	"strings"

	"github.com/agentkit/orchestrator/pkg/runner"
)

// finalSuffix implements spec §4.7's final-echo dedup rule: given the
// accumulator acc built from partial_text deltas so far and the final's
// full text, it returns (suppressed, suffix). If the final simply echoes
// the already-streamed text (len(text) > 1000 and the trimmed strings
// are equal), the caller must suppress it outright. Otherwise the
// non-overlapping suffix -- text after removing the longest common
// prefix with acc -- is what should still be emitted as a content event.
func finalSuffix(acc, text string) (suppressed bool, suffix string) {
	if len(text) > 1000 && strings.TrimSpace(text) == strings.TrimSpace(acc) {
		return true, ""
	}
	prefixRunes := commonPrefixLen(acc, text)
	runes := []rune(text)
	return false, string(runes[prefixRunes:])
}

func commonPrefixLen(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := len(ar)
	if len(br) < n {
		n = len(br)
	}
	i := 0
	for i < n && ar[i] == br[i] {
		i++
	}
	return i
}

// errKindFromClass maps a runner.RawEvent's ErrClass to the public error
// kind vocabulary (spec §7). Unrecognized classes map to runner_internal
// rather than panicking or leaking an internal string.
func errKindFromClass(class string) string {
	switch class {
	case runner.ErrClassAgentNotFound:
		return ErrKindNotFound
	case runner.ErrClassToolUnavailable:
		return ErrKindToolUnavailable
	case runner.ErrClassCyclicAgentTool:
		return ErrKindCyclicAgentTool
	case runner.ErrClassSubAgentUnavailable:
		return ErrKindSubAgentUnavailable
	case runner.ErrClassLoopExhausted:
		return ErrKindLoopExhausted
	case runner.ErrClassRunnerFailure:
		return ErrKindRunnerInternal
	default:
		return ErrKindRunnerInternal
	}
}
