package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
	"github.com/agentkit/orchestrator/pkg/obslog"
	"github.com/agentkit/orchestrator/pkg/runner"
	"github.com/agentkit/orchestrator/pkg/store"
	"github.com/agentkit/orchestrator/pkg/stream"
	"github.com/agentkit/orchestrator/pkg/team"
	"github.com/agentkit/orchestrator/pkg/toolkit"
)

// Runtime is the process composition root: every cross-package
// collaboration in this repository is reachable only through a Runtime
// value, constructed once at startup by cmd/orcctl (spec §9 "no package
// -level globals; an explicit init/teardown function usable from both
// main() and tests").
type Runtime struct {
	Tools   *toolkit.Registry
	Agents  *agent.Registry
	Convo   *convo.Manager
	Stream  *stream.Handler
	Broker  *stream.Broker
	Store   *store.Store
	Metrics *obslog.Metrics
}

// Config is everything New needs to build a Runtime. Runner may be nil,
// in which case runner.EchoRunner{} is used (a real LLM backend is an
// explicit out-of-scope collaborator per spec §1). Metrics may be nil,
// in which case turn/session metrics are simply not recorded --
// obslog.Metrics is nil-safe on every Record* method.
type Config struct {
	DSN     string
	Runner  runner.Runner
	Metrics *obslog.Metrics
}

// New builds a fully wired Runtime. It never fails outright: a bad or
// unreachable DSN degrades pkg/store (spec §4.2, logged via slog), and
// an unset Runner silently falls back to the echo runner -- neither is
// fatal to process startup.
func New(cfg Config) *Runtime {
	st := store.NewFromDSN(cfg.DSN)

	tools := toolkit.NewRegistry()
	if err := toolkit.RegisterBuiltins(tools); err != nil {
		// Only possible if NewCalculatorDescriptor/NewTextAnalyzerDescriptor's
		// own names collide, which they never do; surfaced via panic so a
		// programming error here is caught immediately rather than masked.
		panic(fmt.Errorf("orchestrator: register builtin tools: %w", err))
	}

	backend := cfg.Runner
	if backend == nil {
		backend = runner.EchoRunner{}
	}

	composer := team.NewComposer()
	agents := agent.NewRegistry(st, newToolResolver(tools), agent.ConstantRunner{Runner: backend}, composer)

	convoMgr := convo.NewManager(st)
	broker := stream.NewBroker()
	streamHandler := stream.NewHandler(convoMgr, broker)

	return &Runtime{
		Tools:   tools,
		Agents:  agents,
		Convo:   convoMgr,
		Stream:  streamHandler,
		Broker:  broker,
		Store:   st,
		Metrics: cfg.Metrics,
	}
}

// StartConversation begins a new session bound to agentID (spec §6
// POST /conversations/start). It validates the agent exists first so a
// typo'd agent_id fails fast rather than creating an orphaned session.
func (rt *Runtime) StartConversation(ctx context.Context, userID, agentID, initialMessage string) (string, error) {
	if _, err := rt.Agents.GetDefinition(ctx, agentID); err != nil {
		return "", classifyAgentErr(err)
	}
	sid, err := rt.Convo.Start(ctx, userID, agentID, initialMessage)
	if err != nil {
		return "", classifyConvoErr(err)
	}
	rt.Metrics.RecordSessionStarted()
	return sid, nil
}

// SendMessage appends the user's message, materializes the agent, and
// drives one turn, publishing every Event to rt.Broker as it happens
// (spec §6 POST /streaming/send). It blocks until the turn finishes;
// callers that want live delivery must have already subscribed via
// rt.Broker.Subscribe(sessionID).
func (rt *Runtime) SendMessage(ctx context.Context, sessionID, text string, cancel <-chan struct{}) error {
	sess, msgs, err := rt.Convo.Get(ctx, sessionID)
	if err != nil {
		return classifyConvoErr(err)
	}

	if _, err := rt.Convo.Append(ctx, sessionID, &convo.Message{
		Role: convo.RoleUser, Type: convo.MessageContent, Content: text,
	}); err != nil {
		return classifyConvoErr(err)
	}

	exec, err := rt.Agents.EnsureInstance(ctx, sess.AgentID)
	if err != nil {
		return classifyAgentErr(err)
	}

	if err := rt.Agents.BumpUsage(ctx, sess.AgentID); err != nil {
		// Never fatal to the turn (spec §4.2 "no persistence failure during
		// a turn is allowed to abort the turn") -- usage bookkeeping is
		// best-effort, same as every other write-through call on this path.
		logBumpUsageFailure(sess.AgentID, err)
	}

	runnerSession := runner.SessionContext{
		SessionID: sessionID,
		AgentID:   sess.AgentID,
		History:   historyFromConvo(msgs),
	}
	start := time.Now()
	rt.Metrics.RecordTurnStart(sess.AgentID)
	rt.Stream.RunTurn(ctx, exec, sessionID, runnerSession, runner.UserTurn{Text: text}, cancel)
	rt.Metrics.RecordTurnEnd(sess.AgentID, time.Since(start))
	return nil
}

// StopAgent cancels every turn currently streaming for agentID (spec §6
// POST /agents/{id}/stop).
func (rt *Runtime) StopAgent(agentID string) {
	rt.Agents.Stop(agentID)
}

// CancelFor returns the cancellation channel a turn on agentID should
// select on -- wired through to Runtime.StopAgent via the Agent
// Registry's cooperative-cancel mechanism.
func (rt *Runtime) CancelFor(agentID string) <-chan struct{} {
	return rt.Agents.StopSignal(agentID)
}

func logBumpUsageFailure(agentID string, err error) {
	slog.Warn("orchestrator: bump agent usage failed, continuing turn", "agent_id", agentID, "error", err)
}

// Close releases the underlying persistence connection, if any.
func (rt *Runtime) Close() error {
	if err := rt.Store.Close(); err != nil {
		return fmt.Errorf("orchestrator: close store: %w", err)
	}
	return nil
}
