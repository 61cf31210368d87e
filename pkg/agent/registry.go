package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/agentkit/orchestrator/pkg/runner"
)

// RunnerResolver maps a definition's model_id to the Runner that should
// drive it. Callers that only need one backend (tests, orcctl's local
// mode) can use ConstantRunner below.
type RunnerResolver interface {
	Resolve(modelID string) runner.Runner
}

// ConstantRunner always resolves to the same Runner regardless of
// model_id, for setups with a single backend.
type ConstantRunner struct{ Runner runner.Runner }

func (c ConstantRunner) Resolve(string) runner.Runner { return c.Runner }

// Composer hands resolved sub-instances and a composition kind to
// pkg/team and gets back a single Executable. Defined here (rather than
// importing pkg/team) so pkg/team can depend on pkg/agent's exported
// types without a import cycle; pkg/team.Composer satisfies this
// interface structurally.
type Composer interface {
	Compose(kind AgentType, agentID string, subs []Executable) (Executable, error)
}

type cacheEntry struct {
	instance Executable
	version  int
}

// Registry is the Agent Registry (spec C3): definitions write through to
// a DefinitionStore, instances are materialized lazily and cached,
// materialization is single-flight per agent_id, and agent-as-tool
// references are cycle-checked during materialization.
type Registry struct {
	store    DefinitionStore
	tools    ToolResolver
	runners  RunnerResolver
	composer Composer

	mu    sync.RWMutex
	defs  map[string]*Definition // in-memory cache of active/known definitions
	cache map[string]cacheEntry

	flight singleflight.Group

	stopSignals sync.Map // agent_id -> *stopSignal
	newID       func() string
}

type stopSignal struct {
	mu   sync.Mutex
	subs []chan struct{}
}

func (s *stopSignal) subscribe() <-chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *stopSignal) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

// NewRegistry builds a Registry. store, tools and runners must be
// non-nil; composer may be nil if the caller never creates team-shaped
// definitions (Create still accepts one; materializing it then fails
// validation with "no team composer configured").
func NewRegistry(store DefinitionStore, tools ToolResolver, runners RunnerResolver, composer Composer) *Registry {
	return &Registry{
		store:    store,
		tools:    tools,
		runners:  runners,
		composer: composer,
		defs:     make(map[string]*Definition),
		cache:    make(map[string]cacheEntry),
		newID:    func() string { return uuid.NewString() },
	}
}

// Create validates and persists a new definition, assigning its
// agent_id. It does not materialize an instance.
func (r *Registry) Create(ctx context.Context, d *Definition) (string, error) {
	if err := validateDefinition(d); err != nil {
		return "", err
	}
	d = d.Clone()
	d.AgentID = r.newID()
	d.Version = 1
	d.IsActive = true
	d.CreatedAt = time.Now()

	if err := r.store.SaveAgent(ctx, d); err != nil {
		return "", fmt.Errorf("agent: save: %w", err)
	}

	r.mu.Lock()
	r.defs[d.AgentID] = d
	r.mu.Unlock()
	return d.AgentID, nil
}

func validateDefinition(d *Definition) error {
	if d == nil || d.Name == "" {
		return &ValidationError{Reason: "definition must have a non-empty name"}
	}
	if d.AgentType.IsTeam() {
		if len(d.SubAgentIDs) == 0 {
			return &ValidationError{Reason: "team agent_type requires a non-empty sub_agent_ids"}
		}
		if len(d.ToolNames) > 0 {
			return &ValidationError{Reason: "team agents may not expose tool_names directly"}
		}
	} else if len(d.SubAgentIDs) > 0 {
		return &ValidationError{Reason: "non-team agent_type must not set sub_agent_ids"}
	}
	return nil
}

// GetDefinition returns the current definition, preferring the
// in-memory cache and falling back to the store.
func (r *Registry) GetDefinition(ctx context.Context, agentID string) (*Definition, error) {
	r.mu.RLock()
	d, ok := r.defs[agentID]
	r.mu.RUnlock()
	if ok {
		return d.Clone(), nil
	}

	d, err := r.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, &NotFoundError{AgentID: agentID}
	}
	if d == nil || !d.IsActive {
		return nil, &NotFoundError{AgentID: agentID}
	}
	r.mu.Lock()
	r.defs[agentID] = d
	r.mu.Unlock()
	return d.Clone(), nil
}

// List returns known definitions, preferring the store but falling back
// to the in-memory cache when the store yields nothing -- degraded mode
// returns (nil, nil) from ListAgents, and without this fallback an agent
// created while degraded would be invisible to every subsequent List
// call even though Create/GetDefinition both succeeded (spec §8
// "persistence degradation": every path that succeeds with C2 must keep
// succeeding functionally without it).
func (r *Registry) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Definition, error) {
	stored, err := r.store.ListAgents(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("agent: list: %w", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}
	return r.listFromCache(activeOnly, limit, offset), nil
}

// listFromCache mirrors the store's filter/order/paginate semantics
// (active-only filter, created_at ascending, limit<=0 meaning
// unbounded) over the in-memory definition cache.
func (r *Registry) listFromCache(activeOnly bool, limit, offset int) []*Definition {
	r.mu.RLock()
	all := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if activeOnly && !d.IsActive {
			continue
		}
		all = append(all, d.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if limit <= 0 {
		return all
	}
	if offset >= len(all) {
		return []*Definition{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// Update replaces the whole definition (a "full update" per §6
// PUT /agents/{id}), bumping its version so cached instances invalidate.
func (r *Registry) Update(ctx context.Context, agentID string, next *Definition) error {
	cur, err := r.GetDefinition(ctx, agentID)
	if err != nil {
		return err
	}
	next = next.Clone()
	next.AgentID = agentID
	next.Version = cur.Version + 1
	next.CreatedAt = cur.CreatedAt
	if err := validateDefinition(next); err != nil {
		return err
	}
	if err := r.store.UpdateAgent(ctx, next); err != nil {
		return fmt.Errorf("agent: update: %w", err)
	}
	r.mu.Lock()
	r.defs[agentID] = next
	delete(r.cache, agentID)
	r.mu.Unlock()
	return nil
}

// UpdateConfig applies a partial patch to agent_type/planner/tools,
// persists it, and invalidates the cached instance.
func (r *Registry) UpdateConfig(ctx context.Context, agentID string, patch Patch) error {
	cur, err := r.GetDefinition(ctx, agentID)
	if err != nil {
		return err
	}
	next := cur.Clone()
	if patch.AgentType != nil {
		next.AgentType = *patch.AgentType
	}
	if patch.Planner != nil {
		next.Planner = *patch.Planner
	}
	if patch.ToolNames != nil {
		next.ToolNames = append([]string(nil), (*patch.ToolNames)...)
	}
	next.Version = cur.Version + 1
	if err := validateDefinition(next); err != nil {
		return err
	}
	if err := r.store.UpdateAgent(ctx, next); err != nil {
		return fmt.Errorf("agent: update config: %w", err)
	}
	r.mu.Lock()
	r.defs[agentID] = next
	delete(r.cache, agentID)
	r.mu.Unlock()
	return nil
}

// AttachTools is an idempotent set-union on tool_names.
func (r *Registry) AttachTools(ctx context.Context, agentID string, names []string) error {
	cur, err := r.GetDefinition(ctx, agentID)
	if err != nil {
		return err
	}
	set := toSet(cur.ToolNames)
	for _, n := range names {
		set[n] = struct{}{}
	}
	tools := *patchToolNames(set)
	return r.UpdateConfig(ctx, agentID, Patch{ToolNames: &tools})
}

// DetachTools is an idempotent set-difference on tool_names.
func (r *Registry) DetachTools(ctx context.Context, agentID string, names []string) error {
	cur, err := r.GetDefinition(ctx, agentID)
	if err != nil {
		return err
	}
	set := toSet(cur.ToolNames)
	for _, n := range names {
		delete(set, n)
	}
	tools := *patchToolNames(set)
	return r.UpdateConfig(ctx, agentID, Patch{ToolNames: &tools})
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func patchToolNames(set map[string]struct{}) *[]string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return &out
}

// Delete soft-deletes a definition (is_active=false), invalidates its
// cached instance, and leaves conversations untouched.
func (r *Registry) Delete(ctx context.Context, agentID string) error {
	if err := r.store.DeleteAgent(ctx, agentID); err != nil {
		return fmt.Errorf("agent: delete: %w", err)
	}
	r.mu.Lock()
	delete(r.defs, agentID)
	delete(r.cache, agentID)
	r.mu.Unlock()
	return nil
}

// BumpUsage increments an agent's usage_count and refreshes its
// last_used_at (spec §3 bookkeeping, §4.2 "bump_usage(id)"), persisting
// through the store and updating the in-memory cache so a subsequent
// List/GetDefinition reflects the bump even in degraded mode. Callers
// invoke this once per turn, at turn start (Runtime.SendMessage).
func (r *Registry) BumpUsage(ctx context.Context, agentID string) error {
	if err := r.store.BumpAgentUsage(ctx, agentID); err != nil {
		return fmt.Errorf("agent: bump usage: %w", err)
	}
	r.mu.Lock()
	if d, ok := r.defs[agentID]; ok {
		d.UsageCount++
		d.LastUsedAt = time.Now()
	}
	r.mu.Unlock()
	return nil
}

// Stop signals cooperative cancellation to every active streaming
// session driving agentID. Callers that started a turn must have
// obtained their cancel channel via StopSignal before the turn began.
func (r *Registry) Stop(agentID string) {
	if v, ok := r.stopSignals.Load(agentID); ok {
		v.(*stopSignal).fire()
		r.stopSignals.Delete(agentID)
	}
}

// StopSignal returns the cancellation channel a turn on agentID should
// select on; closing it is how Stop propagates.
func (r *Registry) StopSignal(agentID string) <-chan struct{} {
	v, _ := r.stopSignals.LoadOrStore(agentID, &stopSignal{})
	return v.(*stopSignal).subscribe()
}

// EnsureInstance is the sole materialization path (spec §4.3). It is
// single-flight per agent_id: concurrent callers observe one
// construction and share the resulting instance.
func (r *Registry) EnsureInstance(ctx context.Context, agentID string) (Executable, error) {
	if inst, ok := r.cachedInstance(agentID); ok {
		return inst, nil
	}

	v, err, _ := r.flight.Do(agentID, func() (any, error) {
		if inst, ok := r.cachedInstance(agentID); ok {
			return inst, nil
		}
		visiting := map[string]bool{}
		return r.materialize(ctx, agentID, visiting)
	})
	if err != nil {
		return nil, err
	}
	return v.(Executable), nil
}

func (r *Registry) cachedInstance(agentID string) (Executable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[agentID]
	if !ok {
		return nil, false
	}
	d, ok := r.defs[agentID]
	if !ok || d.Version != entry.version {
		return nil, false
	}
	return entry.instance, true
}

func (r *Registry) materialize(ctx context.Context, agentID string, visiting map[string]bool) (Executable, error) {
	if visiting[agentID] {
		cycle := make([]string, 0, len(visiting)+1)
		for k := range visiting {
			cycle = append(cycle, k)
		}
		return nil, &CyclicAgentToolError{AgentID: agentID, Cycle: append(cycle, agentID)}
	}
	visiting[agentID] = true
	defer delete(visiting, agentID)

	d, err := r.GetDefinition(ctx, agentID)
	if err != nil {
		return nil, err
	}

	systemPrompt := buildSystemPrompt(d)

	if d.AgentType.IsTeam() {
		return r.materializeTeam(ctx, d, visiting)
	}

	bindings, missing, err := r.resolveTools(ctx, d.ToolNames, visiting)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &ToolUnavailableError{AgentID: agentID, Missing: missing}
	}

	inst := &Instance{
		id:                agentID,
		definitionVersion: d.Version,
		systemPrompt:      systemPrompt,
		tools:             bindings,
		run:               r.runners.Resolve(d.ModelID),
	}
	r.storeInstance(agentID, d.Version, inst)
	return inst, nil
}

// storeInstance caches a freshly materialized instance.
func (r *Registry) storeInstance(agentID string, version int, inst Executable) {
	r.mu.Lock()
	r.cache[agentID] = cacheEntry{instance: inst, version: version}
	r.mu.Unlock()
}

func (r *Registry) materializeTeam(ctx context.Context, d *Definition, visiting map[string]bool) (Executable, error) {
	if r.composer == nil {
		return nil, &ValidationError{Reason: "no team composer configured"}
	}
	subs := make([]Executable, 0, len(d.SubAgentIDs))
	for _, subID := range d.SubAgentIDs {
		sub, err := r.materialize(ctx, subID, visiting)
		if err != nil {
			return nil, &SubAgentUnavailableError{AgentID: d.AgentID, SubAgent: subID, Cause: err}
		}
		subs = append(subs, sub)
	}
	composite, err := r.composer.Compose(d.AgentType, d.AgentID, subs)
	if err != nil {
		return nil, fmt.Errorf("agent: compose %q: %w", d.AgentID, err)
	}
	r.storeInstance(d.AgentID, d.Version, composite)
	return composite, nil
}

// resolveTools resolves direct tool names via the ToolResolver and
// recursively materializes any agent:<id> references, propagating the
// visiting set so a cycle through an agent-as-tool edge is caught here
// rather than unwinding as a stack overflow.
func (r *Registry) resolveTools(ctx context.Context, names []string, visiting map[string]bool) (bindings []runner.ToolBinding, missing []string, err error) {
	direct := make([]string, 0, len(names))
	agentRefs := make([]string, 0)
	for _, n := range names {
		if refID, ok := agentToolRef(n); ok {
			agentRefs = append(agentRefs, refID)
			continue
		}
		direct = append(direct, n)
	}

	resolved, miss := r.tools.ResolveForAgent(direct)
	missing = append(missing, miss...)
	for _, b := range resolved {
		bindings = append(bindings, runner.ToolBinding{
			Name: b.Name, Description: b.Description, Schema: b.Schema, Invoke: b.Invoke,
		})
	}

	// Agent-as-tool failures (cycles, missing sub-agents) are structural
	// errors, not a soft "missing tool" -- propagate immediately instead
	// of folding into missing, which would misreport them as
	// ToolUnavailable.
	for _, refID := range agentRefs {
		sub, subErr := r.materialize(ctx, refID, visiting)
		if subErr != nil {
			return nil, nil, subErr
		}
		bindings = append(bindings, AsToolBinding(sub))
	}
	return bindings, missing, nil
}

