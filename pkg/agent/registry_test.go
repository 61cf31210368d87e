package agent_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/runner"
)

type memStore struct {
	mu   sync.Mutex
	defs map[string]*agent.Definition
}

func newMemStore() *memStore { return &memStore{defs: make(map[string]*agent.Definition)} }

func (m *memStore) SaveAgent(_ context.Context, d *agent.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[d.AgentID] = d.Clone()
	return nil
}

func (m *memStore) GetAgent(_ context.Context, id string) (*agent.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (m *memStore) ListAgents(_ context.Context, activeOnly bool, limit, offset int) ([]*agent.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*agent.Definition
	for _, d := range m.defs {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d.Clone())
	}
	return out, nil
}

func (m *memStore) UpdateAgent(_ context.Context, d *agent.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[d.AgentID] = d.Clone()
	return nil
}

func (m *memStore) DeleteAgent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.defs[id]; ok {
		d.IsActive = false
	}
	return nil
}

func (m *memStore) BumpAgentUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.defs[id]; ok {
		d.UsageCount++
	}
	return nil
}

// degradedStore mimics pkg/store.Store in degraded mode: every read
// returns (nil, nil) and every write is a silent no-op, exactly like a
// construction failure would leave it (spec §4.2).
type degradedStore struct{}

func (degradedStore) SaveAgent(context.Context, *agent.Definition) error         { return nil }
func (degradedStore) GetAgent(context.Context, string) (*agent.Definition, error) { return nil, nil }
func (degradedStore) ListAgents(context.Context, bool, int, int) ([]*agent.Definition, error) {
	return nil, nil
}
func (degradedStore) UpdateAgent(context.Context, *agent.Definition) error { return nil }
func (degradedStore) DeleteAgent(context.Context, string) error           { return nil }
func (degradedStore) BumpAgentUsage(context.Context, string) error        { return nil }

type noopTools struct{}

func (noopTools) ResolveForAgent(names []string) ([]agent.ToolBindingSource, []string) {
	if len(names) == 0 {
		return nil, nil
	}
	return nil, names
}

type fixedTools struct{ names map[string]agent.ToolBindingSource }

func (f fixedTools) ResolveForAgent(names []string) ([]agent.ToolBindingSource, []string) {
	var resolved []agent.ToolBindingSource
	var missing []string
	for _, n := range names {
		if b, ok := f.names[n]; ok {
			resolved = append(resolved, b)
		} else {
			missing = append(missing, n)
		}
	}
	return resolved, missing
}

func echoRunners() agent.ConstantRunner {
	return agent.ConstantRunner{Runner: runner.EchoRunner{}}
}

func TestCreateAssignsIDAndPersists(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	def, err := reg.GetDefinition(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "helper", def.Name)
	assert.Equal(t, 1, def.Version)
}

func TestCreateRejectsTeamWithoutSubAgents(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	_, err := reg.Create(context.Background(), &agent.Definition{Name: "team", AgentType: agent.TypeSequential})
	assert.Error(t, err)
}

func TestEnsureInstanceMaterializesLeafAgent(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	inst, err := reg.EnsureInstance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, inst.ID())

	again, err := reg.EnsureInstance(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, inst, again)
}

func TestEnsureInstanceMissingToolFails(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{
		Name: "helper", AgentType: agent.TypeStandard, ToolNames: []string{"ghost"},
	})
	require.NoError(t, err)

	_, err = reg.EnsureInstance(context.Background(), id)
	require.Error(t, err)
	var toolErr *agent.ToolUnavailableError
	assert.ErrorAs(t, err, &toolErr)
}

func TestEnsureInstanceResolvesAgentAsTool(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	subID, err := reg.Create(context.Background(), &agent.Definition{Name: "sub", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	parentID, err := reg.Create(context.Background(), &agent.Definition{
		Name: "parent", AgentType: agent.TypeStandard, ToolNames: []string{"agent:" + subID},
	})
	require.NoError(t, err)

	inst, err := reg.EnsureInstance(context.Background(), parentID)
	require.NoError(t, err)

	view, ok := inst.(runner.AgentView)
	require.True(t, ok)
	require.Len(t, view.Tools(), 1)
	assert.Equal(t, "agent:"+subID, view.Tools()[0].Name)
}

func TestEnsureInstanceDetectsCycle(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	aID, err := reg.Create(context.Background(), &agent.Definition{Name: "a", AgentType: agent.TypeStandard})
	require.NoError(t, err)
	bID, err := reg.Create(context.Background(), &agent.Definition{
		Name: "b", AgentType: agent.TypeStandard, ToolNames: []string{"agent:" + aID},
	})
	require.NoError(t, err)

	require.NoError(t, reg.AttachTools(context.Background(), aID, []string{"agent:" + bID}))

	_, err = reg.EnsureInstance(context.Background(), aID)
	require.Error(t, err)
	var cycleErr *agent.CyclicAgentToolError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestUpdateConfigInvalidatesCachedInstance(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	first, err := reg.EnsureInstance(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, reg.UpdateConfig(context.Background(), id, agent.Patch{}))

	second, err := reg.EnsureInstance(context.Background(), id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestAttachDetachToolsIsIdempotent(t *testing.T) {
	store := newMemStore()
	tools := fixedTools{names: map[string]agent.ToolBindingSource{
		"search": {Name: "search"},
	}}
	reg := agent.NewRegistry(store, tools, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	require.NoError(t, reg.AttachTools(context.Background(), id, []string{"search"}))
	require.NoError(t, reg.AttachTools(context.Background(), id, []string{"search"}))

	def, err := reg.GetDefinition(context.Background(), id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"search"}, def.ToolNames)

	require.NoError(t, reg.DetachTools(context.Background(), id, []string{"search"}))
	require.NoError(t, reg.DetachTools(context.Background(), id, []string{"search"}))

	def, err = reg.GetDefinition(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, def.ToolNames)
}

func TestDeleteSoftDeletesAndInvalidatesInstance(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	_, err = reg.EnsureInstance(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, reg.Delete(context.Background(), id))

	_, err = reg.GetDefinition(context.Background(), id)
	var notFound *agent.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListFallsBackToCacheWhenStoreDegraded(t *testing.T) {
	reg := agent.NewRegistry(degradedStore{}, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	defs, err := reg.List(context.Background(), true, 0, 0)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, id, defs[0].AgentID)
}

func TestListPrefersStoreWhenPopulated(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	defs, err := reg.List(context.Background(), true, 0, 0)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, id, defs[0].AgentID)
}

func TestBumpUsageUpdatesStoreAndCache(t *testing.T) {
	store := newMemStore()
	reg := agent.NewRegistry(store, noopTools{}, echoRunners(), nil)

	id, err := reg.Create(context.Background(), &agent.Definition{Name: "helper", AgentType: agent.TypeStandard})
	require.NoError(t, err)

	require.NoError(t, reg.BumpUsage(context.Background(), id))

	def, err := reg.GetDefinition(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), def.UsageCount)
	assert.False(t, def.LastUsedAt.IsZero())

	persisted, err := store.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted.UsageCount)
}
