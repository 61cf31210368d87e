package toolkit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkit/orchestrator/pkg/toolkit"
)

func echoDescriptor(name string) (*toolkit.Descriptor, toolkit.Callable) {
	return &toolkit.Descriptor{Name: name, Description: "echo", Category: "test"},
		toolkit.CallableFunc(func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		})
}

func TestRegisterAndGet(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))

	entry, ok := r.Get("echo")
	require.True(t, ok)
	assert.True(t, entry.Descriptor.IsEnabled())
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))

	desc2, impl2 := echoDescriptor("echo")
	err := r.Register(desc2, impl2)
	assert.Error(t, err)
}

func TestUnregisterIsSoftDelete(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))
	require.NoError(t, r.Unregister("echo"))

	entry, ok := r.Get("echo")
	require.True(t, ok, "soft-deleted tool must remain resolvable by name")
	assert.False(t, entry.Descriptor.IsEnabled())
}

func TestResolveManyReturnsMissingWithoutErroring(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))

	resolved, missing := r.ResolveMany([]string{"echo", "ghost"})
	assert.Len(t, resolved, 1)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestResolveManyExcludesDisabledTools(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))
	require.NoError(t, r.Unregister("echo"))

	resolved, missing := r.ResolveMany([]string{"echo"})
	assert.Empty(t, resolved)
	assert.Equal(t, []string{"echo"}, missing)
}

func TestInvokeBumpsUsageCount(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	require.NoError(t, r.Register(desc, impl))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), "echo", map[string]any{"x": 2})
	require.NoError(t, err)

	entry, _ := r.Get("echo")
	assert.Equal(t, int64(2), entry.Descriptor.UsageCount())
}

func TestListFilterByCategoryAndEnabled(t *testing.T) {
	r := toolkit.NewRegistry()
	desc, impl := echoDescriptor("echo")
	desc.Category = "greeting"
	require.NoError(t, r.Register(desc, impl))

	other, otherImpl := echoDescriptor("other")
	other.Category = "math"
	require.NoError(t, r.Register(other, otherImpl))
	require.NoError(t, r.Unregister("other"))

	got := r.List(toolkit.Filter{Category: "greeting"})
	require.Len(t, got, 1)
	assert.Equal(t, "echo", got[0].Name)

	got = r.List(toolkit.Filter{EnabledOnly: true})
	require.Len(t, got, 1)
	assert.Equal(t, "echo", got[0].Name)
}

func TestBuiltinCalculator(t *testing.T) {
	r := toolkit.NewRegistry()
	require.NoError(t, toolkit.RegisterBuiltins(r))

	result, err := r.Invoke(context.Background(), "custom_calculator", map[string]any{"expr": "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "4", result.(map[string]any)["result"])
}

func TestBuiltinTextAnalyzer(t *testing.T) {
	r := toolkit.NewRegistry()
	require.NoError(t, toolkit.RegisterBuiltins(r))

	result, err := r.Invoke(context.Background(), "text_analyzer", map[string]any{"text": "hello world"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.(map[string]any)["words"])
}
