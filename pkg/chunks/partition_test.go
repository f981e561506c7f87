package chunks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mod(path string, size int64, async bool, consumers ...string) Module {
	return Module{Path: path, Size: size, Consumers: consumers, Async: async}
}

func TestPartition_HighestPriorityGroupClaimsModule(t *testing.T) {
	t.Parallel()

	modules := []Module{
		mod("/node_modules/react/index.js", 30000, false, "main"),
		mod("/node_modules/react-dom/index.js", 120000, false, "main"),
		mod("/node_modules/lodash/lodash.js", 70000, false, "main"),
		mod("/node_modules/recharts/lib/index.js", 90000, false, "main"),
		mod("/node_modules/framer-motion/dist/index.js", 40000, false, "main"),
		mod("/src/utils/format.js", 500, false, "main"),
		mod("/src/index.js", 1200, false, "main"),
	}

	plan, err := Partition(DefaultPolicy(), modules)
	require.NoError(t, err)

	assert.Equal(t, "framework", plan.Modules["/node_modules/react/index.js"])
	assert.Equal(t, "framework", plan.Modules["/node_modules/react-dom/index.js"])
	assert.Equal(t, "vendors", plan.Modules["/node_modules/lodash/lodash.js"])
	assert.Equal(t, "charts", plan.Modules["/node_modules/recharts/lib/index.js"])
	assert.Equal(t, "ui", plan.Modules["/node_modules/framer-motion/dist/index.js"])
	assert.Equal(t, "utils", plan.Modules["/src/utils/format.js"], "enforced groups ignore minSize")
	assert.Equal(t, "main", plan.Modules["/src/index.js"], "unclaimed single-consumer modules stay inlined")
	assert.Empty(t, plan.Dissolved)

	framework, ok := plan.Chunk("framework")
	require.True(t, ok)
	assert.Equal(t, int64(150000), framework.Size)
	assert.Equal(t, "framework", framework.Group)
}

func TestPartition_TieResolvesToFirstDeclaredGroup(t *testing.T) {
	t.Parallel()

	policy := Policy{
		Groups: []Group{
			{Name: "first", Test: `[\\/]shared[\\/]`, Priority: 5},
			{Name: "second", Test: `\.js$`, Priority: 5},
		},
	}
	modules := []Module{mod("/shared/a.js", 10, false, "main")}

	plan, err := Partition(policy, modules)
	require.NoError(t, err)
	assert.Equal(t, "first", plan.Modules["/shared/a.js"])

	// Reversing declaration order flips the winner.
	policy.Groups[0], policy.Groups[1] = policy.Groups[1], policy.Groups[0]
	plan, err = Partition(policy, modules)
	require.NoError(t, err)
	assert.Equal(t, "second", plan.Modules["/shared/a.js"])
}

func TestPartition_DissolvesUndersizedGroups(t *testing.T) {
	t.Parallel()

	modules := []Module{
		mod("/node_modules/react/index.js", 5000, false, "main"),
		mod("/node_modules/lodash/lodash.js", 30000, false, "main"),
	}

	plan, err := Partition(DefaultPolicy(), modules)
	require.NoError(t, err)

	assert.Equal(t, []string{"framework"}, plan.Dissolved)
	assert.Equal(t, "vendors", plan.Modules["/node_modules/react/index.js"], "falls through to the next group")
	vendors, ok := plan.Chunk("vendors")
	require.True(t, ok)
	assert.Equal(t, int64(35000), vendors.Size)
}

func TestPartition_SharedThresholdAndAsyncScope(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	policy.MinSize = 0

	modules := []Module{
		mod("/src/api/client.js", 800, false, "admin", "main"),
		mod("/src/pages/Report.js", 900, true, "Report"),
		mod("/src/widgets/table.js", 700, true, "Report", "Settings"),
		mod("/src/orphan.js", 100, false),
	}

	plan, err := Partition(policy, modules)
	require.NoError(t, err)

	assert.Equal(t, "shared~admin~main", plan.Modules["/src/api/client.js"])
	assert.Equal(t, "Report", plan.Modules["/src/pages/Report.js"], "single consumer stays inlined")
	assert.Equal(t, "common", plan.Modules["/src/widgets/table.js"], "async module shared by two bundles")
	assert.Equal(t, []string{"/src/orphan.js"}, plan.Unassigned)
	_, assigned := plan.Modules["/src/orphan.js"]
	assert.False(t, assigned)
}

func TestPartition_IsDeterministic(t *testing.T) {
	t.Parallel()

	modules := []Module{
		mod("/node_modules/react/index.js", 30000, false, "main", "admin"),
		mod("/node_modules/lodash/lodash.js", 70000, false, "admin"),
		mod("/src/a.js", 10, false, "main", "admin"),
	}

	first, err := Partition(DefaultPolicy(), modules)
	require.NoError(t, err)
	for range 5 {
		again, err := Partition(DefaultPolicy(), modules)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPartition_RejectsInvalidPolicy(t *testing.T) {
	t.Parallel()

	_, err := Partition(Policy{Groups: []Group{{Name: "bad", Test: "("}}}, nil)
	assert.Error(t, err)

	_, err = Partition(Policy{Groups: []Group{{Name: "x", Scope: "sometimes"}}}, nil)
	assert.Error(t, err)

	_, err = Partition(Policy{Groups: []Group{{Test: "a"}}}, nil)
	assert.Error(t, err)
}

func TestPartition_DoesNotMutateCallerPolicy(t *testing.T) {
	t.Parallel()

	policy := Policy{Groups: []Group{{Name: "g", Test: "x"}}}
	_, err := Partition(policy, nil)
	require.NoError(t, err)
	assert.Equal(t, Scope(""), policy.Groups[0].Scope)
}

func TestPartition_GroupNamedLikeBundleStaysSeparate(t *testing.T) {
	t.Parallel()

	policy := Policy{
		Groups: []Group{{Name: "main", Test: `[\\/]node_modules[\\/]`, Priority: 1}},
	}
	modules := []Module{
		mod("/node_modules/react/index.js", 100, false, "main"),
		mod("/src/index.js", 10, false, "main"),
	}

	plan, err := Partition(policy, modules)
	require.NoError(t, err)

	assert.Equal(t, "main", plan.Modules["/node_modules/react/index.js"])
	assert.Equal(t, "main~bundle", plan.Modules["/src/index.js"])

	group, ok := plan.Chunk("main")
	require.True(t, ok)
	assert.Equal(t, []string{"/node_modules/react/index.js"}, group.Modules)
	assert.Equal(t, "main", group.Group)

	inlined, ok := plan.Chunk("main~bundle")
	require.True(t, ok)
	assert.Empty(t, inlined.Group)
	assert.Equal(t, int64(10), inlined.Size)
}
