package metadata

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// abstractAnchor instantiates a metadata and leaves it Abstract: requesting
// only StateAbstract satisfies the fast path without ever invoking the
// completion function, which is how tests obtain a genuinely incomplete
// dependency target.
func abstractAnchor(t *testing.T, r *Runtime, name string) (*TypeDescriptor, *Metadata) {
	t.Helper()
	desc := valueDesc(name, 0)
	desc.Pattern.Complete = func(rt *Runtime, md *Metadata, ctx *CompletionContext) *Dependency {
		return nil
	}
	resp := r.RequestMetadata(StateAbstract, desc, nil)
	require.Equal(t, StateAbstract, resp.State)
	return desc, resp.Metadata
}

func TestCompletionIdempotence(t *testing.T) {
	r := newTestRuntime(t)
	_, anchor := abstractAnchor(t, r, "Anchor")

	var calls atomic.Int64
	desc := valueDesc("Gated", 0)
	desc.Pattern.Complete = func(rt *Runtime, md *Metadata, ctx *CompletionContext) *Dependency {
		calls.Add(1)
		if anchor.State() != StateComplete {
			return &Dependency{Metadata: anchor, Requirement: StateComplete}
		}
		return nil
	}

	// Several callers retry while the dependency is unresolved; each
	// attempt invokes the function once and observes a blocked response.
	for i := 0; i < 3; i++ {
		resp := r.RequestMetadata(StateComplete, desc, nil)
		assert.False(t, resp.State.Satisfies(StateComplete))
	}
	blockedCalls := calls.Load()
	assert.Equal(t, int64(3), blockedCalls)

	// Resolve the dependency, then drive completion from many callers.
	r.CheckMetadataState(StateComplete, anchor)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := r.RequestMetadata(StateComplete, desc, nil)
			assert.Equal(t, StateComplete, resp.State)
		}()
	}
	wg.Wait()

	// Exactly one successful invocation after the K blocked ones; the
	// counter never advances again.
	assert.Equal(t, blockedCalls+1, calls.Load())
	r.CheckMetadataState(StateComplete, r.RequestMetadata(StateComplete, desc, nil).Metadata)
	assert.Equal(t, blockedCalls+1, calls.Load())
}

func TestCompletionContextResumes(t *testing.T) {
	r := newTestRuntime(t)
	_, anchor := abstractAnchor(t, r, "Anchor")

	var sawScratch Word
	desc := valueDesc("Resumable", 0)
	desc.Pattern.Complete = func(rt *Runtime, md *Metadata, ctx *CompletionContext) *Dependency {
		switch ctx.Resume {
		case 0:
			// First invocation sees a zeroed context.
			require.Nil(t, ctx.Scratch[0])
			ctx.Resume = 1
			ctx.Scratch[0] = "phase-one-result"
			return &Dependency{Metadata: anchor, Requirement: StateComplete}
		default:
			sawScratch = ctx.Scratch[0]
			return nil
		}
	}

	resp := r.RequestMetadata(StateComplete, desc, nil)
	require.NotEqual(t, StateComplete, resp.State)

	r.CheckMetadataState(StateComplete, anchor)

	resp = r.CheckMetadataState(StateComplete, resp.Metadata)
	assert.Equal(t, StateComplete, resp.State)
	assert.Equal(t, Word("phase-one-result"), sawScratch)
}

func TestNoCompletionFunctionIsImmediatelyComplete(t *testing.T) {
	r := newTestRuntime(t)
	desc := valueDesc("Plain", 0)
	resp := r.RequestMetadata(StateComplete, desc, nil)
	assert.Equal(t, StateComplete, resp.State)
	assert.Equal(t, int64(1), r.Stats().CompletedMetadata)

	// The hit path publishes nothing and counts nothing.
	r.RequestMetadata(StateComplete, desc, nil)
	assert.Equal(t, int64(1), r.Stats().CompletedMetadata)
}

func TestIntermediateStateUnblocksWeakerRequests(t *testing.T) {
	r := newTestRuntime(t)
	_, anchor := abstractAnchor(t, r, "Anchor")

	var calls atomic.Int64
	desc := valueDesc("Layered", 0)
	desc.Pattern.Complete = func(rt *Runtime, md *Metadata, ctx *CompletionContext) *Dependency {
		calls.Add(1)
		md.AdvanceState(StateLayoutComplete)
		if anchor.State() != StateComplete {
			return &Dependency{Metadata: anchor, Requirement: StateComplete}
		}
		return nil
	}

	resp := r.RequestMetadata(StateComplete, desc, nil)
	assert.Equal(t, StateLayoutComplete, resp.State)
	require.Equal(t, int64(1), calls.Load())

	// A caller needing only layout takes the fast path now; the blocked
	// completion function is not re-invoked.
	resp = r.RequestMetadata(StateLayoutComplete, desc, nil)
	assert.Equal(t, StateLayoutComplete, resp.State)
	assert.Equal(t, int64(1), calls.Load())

	r.CheckMetadataState(StateComplete, anchor)
	resp = r.RequestMetadata(StateComplete, desc, nil)
	assert.Equal(t, StateComplete, resp.State)
}

func TestAdvanceStateIsCappedAndMonotonic(t *testing.T) {
	r := newTestRuntime(t)
	_, md := abstractAnchor(t, r, "Capped")

	// Completion is the engine's to publish; AdvanceState saturates just
	// below it.
	md.AdvanceState(StateComplete)
	assert.Equal(t, StateNonTransitiveComplete, md.State())

	// Never regresses.
	md.AdvanceState(StateLayoutComplete)
	assert.Equal(t, StateNonTransitiveComplete, md.State())
}

func TestStateOrdering(t *testing.T) {
	assert.True(t, StateComplete.Satisfies(StateAbstract))
	assert.True(t, StateComplete.Satisfies(StateComplete))
	assert.True(t, StateLayoutComplete.Satisfies(StateAbstract))
	assert.False(t, StateAbstract.Satisfies(StateLayoutComplete))
	assert.False(t, StateNonTransitiveComplete.Satisfies(StateComplete))
}

// TestRecursiveCompletion exercises a completion function re-entering the
// engine: a class chain where each completion requests its ancestor.
func TestRecursiveCompletion(t *testing.T) {
	r := newTestRuntime(t)
	root, a, b := testClassChain(true)
	wireClassCompletions(root, a, b)

	resp := r.RequestMetadata(StateComplete, b, nil)
	require.Equal(t, StateComplete, resp.State)

	// The whole chain completed transitively.
	for _, desc := range []*TypeDescriptor{root, a, b} {
		got := r.RequestMetadata(StateComplete, desc, nil)
		assert.Equal(t, StateComplete, got.State, desc.Name)
	}
}
