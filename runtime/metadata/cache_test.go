package metadata

import (
	"sync"
	"testing"
)

// TestUniquingUnderContention is the linearizable-uniquing property: all
// concurrent requesters of the same (template, arguments) pair observe an
// identical pointer.
func TestUniquingUnderContention(t *testing.T) {
	r := newTestRuntime(t)
	box := valueDesc("Box", 1)

	const workers = 32
	results := make([]*Metadata, workers)

	var start sync.WaitGroup
	start.Add(1)
	var done sync.WaitGroup
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = r.RequestMetadata(StateComplete, box, []GenericArg{"Int"}).Metadata
		}(i)
	}
	start.Done()
	done.Wait()

	first := results[0]
	if first == nil {
		t.Fatal("request returned nil metadata")
	}
	for i, md := range results {
		if md != first {
			t.Errorf("worker %d observed a different pointer", i)
		}
	}

	s := r.Stats()
	if s.CanonicalMetadata != 1 {
		t.Errorf("canonical entries: got %d, want 1", s.CanonicalMetadata)
	}
	// Race losers are allowed, but every one of them must have been
	// discarded unpublished.
	if s.MetadataInstantiations < 1 {
		t.Errorf("instantiations: got %d, want >= 1", s.MetadataInstantiations)
	}
	if s.DiscardedInstantiations != s.MetadataInstantiations-1 {
		t.Errorf("discards: got %d, want %d", s.DiscardedInstantiations, s.MetadataInstantiations-1)
	}
}

// TestEmptyArgumentIdentity covers the non-generic-but-lazy case: two call
// sites using the empty argument vector share one canonical pointer.
func TestEmptyArgumentIdentity(t *testing.T) {
	r := newTestRuntime(t)
	desc := valueDesc("Lazy", 0)

	first := r.RequestMetadata(StateComplete, desc, nil).Metadata
	second := r.RequestMetadata(StateComplete, desc, []GenericArg{}).Metadata

	if first != second {
		t.Error("nil and empty argument vectors produced different canonical pointers")
	}
}

func TestDistinctArgumentsDistinctMetadata(t *testing.T) {
	r := newTestRuntime(t)
	box := valueDesc("Box", 1)

	intBox := r.RequestMetadata(StateComplete, box, []GenericArg{"Int"}).Metadata
	strBox := r.RequestMetadata(StateComplete, box, []GenericArg{"String"}).Metadata
	intBoxAgain := r.RequestMetadata(StateComplete, box, []GenericArg{"Int"}).Metadata

	if intBox == strBox {
		t.Error("different argument vectors shared a canonical pointer")
	}
	if intBox != intBoxAgain {
		t.Error("repeated request for the same arguments returned a new pointer")
	}
}

// TestArgumentVectorOrderMatters: the key is the ordered vector, not the
// argument set.
func TestArgumentVectorOrderMatters(t *testing.T) {
	r := newTestRuntime(t)
	pair := valueDesc("Pair", 2)

	ab := r.RequestMetadata(StateComplete, pair, []GenericArg{"A", "B"}).Metadata
	ba := r.RequestMetadata(StateComplete, pair, []GenericArg{"B", "A"}).Metadata

	if ab == ba {
		t.Error("reordered argument vectors shared a canonical pointer")
	}
}

// TestMetadataAsArgument: canonical metadata pointers are themselves valid
// argument keys, which is how nested instantiations like Box<Box<Int>> are
// uniqued.
func TestMetadataAsArgument(t *testing.T) {
	r := newTestRuntime(t)
	box := valueDesc("Box", 1)

	inner := r.RequestMetadata(StateComplete, box, []GenericArg{"Int"}).Metadata
	outer1 := r.RequestMetadata(StateComplete, box, []GenericArg{inner}).Metadata
	outer2 := r.RequestMetadata(StateComplete, box, []GenericArg{inner}).Metadata

	if outer1 != outer2 {
		t.Error("metadata-keyed vectors were not uniqued")
	}
	if outer1 == inner {
		t.Error("nested instantiation collided with its element type")
	}
	if got := outer1.GenericArgs(r)[0]; got != GenericArg(inner) {
		t.Error("argument slot does not hold the inner metadata")
	}
}

func TestCachedEntryStatePersists(t *testing.T) {
	r := newTestRuntime(t)
	desc := valueDesc("Once", 0)

	if resp := r.RequestMetadata(StateComplete, desc, nil); resp.State != StateComplete {
		t.Fatalf("first request: got state %s, want complete", resp.State)
	}

	// The hit path must not re-run anything: state is already terminal.
	resp := r.RequestMetadata(StateAbstract, desc, nil)
	if resp.State != StateComplete {
		t.Errorf("cache hit: got state %s, want complete", resp.State)
	}
}
