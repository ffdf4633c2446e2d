package metadata

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Metadata is the runtime descriptor of one concrete type. It is allocated
// privately by the instantiating thread, published at most once through the
// uniquing cache, and never freed. After publication it is immutable except
// for the completion state and the late-bound class fields, all of which
// advance monotonically.
//
// The word storage models the ABI image: one contiguous allocation split
// into a negative range (the header, below the address point) and a
// positive range (kind-specific fields, immediate members, generic argument
// slots, extra data). All offsets are words from the address point;
// bytes = words × WordSize.
type Metadata struct {
	kind Kind
	desc *TypeDescriptor

	words        []Word
	addressPoint int

	layout *LayoutWitnessTable

	// state is the published completion state. Reads on the fast path use
	// only this load; the release store in publishState orders every
	// write a completion function made before it.
	state atomic.Uint32

	// superclass is late-bound by class finalization.
	superclass atomic.Pointer[Metadata]

	// finalized guards the once-per-class registration hook.
	finalized atomic.Bool

	// completionMu serializes completion attempts so the completion
	// function never runs concurrently with itself and the context is
	// handed back intact.
	completionMu  sync.Mutex
	completionCtx *CompletionContext
}

// Kind returns the metadata's variant tag.
func (m *Metadata) Kind() Kind { return m.kind }

// Descriptor returns the static descriptor this metadata was instantiated
// from.
func (m *Metadata) Descriptor() *TypeDescriptor { return m.desc }

// LayoutWitnesses returns the header's layout witness table.
func (m *Metadata) LayoutWitnesses() *LayoutWitnessTable { return m.layout }

// State returns the currently published completion state.
func (m *Metadata) State() State { return State(m.state.Load()) }

// NegativeSizeWords returns the number of words preceding the address
// point.
func (m *Metadata) NegativeSizeWords() int { return m.addressPoint }

// PositiveSizeWords returns the number of words at and above the address
// point.
func (m *Metadata) PositiveSizeWords() int { return len(m.words) - m.addressPoint }

// TotalSizeBytes returns the size of the whole allocation.
func (m *Metadata) TotalSizeBytes() int { return len(m.words) * WordSize }

// WordAt returns the word at the given offset from the address point.
// Negative offsets address the header range.
func (m *Metadata) WordAt(offsetInWords int) Word {
	return m.words[m.addressPoint+offsetInWords]
}

// SetWordAt stores a word at the given offset from the address point. It is
// only legal before publication or on slots documented as lazily completed.
func (m *Metadata) SetWordAt(offsetInWords int, w Word) {
	m.words[m.addressPoint+offsetInWords] = w
}

// Superclass returns the late-bound superclass metadata, or nil before
// class finalization (and always for non-class metadata).
func (m *Metadata) Superclass() *Metadata { return m.superclass.Load() }

// genericArgOffsetWords returns the word offset of the generic argument
// slots from the address point.
func (m *Metadata) genericArgOffsetWords(r *Runtime) int {
	if m.kind == KindClass {
		if m.desc.Class.ResilientSuperclass {
			return r.resilientImmediateMembersOffset(m.desc)
		}
		return r.classBounds(m.desc).ImmediateMembersOffset / WordSize
	}
	return m.desc.GenericArgOffsetWords
}

// GenericArgs returns the metadata's argument slots. The returned slice
// aliases the slot storage and must be treated as read-only.
func (m *Metadata) GenericArgs(r *Runtime) []GenericArg {
	n := m.desc.GenericParams
	if n == 0 {
		return nil
	}
	base := m.addressPoint + m.genericArgOffsetWords(r)
	return m.words[base : base+n]
}

// installGenericArguments copies the argument vector into the metadata's
// trailing argument slots.
func (m *Metadata) installGenericArguments(r *Runtime, args []GenericArg) {
	base := m.addressPoint + m.genericArgOffsetWords(r)
	for i, a := range args {
		m.words[base+i] = a
	}
}

// copyPartial applies one partial-pattern copy. An empty pattern is a
// zero-length copy, not an error.
func (m *Metadata) copyPartial(p PartialPattern) error {
	lo := m.addressPoint + p.OffsetInWords
	hi := lo + len(p.Data)
	if lo < 0 || hi > len(m.words) {
		return fmt.Errorf("partial pattern words [%d,%d) outside metadata of %d words (address point %d)",
			p.OffsetInWords, p.OffsetInWords+len(p.Data), len(m.words), m.addressPoint)
	}
	copy(m.words[lo:hi], p.Data)
	return nil
}

// publishState advances the published completion state. The store is the
// release point for everything written while the state was being earned;
// regressions are a bug in the engine, so they panic rather than corrupt
// the monotonicity contract.
func (m *Metadata) publishState(s State) {
	for {
		cur := m.state.Load()
		if State(cur) == s {
			return
		}
		if State(cur) > s {
			panic(fmt.Sprintf("metadata %s: state regression %s -> %s",
				m.desc.Name, State(cur), s))
		}
		if m.state.CompareAndSwap(cur, uint32(s)) {
			return
		}
	}
}

// AdvanceState lets a completion function publish an intermediate state it
// has earned before blocking on a dependency, so fast-path callers that
// need less than Complete stop retrying. Requests to advance to Complete
// are capped: only the engine publishes Complete, after the completion
// function returns no dependency.
func (m *Metadata) AdvanceState(s State) {
	if s >= StateComplete {
		s = StateNonTransitiveComplete
	}
	if State(m.state.Load()) >= s {
		return
	}
	m.publishState(s)
}
