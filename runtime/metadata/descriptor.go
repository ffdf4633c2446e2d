package metadata

import (
	"fmt"
	"math/bits"
)

// WordSize is the size in bytes of one metadata word. All layout arithmetic
// in this package is done in words and converted to bytes at the edges.
const WordSize = bits.UintSize / 8

// Word is a single pointer-sized metadata slot. Slots hold opaque values:
// canonical metadata pointers, witness function values, field offsets.
type Word = any

// GenericArg is one element of an instantiation argument vector. Arguments
// are opaque keys: the engine never inspects them beyond identity, so any
// comparable value works. Typically they are *Metadata pointers.
type GenericArg = any

// Kind discriminates the closed set of metadata variants. Checks for "is
// this kind of metadata" are comparisons on this tag, never type assertions
// on the metadata object itself.
type Kind uint8

const (
	KindClass Kind = iota + 1
	KindStruct
	KindEnum
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// IsValueType reports whether the kind uses the value-metadata layout.
func (k Kind) IsValueType() bool {
	return k == KindStruct || k == KindEnum
}

// EntryRef identifies a protocol requirement by a stable entry-point
// identity. Resilient witness matching uses this identity rather than a
// positional index, because the protocol's author may append requirements
// after a conforming module was built.
type EntryRef uintptr

// Witness is a single witness-table slot value, usually a function value.
type Witness = any

// Header word counts before the address point. Value metadata carries one
// header word (the layout witness table); class metadata carries two (the
// destructor and the layout witness table). These counts are part of the
// binary-layout contract with the code generator.
const (
	ValueHeaderWords = 1
	ClassHeaderWords = 2
)

// LayoutWitnessTable describes how values of the type are moved and sized.
// The engine only threads the pointer through to the metadata header; the
// contents are consumed by generated code.
type LayoutWitnessTable struct {
	Size      int
	Stride    int
	AlignMask int
}

// TypeDescriptor is the compiler-emitted identity of a nominal type. It is
// immutable and lives for the process; the engine reads it but never writes
// to it, with the single exception of the resilient bounds cell embedded in
// a ClassDescriptor, which is designed for concurrent publication.
type TypeDescriptor struct {
	// Name is the fully qualified type name, for diagnostics only.
	Name string

	// Kind selects the metadata layout this descriptor instantiates.
	Kind Kind

	// GenericParams is the number of key arguments in the instantiation
	// argument vector. Zero for non-generic types, which still pass
	// through the engine once under the empty vector.
	GenericParams int

	// GenericArgOffsetWords is the positive word offset from the address
	// point at which the generic argument slots begin. Only consulted for
	// value types; class argument slots live at the start of the
	// immediate-members region reported by the bounds computation.
	GenericArgOffsetWords int

	// Pattern drives instantiation and completion. Required.
	Pattern *GenericPattern

	// Class carries the class-only portion of the descriptor. Set exactly
	// when Kind == KindClass.
	Class *ClassDescriptor
}

// ClassDescriptor is the class-specific part of a type descriptor.
type ClassDescriptor struct {
	// HasSuperclass records that the class was compiled with an ancestor.
	// If it is set and Superclass is nil the ancestor was weak-linked and
	// is missing at run time, which is fatal at bounds computation.
	HasSuperclass bool

	// Superclass is the ancestor's descriptor.
	Superclass *TypeDescriptor

	// ResilientSuperclass marks a superclass chain whose layout is not
	// statically known. Bounds for such classes are computed on demand
	// and memoized in the Bounds cell.
	ResilientSuperclass bool

	// NumImmediateMembers is the number of metadata words this class adds
	// beyond its superclass: generic arguments, field offsets, and
	// virtual method slots.
	NumImmediateMembers int

	// ImmediateMembersNegative places the immediate members below the
	// address point instead of above it.
	ImmediateMembersNegative bool

	// Bounds is the lazily published resilient bounds cell. Zero value
	// means "not yet computed".
	Bounds StoredClassBounds
}

// InstantiationFunc builds the initial, private metadata object for one
// argument vector. The engine installs built-in instantiators for both
// metadata layouts; a pattern may override them.
type InstantiationFunc func(r *Runtime, desc *TypeDescriptor, args []GenericArg) *Metadata

// CompletionFunc drives an instantiated metadata toward Complete. A nil
// return means the metadata is complete; a non-nil return names the
// dependency that must resolve before the function is retried. The same
// context is passed on every invocation for one metadata object so the
// function can resume instead of redoing work.
//
// A completion function must never report a dependency on a metadata that
// is already complete. The engine does not detect this; it manifests as an
// unbounded retry loop at the call sites.
type CompletionFunc func(r *Runtime, md *Metadata, ctx *CompletionContext) *Dependency

// PartialPattern is a compiler-emitted copy directive: Data is copied
// verbatim into the instantiated metadata starting at OffsetInWords from
// the address point. Offsets may be negative. The byte ranges of a
// pattern's partials must be pairwise disjoint.
type PartialPattern struct {
	OffsetInWords int
	Data          []Word
}

// GenericPattern is the static template a type is stamped out from.
type GenericPattern struct {
	// Instantiate overrides the engine's built-in instantiator. Optional.
	Instantiate InstantiationFunc

	// Complete advances freshly instantiated metadata to Complete.
	// Optional; when absent, instantiation alone yields Complete.
	Complete CompletionFunc

	// LayoutWitnesses is installed in the metadata header.
	LayoutWitnesses *LayoutWitnessTable

	// Destructor fills the class header's destructor word.
	Destructor Word

	// ExtraDataWords is the caller-declared trailing allocation beyond
	// the fixed layout: for value types everything above the address
	// point, for classes words appended after the positive bounds.
	ExtraDataWords int

	// Partials are copied into place during instantiation.
	Partials []PartialPattern

	// VTableOverrides are applied during class finalization, after the
	// superclass is known, not during instantiation.
	VTableOverrides []PartialPattern
}

// validate checks the compiler-emitted sanity invariants of a pattern.
// Violations indicate a build inconsistency and are fatal at the call site.
func (p *GenericPattern) validate() error {
	type span struct{ lo, hi int }
	spans := make([]span, 0, len(p.Partials))
	for _, pp := range p.Partials {
		if len(pp.Data) == 0 {
			continue
		}
		s := span{pp.OffsetInWords, pp.OffsetInWords + len(pp.Data)}
		for _, prev := range spans {
			if s.lo < prev.hi && prev.lo < s.hi {
				return fmt.Errorf("partial pattern words [%d,%d) overlap [%d,%d)",
					s.lo, s.hi, prev.lo, prev.hi)
			}
		}
		spans = append(spans, s)
	}
	return nil
}

// ProtocolDescriptor lists a protocol's requirements in declaration order.
type ProtocolDescriptor struct {
	Name         string
	Requirements []Requirement
}

// Requirement is one protocol requirement. Default, when non-nil, is the
// compiled-in implementation used if no resilient witness overrides it.
type Requirement struct {
	Ident   EntryRef
	Default Witness
}

// ResilientWitness associates a requirement identity with the witness a
// conforming module published for it.
type ResilientWitness struct {
	Ident   EntryRef
	Witness Witness
}

// WitnessInstantiator patches an instantiated witness table once its fixed
// and resilient slots are filled, typically for conditional-conformance
// arguments.
type WitnessInstantiator func(r *Runtime, table *WitnessTable, conforming *Metadata, args []GenericArg)

// ConformanceDescriptor is the compiler-emitted template for a protocol
// conformance.
type ConformanceDescriptor struct {
	// Protocol names the requirements the instantiated table satisfies.
	Protocol *ProtocolDescriptor

	// Pattern is the static table prefix. When the conformance needs no
	// instantiation it is returned to callers directly as the canonical
	// table.
	Pattern *WitnessTable

	// PatternWitnesses is the number of leading requirement slots the
	// pattern provides.
	PatternWitnesses int

	// PrivateSizeWords is the conformance's private storage, allocated
	// below the table's address point.
	PrivateSizeWords int

	// ResilientWitnesses are matched by requirement identity during
	// backfill.
	ResilientWitnesses []ResilientWitness

	// Instantiator, when non-nil, runs after the table is filled.
	Instantiator WitnessInstantiator

	// TypeIndependent caches one table for the conformance regardless of
	// the conforming type.
	TypeIndependent bool
}

// requiresInstantiation reports whether the pattern can be used directly as
// the canonical witness table.
func (c *ConformanceDescriptor) requiresInstantiation() bool {
	if len(c.ResilientWitnesses) > 0 {
		return true
	}
	if c.Instantiator != nil || c.PrivateSizeWords > 0 {
		return true
	}
	// Without resilient witnesses the pattern must already be a full
	// table.
	return c.Pattern == nil || c.PatternWitnesses < len(c.Protocol.Requirements)
}
