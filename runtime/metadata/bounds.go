package metadata

import "sync/atomic"

// ClassBounds is the computed extent of a class metadata object: how many
// words precede and follow the address point, and where the class's own
// immediate members landed. ImmediateMembersOffset is in bytes from the
// address point and is negative exactly when the members are negative.
type ClassBounds struct {
	NegativeSizeWords      int
	PositiveSizeWords      int
	ImmediateMembersOffset int
}

// rootClassBounds is the minimum extent of any class: the two-word header
// below the address point and nothing above it.
func rootClassBounds() ClassBounds {
	return ClassBounds{NegativeSizeWords: ClassHeaderWords}
}

// adjustForSubclass extends inherited bounds with a subclass's immediate
// members, recording where they begin.
func (b *ClassBounds) adjustForSubclass(membersNegative bool, numMembers int) {
	if membersNegative {
		b.NegativeSizeWords += numMembers
		b.ImmediateMembersOffset = -b.NegativeSizeWords * WordSize
	} else {
		b.ImmediateMembersOffset = b.PositiveSizeWords * WordSize
		b.PositiveSizeWords += numMembers
	}
}

// TotalSizeBytes returns the full allocation size for metadata with these
// bounds.
func (b ClassBounds) TotalSizeBytes() int {
	return (b.NegativeSizeWords + b.PositiveSizeWords) * WordSize
}

// AddressPointBytes returns the byte offset of the address point from the
// start of the allocation.
func (b ClassBounds) AddressPointBytes() int {
	return b.NegativeSizeWords * WordSize
}

// StoredClassBounds is the lazily published bounds cell embedded in a class
// descriptor with a resilient superclass. A dedicated flag marks
// publication: every offset value is legal, including zero, which a class
// whose immediate members are the first positive words computes.
//
// Publication is monotonic. Racing writers are allowed and need no
// compare-and-swap: bounds are a pure function of immutable ancestor
// descriptors, so every writer stores the identical value. The value fields
// are stored first and the flag last with release ordering, so a reader
// that observes the flag also observes the values that preceded it.
type StoredClassBounds struct {
	negativeSizeWords      atomic.Int64
	positiveSizeWords      atomic.Int64
	immediateMembersOffset atomic.Int64
	published              atomic.Bool
}

// TryGet returns the published bounds, or ok == false if nothing has been
// published yet.
func (s *StoredClassBounds) TryGet() (ClassBounds, bool) {
	if !s.published.Load() {
		return ClassBounds{}, false
	}
	return ClassBounds{
		NegativeSizeWords:      int(s.negativeSizeWords.Load()),
		PositiveSizeWords:      int(s.positiveSizeWords.Load()),
		ImmediateMembersOffset: int(s.immediateMembersOffset.Load()),
	}, true
}

// TryGetImmediateMembersOffset returns only the members offset, in words
// from the address point, without loading the size fields.
func (s *StoredClassBounds) TryGetImmediateMembersOffset() (int, bool) {
	if !s.published.Load() {
		return 0, false
	}
	return int(s.immediateMembersOffset.Load()) / WordSize, true
}

// Publish stores the bounds. The flag is stored last; once it is visible
// the cell never changes value again.
func (s *StoredClassBounds) Publish(b ClassBounds) {
	s.negativeSizeWords.Store(int64(b.NegativeSizeWords))
	s.positiveSizeWords.Store(int64(b.PositiveSizeWords))
	s.immediateMembersOffset.Store(int64(b.ImmediateMembersOffset))
	s.published.Store(true)
}

// classBounds returns the metadata bounds for a class, consulting and
// populating the resilient bounds cell when the superclass chain is not
// statically fixed.
func (r *Runtime) classBounds(desc *TypeDescriptor) ClassBounds {
	cd := desc.Class
	if !cd.ResilientSuperclass {
		return r.computeBoundsFromSuperclass(desc)
	}
	if b, ok := cd.Bounds.TryGet(); ok {
		return b
	}
	b := r.computeBoundsFromSuperclass(desc)
	cd.Bounds.Publish(b)
	return b
}

// resilientImmediateMembersOffset returns the word offset of a resilient
// class's immediate members, computing and publishing the bounds if needed.
func (r *Runtime) resilientImmediateMembersOffset(desc *TypeDescriptor) int {
	cd := desc.Class
	if off, ok := cd.Bounds.TryGetImmediateMembersOffset(); ok {
		return off
	}
	b := r.computeBoundsFromSuperclass(desc)
	cd.Bounds.Publish(b)
	return b.ImmediateMembersOffset / WordSize
}

// computeBoundsFromSuperclass derives a class's bounds from its ancestor
// chain and its own immediate members.
func (r *Runtime) computeBoundsFromSuperclass(desc *TypeDescriptor) ClassBounds {
	cd := desc.Class

	var bounds ClassBounds
	if cd.HasSuperclass {
		if cd.Superclass == nil {
			r.fatalf("instantiating class metadata for %s with missing weak-linked ancestor", desc.Name)
		}
		if cd.Superclass.Kind != KindClass || cd.Superclass.Class == nil {
			r.fatalf("superclass of %s is not a class descriptor", desc.Name)
		}
		bounds = r.classBounds(cd.Superclass)
	} else {
		bounds = rootClassBounds()
	}

	bounds.adjustForSubclass(cd.ImmediateMembersNegative, cd.NumImmediateMembers)
	return bounds
}
