package metadata

import "go.uber.org/zap"

// instantiate builds the initial, still-private metadata object for one
// (descriptor, argument-vector) pair. It is documented as required to
// succeed: a malformed pattern or impossible size computation is a build
// inconsistency and terminates the process.
func (r *Runtime) instantiate(desc *TypeDescriptor, args []GenericArg) *Metadata {
	p := desc.Pattern
	if p == nil {
		r.fatalf("type %s has no instantiation pattern", desc.Name)
	}
	if len(args) != desc.GenericParams {
		r.fatalf("type %s instantiated with %d arguments, descriptor declares %d",
			desc.Name, len(args), desc.GenericParams)
	}
	if err := p.validate(); err != nil {
		r.fatalf("type %s has a malformed pattern: %v", desc.Name, err)
	}

	var md *Metadata
	switch {
	case p.Instantiate != nil:
		md = p.Instantiate(r, desc, args)
	case desc.Kind.IsValueType():
		md = r.allocateValueMetadata(desc, args)
	case desc.Kind == KindClass:
		md = r.allocateClassMetadata(desc, args)
	default:
		r.fatalf("type %s has unknown metadata kind %d", desc.Name, desc.Kind)
	}
	if md == nil {
		r.fatalf("instantiation function for %s returned no metadata", desc.Name)
	}

	r.instantiations.Add(1)
	r.logger.Debug("instantiated metadata",
		zap.String("type", desc.Name),
		zap.String("kind", desc.Kind.String()),
		zap.Int("size_bytes", md.TotalSizeBytes()))
	return md
}

// allocateValueMetadata stamps out struct or enum metadata: one header word
// below the address point, the pattern-declared extra data above it. The
// partial patterns are copied at their declared offsets and the argument
// vector lands in the trailing argument slots.
func (r *Runtime) allocateValueMetadata(desc *TypeDescriptor, args []GenericArg) *Metadata {
	p := desc.Pattern

	extra := p.ExtraDataWords
	if min := desc.GenericArgOffsetWords + desc.GenericParams; extra < min {
		r.fatalf("type %s declares %d extra data words, argument slots need %d",
			desc.Name, extra, min)
	}

	md := &Metadata{
		kind:         desc.Kind,
		desc:         desc,
		words:        make([]Word, ValueHeaderWords+extra),
		addressPoint: ValueHeaderWords,
		layout:       p.LayoutWitnesses,
	}
	md.SetWordAt(-1, p.LayoutWitnesses)

	for _, pp := range p.Partials {
		if err := md.copyPartial(pp); err != nil {
			r.fatalf("type %s: %v", desc.Name, err)
		}
	}

	md.installGenericArguments(r, args)
	return md
}

// allocateClassMetadata stamps out class metadata. The superclass chain
// determines the negative/positive word split; any resilient ancestor
// contributes whatever the bounds cache reports for it. Late-bound fields
// (the superclass pointer and virtual-method overrides) are left as
// placeholders for FinalizeClassMetadata, because the ancestor itself may
// not be complete yet.
func (r *Runtime) allocateClassMetadata(desc *TypeDescriptor, args []GenericArg) *Metadata {
	if desc.Class == nil {
		r.fatalf("class %s has no class descriptor", desc.Name)
	}
	p := desc.Pattern

	bounds := r.classBounds(desc)

	// Extra data extends the positive side beyond the formal bounds.
	alloc := bounds
	alloc.PositiveSizeWords += p.ExtraDataWords

	md := &Metadata{
		kind:         KindClass,
		desc:         desc,
		words:        make([]Word, alloc.TotalSizeBytes()/WordSize),
		addressPoint: alloc.NegativeSizeWords,
		layout:       p.LayoutWitnesses,
	}

	// Header: destructor, then layout witnesses, directly below the
	// address point.
	md.SetWordAt(-2, p.Destructor)
	md.SetWordAt(-1, p.LayoutWitnesses)

	for _, pp := range p.Partials {
		if err := md.copyPartial(pp); err != nil {
			r.fatalf("class %s: %v", desc.Name, err)
		}
	}

	md.installGenericArguments(r, args)
	return md
}

// FinalizeClassMetadata is the second phase of class construction. The
// instantiation engine leaves the superclass pointer and the virtual-method
// overrides unset; once the ancestor's metadata is sufficiently complete,
// the class's completion function calls this exactly once to bind them and
// to fire the per-class registration hook.
func (r *Runtime) FinalizeClassMetadata(md *Metadata, super *Metadata) {
	if md.Kind() != KindClass {
		r.fatalf("finalizing non-class metadata for %s", md.desc.Name)
	}
	if md.desc.Class.HasSuperclass && super == nil {
		r.fatalf("finalizing class %s without its superclass metadata", md.desc.Name)
	}
	if !md.finalized.CompareAndSwap(false, true) {
		return
	}

	if super != nil {
		md.superclass.Store(super)
	}

	for _, pp := range md.desc.Pattern.VTableOverrides {
		if err := md.copyPartial(pp); err != nil {
			r.fatalf("class %s vtable override: %v", md.desc.Name, err)
		}
	}

	md.AdvanceState(StateLayoutComplete)

	if hook := r.classHook; hook != nil {
		hook(md)
	}
}
