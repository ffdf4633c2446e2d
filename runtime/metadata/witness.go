package metadata

import "go.uber.org/zap"

// WitnessTable is an instantiated conformance: one slot per protocol
// requirement, plus a private storage area below the table's address point.
// Like metadata, tables are append-only cache entries that live for the
// process.
type WitnessTable struct {
	Conformance *ConformanceDescriptor

	// Slots holds the requirement witnesses in declaration order.
	Slots []Witness

	// private is the conformance's scratch area, reached through
	// negative offsets from the table.
	private []Witness
}

// PrivateWordAt returns a slot from the private storage area. Offsets are
// negative, counting down from the table's address point.
func (t *WitnessTable) PrivateWordAt(offsetInWords int) Witness {
	return t.private[len(t.private)+offsetInWords]
}

// SetPrivateWordAt stores into the private storage area.
func (t *WitnessTable) SetPrivateWordAt(offsetInWords int, w Witness) {
	t.private[len(t.private)+offsetInWords] = w
}

// witnessKey uniques instantiated tables. A type-independent conformance
// keys on the descriptor alone.
type witnessKey struct {
	conf *ConformanceDescriptor
	typ  *Metadata
}

// RequestWitnessTable returns the canonical witness table for a conformance
// applied to a concrete type. Conformances whose pattern is already a full
// table are returned directly without touching the cache. Otherwise the
// cache/instantiate/race-resolution shape is the same as for type metadata.
func (r *Runtime) RequestWitnessTable(conf *ConformanceDescriptor, typ *Metadata, args []GenericArg) *WitnessTable {
	if conf.Protocol == nil {
		r.fatalf("conformance has no protocol descriptor")
	}
	if !conf.requiresInstantiation() {
		return conf.Pattern
	}

	key := witnessKey{conf: conf}
	if !conf.TypeIndependent {
		key.typ = typ
	}

	if v, ok := r.witnessTables.Load(key); ok {
		return v.(*WitnessTable)
	}

	table := r.instantiateWitnessTable(conf, typ, args)

	if v, raced := r.witnessTables.LoadOrStore(key, table); raced {
		return v.(*WitnessTable)
	}
	r.witnessCount.Add(1)
	return table
}

// instantiateWitnessTable allocates and fills one table: private words plus
// one slot per requirement, the pattern's fixed prefix first, then backfill
// for every trailing requirement. Backfill matches the separately published
// resilient witness list by requirement identity, falls back to the
// requirement's compiled-in default, and treats the absence of both as a
// binary incompatibility.
func (r *Runtime) instantiateWitnessTable(conf *ConformanceDescriptor, typ *Metadata, args []GenericArg) *WitnessTable {
	reqs := conf.Protocol.Requirements

	prefix := conf.PatternWitnesses
	if prefix > len(reqs) {
		r.fatalf("conformance to %s: pattern provides %d witnesses for %d requirements",
			conf.Protocol.Name, prefix, len(reqs))
	}

	table := &WitnessTable{
		Conformance: conf,
		Slots:       make([]Witness, len(reqs)),
		private:     make([]Witness, conf.PrivateSizeWords),
	}

	if prefix > 0 {
		copy(table.Slots, conf.Pattern.Slots[:prefix])
	}

	for i := prefix; i < len(reqs); i++ {
		table.Slots[i] = r.resolveWitness(conf, reqs[i])
	}

	if conf.Instantiator != nil {
		conf.Instantiator(r, table, typ, args)
	}

	r.logger.Debug("instantiated witness table",
		zap.String("protocol", conf.Protocol.Name),
		zap.Int("requirements", len(reqs)),
		zap.Int("private_words", conf.PrivateSizeWords))
	return table
}

// resolveWitness finds the implementation for one requirement not covered
// by the pattern prefix.
func (r *Runtime) resolveWitness(conf *ConformanceDescriptor, req Requirement) Witness {
	for _, rw := range conf.ResilientWitnesses {
		if rw.Ident == req.Ident {
			return rw.Witness
		}
	}
	if req.Default != nil {
		return req.Default
	}
	r.fatalf("conformance to %s: no witness and no default implementation for requirement %#x",
		conf.Protocol.Name, uintptr(req.Ident))
	return nil
}
