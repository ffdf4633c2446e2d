package metadata

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FatalHandler receives unrecoverable layout errors: allocation or size
// computation that is impossible, or a required witness that is missing
// with no default. These indicate a build/link inconsistency that cannot be
// fixed at run time, so the default handler logs and terminates the
// process. A handler must not return.
type FatalHandler func(format string, args ...any)

// ClassRegistrationHook is invoked once per finalized class metadata,
// letting a foreign-object-model interoperability layer keep its own class
// table consistent.
type ClassRegistrationHook func(md *Metadata)

// Runtime is the process-wide metadata engine state: the uniquing caches,
// the witness-table cache, and the argument interner. It is empty at
// construction, grows monotonically, and is torn down only at process exit.
// It is passed explicitly to every entry point rather than living in a
// package global, which keeps tests independent.
type Runtime struct {
	id     uuid.UUID
	logger *zap.Logger

	fatal     FatalHandler
	classHook ClassRegistrationHook

	caches        sync.Map // *TypeDescriptor -> *instantiationCache
	witnessTables sync.Map // witnessKey -> *WitnessTable

	argIDs    sync.Map // GenericArg -> uint64
	nextArgID atomic.Uint64

	instantiations atomic.Int64
	completions    atomic.Int64
	witnessCount   atomic.Int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. The default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithFatalHandler replaces the process-terminating fatal path, mainly so
// tests can intercept it. The handler must not return.
func WithFatalHandler(h FatalHandler) Option {
	return func(r *Runtime) { r.fatal = h }
}

// WithClassRegistrationHook installs the once-per-class callback fired by
// FinalizeClassMetadata.
func WithClassRegistrationHook(h ClassRegistrationHook) Option {
	return func(r *Runtime) { r.classHook = h }
}

// NewRuntime creates an empty engine.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{
		id:     uuid.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the runtime instance identifier reported in statistics.
func (r *Runtime) ID() uuid.UUID { return r.id }

// fatalf routes an unrecoverable layout error to the fatal handler. The
// panic after the handler is unreachable unless a test handler returns in
// violation of the contract.
func (r *Runtime) fatalf(format string, args ...any) {
	if r.fatal != nil {
		r.fatal(format, args...)
	} else {
		r.logger.Fatal(fmt.Sprintf(format, args...))
	}
	panic(fmt.Sprintf("fatal handler returned: "+format, args...))
}

// Stats is a point-in-time snapshot of the engine's growth counters.
type Stats struct {
	RuntimeID               string `json:"runtime_id"`
	TypeCaches              int    `json:"type_caches"`
	CanonicalMetadata       int64  `json:"canonical_metadata"`
	MetadataInstantiations  int64  `json:"metadata_instantiations"`
	DiscardedInstantiations int64  `json:"discarded_instantiations"`
	CompletedMetadata       int64  `json:"completed_metadata"`
	WitnessTables           int64  `json:"witness_tables"`
}

// Stats snapshots the engine counters. DiscardedInstantiations counts race
// losers: objects instantiated but never published.
func (r *Runtime) Stats() Stats {
	var s Stats
	s.RuntimeID = r.id.String()

	var canonical int64
	r.caches.Range(func(_, v any) bool {
		s.TypeCaches++
		canonical += v.(*instantiationCache).canonical.Load()
		return true
	})
	s.CanonicalMetadata = canonical
	s.MetadataInstantiations = r.instantiations.Load()
	s.DiscardedInstantiations = s.MetadataInstantiations - canonical
	s.CompletedMetadata = r.completions.Load()
	s.WitnessTables = r.witnessCount.Load()
	return s
}

// TypeInfo describes one canonical metadata for introspection.
type TypeInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	State         string `json:"state"`
	NegativeWords int    `json:"negative_words"`
	PositiveWords int    `json:"positive_words"`
	SizeBytes     int    `json:"size_bytes"`
	GenericArgs   int    `json:"generic_args"`
}

// Types lists every canonical metadata published so far, sorted by name for
// stable output. The snapshot is weakly consistent: entries published while
// the walk runs may or may not appear, which is fine for a debug surface.
func (r *Runtime) Types() []TypeInfo {
	var infos []TypeInfo
	r.caches.Range(func(k, v any) bool {
		desc := k.(*TypeDescriptor)
		v.(*instantiationCache).entries.Range(func(_, mv any) bool {
			md := mv.(*Metadata)
			infos = append(infos, TypeInfo{
				Name:          desc.Name,
				Kind:          md.Kind().String(),
				State:         md.State().String(),
				NegativeWords: md.NegativeSizeWords(),
				PositiveWords: md.PositiveSizeWords(),
				SizeBytes:     md.TotalSizeBytes(),
				GenericArgs:   desc.GenericParams,
			})
			return true
		})
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
