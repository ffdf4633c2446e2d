// Package metadata implements the lazy type-metadata instantiation and
// completion engine of the lattice runtime.
//
// The compiler emits static, immutable templates (TypeDescriptor,
// GenericPattern, ConformanceDescriptor). The first time a concrete type or
// conformance is needed, the engine stamps a runtime descriptor out of its
// template, uniques it so every caller shares one canonical pointer, and
// drives it through a non-blocking completion protocol until it reaches the
// state the caller asked for. Completion of one type may depend on other
// types, including ancestors whose layout is only resolved at run time
// (resilient classes); a blocked completion is an ordinary return value, not
// a suspension, and forward progress comes from callers retrying.
//
// All state lives on an explicit Runtime object. Its caches are process-wide,
// append-only, and never shrink: a published metadata pointer is valid for
// the lifetime of the process.
package metadata
