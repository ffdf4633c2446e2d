package metadata

import "go.uber.org/zap"

// State is a point on the completion lattice. States are totally ordered;
// a metadata's published state only ever advances.
//
// Abstract metadata exists and answers identity queries but its layout is
// not trustworthy. LayoutComplete metadata has correct sizes and field
// offsets. NonTransitiveComplete metadata is complete itself but may have
// incomplete transitive dependencies. Complete is terminal.
type State uint8

const (
	StateAbstract State = iota
	StateLayoutComplete
	StateNonTransitiveComplete
	StateComplete
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAbstract:
		return "abstract"
	case StateLayoutComplete:
		return "layout-complete"
	case StateNonTransitiveComplete:
		return "non-transitive-complete"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a metadata in state s can be used where req is
// required.
func (s State) Satisfies(req State) bool { return s >= req }

// Response pairs a canonical metadata pointer with the state it had reached
// when the request returned. A State below the requested one means the
// caller observed a blocked completion and should retry once the blocking
// metadata has made progress.
type Response struct {
	Metadata *Metadata
	State    State
}

// Dependency names the precondition blocking a completion: Metadata must
// reach Requirement before the completion function is worth retrying.
type Dependency struct {
	Metadata    *Metadata
	Requirement State
}

// completionScratchWords is the size of the resumable scratch area handed
// to completion functions.
const completionScratchWords = 4

// CompletionContext is the scratch blob threaded through every invocation
// of one metadata's completion function. It is zeroed before the first
// invocation, preserved across dependency-blocked resumptions, and
// discarded once completion succeeds. The engine never interprets it.
type CompletionContext struct {
	// Resume lets a completion function skip phases it already finished.
	Resume int

	// Scratch holds whatever intermediate values the function needs to
	// carry across resumptions.
	Scratch [completionScratchWords]Word
}

// CheckMetadataState drives md toward the requested state and reports how
// far it got. The fast path is a single atomic load: if the published state
// already satisfies the request, nothing is invoked. Otherwise the
// completion function runs, at most once per call, under the per-object
// completion lock.
//
// The engine is purely reactive. A response below the requested state is
// not an error and schedules nothing; progress happens when some caller
// needing the blocking metadata completes it and a later caller retries
// this one.
func (r *Runtime) CheckMetadataState(req State, md *Metadata) Response {
	if cur := md.State(); cur.Satisfies(req) {
		return Response{Metadata: md, State: cur}
	}
	return r.completeMetadata(req, md)
}

// completeMetadata is the slow path of CheckMetadataState.
func (r *Runtime) completeMetadata(req State, md *Metadata) Response {
	md.completionMu.Lock()
	defer md.completionMu.Unlock()

	// Re-check under the lock: another caller may have finished the work
	// while this one waited. This is also the completed-flag gate that
	// guarantees a successful completion function is never invoked again.
	cur := md.State()
	if cur.Satisfies(req) || cur == StateComplete {
		return Response{Metadata: md, State: cur}
	}

	fn := md.desc.Pattern.Complete
	if fn == nil {
		// Nothing to run; instantiation already produced the final
		// object.
		md.publishState(StateComplete)
		r.completions.Add(1)
		return Response{Metadata: md, State: StateComplete}
	}

	if md.completionCtx == nil {
		md.completionCtx = &CompletionContext{}
	}

	dep := fn(r, md, md.completionCtx)
	if dep == nil {
		md.completionCtx = nil
		md.publishState(StateComplete)
		r.completions.Add(1)
		return Response{Metadata: md, State: StateComplete}
	}

	r.logger.Debug("metadata completion blocked",
		zap.String("type", md.desc.Name),
		zap.String("blocked_on", dep.Metadata.desc.Name),
		zap.String("requires", dep.Requirement.String()))

	return Response{Metadata: md, State: md.State()}
}
