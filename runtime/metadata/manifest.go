package metadata

import (
	"encoding/json"
	"fmt"
)

// Manifest is a serialized descriptor set. The compiler emits one next to a
// built module so offline tooling can rebuild the static templates and
// instantiate them without loading the program itself.
type Manifest struct {
	Version string     `json:"version"`
	Types   []TypeSpec `json:"types"`
}

// TypeSpec is the serialized form of one type descriptor.
type TypeSpec struct {
	Name                string `json:"name"`
	Kind                string `json:"kind"` // "class", "struct", "enum"
	GenericParams       int    `json:"generic_params,omitempty"`
	ArgOffsetWords      int    `json:"arg_offset_words,omitempty"`
	ExtraDataWords      int    `json:"extra_data_words,omitempty"`
	Superclass          string `json:"superclass,omitempty"`
	ResilientSuperclass bool   `json:"resilient_superclass,omitempty"`
	ImmediateMembers    int    `json:"immediate_members,omitempty"`
	MembersNegative     bool   `json:"members_negative,omitempty"`
}

// ParseManifest decodes a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// parseKind maps the manifest kind strings onto the closed kind set.
func parseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "struct":
		return KindStruct, nil
	case "enum":
		return KindEnum, nil
	default:
		return 0, fmt.Errorf("unknown metadata kind %q", s)
	}
}

// BuildDescriptors turns the manifest into live descriptors. Classes get a
// completion function that requests the superclass metadata and runs the
// second construction phase, so instantiating a manifest type exercises the
// same dependency machinery the generated program would.
func (m *Manifest) BuildDescriptors() (map[string]*TypeDescriptor, error) {
	descs := make(map[string]*TypeDescriptor, len(m.Types))

	for _, spec := range m.Types {
		if spec.Name == "" {
			return nil, fmt.Errorf("manifest type with empty name")
		}
		if _, dup := descs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate manifest type %q", spec.Name)
		}
		kind, err := parseKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", spec.Name, err)
		}

		desc := &TypeDescriptor{
			Name:                  spec.Name,
			Kind:                  kind,
			GenericParams:         spec.GenericParams,
			GenericArgOffsetWords: spec.ArgOffsetWords,
			Pattern: &GenericPattern{
				ExtraDataWords: spec.ExtraDataWords,
			},
		}
		if kind == KindClass {
			desc.Class = &ClassDescriptor{
				ResilientSuperclass:      spec.ResilientSuperclass,
				NumImmediateMembers:      spec.ImmediateMembers,
				ImmediateMembersNegative: spec.MembersNegative,
			}
		}
		descs[spec.Name] = desc
	}

	// Resolve superclass references and attach class completion now that
	// every descriptor exists.
	for _, spec := range m.Types {
		if spec.Superclass == "" {
			if d := descs[spec.Name]; d.Kind == KindClass {
				d.Pattern.Complete = classCompletion(nil)
			}
			continue
		}
		desc := descs[spec.Name]
		if desc.Kind != KindClass {
			return nil, fmt.Errorf("type %q declares a superclass but is a %s", spec.Name, spec.Kind)
		}
		super, ok := descs[spec.Superclass]
		if !ok {
			return nil, fmt.Errorf("type %q names unknown superclass %q", spec.Name, spec.Superclass)
		}
		if super.Kind != KindClass {
			return nil, fmt.Errorf("type %q names non-class superclass %q", spec.Name, spec.Superclass)
		}
		if super.GenericParams > 0 {
			return nil, fmt.Errorf("type %q names generic superclass %q; manifests only describe concrete ancestors", spec.Name, spec.Superclass)
		}
		desc.Class.HasSuperclass = true
		desc.Class.Superclass = super
		desc.Pattern.Complete = classCompletion(super)
	}

	// Value types with arguments need room for their slots; grow the
	// declared extra data if the manifest understated it.
	for _, desc := range descs {
		if desc.Kind.IsValueType() {
			if min := desc.GenericArgOffsetWords + desc.GenericParams; desc.Pattern.ExtraDataWords < min {
				desc.Pattern.ExtraDataWords = min
			}
		}
	}

	return descs, nil
}

// classCompletion is the completion function attached to manifest classes:
// wait for the superclass, then finalize.
func classCompletion(super *TypeDescriptor) CompletionFunc {
	return func(r *Runtime, md *Metadata, ctx *CompletionContext) *Dependency {
		if super == nil {
			r.FinalizeClassMetadata(md, nil)
			return nil
		}
		resp := r.RequestMetadata(StateNonTransitiveComplete, super, nil)
		if !resp.State.Satisfies(StateNonTransitiveComplete) {
			return &Dependency{Metadata: resp.Metadata, Requirement: StateNonTransitiveComplete}
		}
		r.FinalizeClassMetadata(md, resp.Metadata)
		return nil
	}
}
