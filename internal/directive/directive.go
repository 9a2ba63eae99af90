// Package directive holds the parsed shape of a transformer class's
// class-level and member-level annotations (spec §3 "Transformer
// descriptor"). Parsing the raw annotation bytes into these structs is the
// "specific annotation-parsing reflection glue" the spec names as an
// out-of-scope external collaborator; this package is the typed target
// that glue populates.
package directive

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/target"
)

// TransformerDescriptor is parsed from the class-level annotation on a
// transformer class.
type TransformerDescriptor struct {
	// TargetTypes are Type-typed target references, subject to remapping
	// (spec §3) — used when the transformer is compiled against the
	// target's unobfuscated identity and ships alongside an obfuscation
	// mapping.
	TargetTypes []classfile.Type
	// TargetNames are raw string target class names, not subject to
	// remapping — used when the transformer already names the target's
	// runtime (obfuscated) identity directly.
	TargetNames []string
	// Priority is carried as extracted; the registry does not read it, and
	// transformers against the same target run in registration order.
	Priority int
}

// AllTargetNames returns every target this descriptor names, combining
// TargetTypes (by internal name) and TargetNames.
func (d TransformerDescriptor) AllTargetNames() []string {
	out := make([]string, 0, len(d.TargetTypes)+len(d.TargetNames))
	for _, t := range d.TargetTypes {
		out = append(out, t.InternalName())
	}
	out = append(out, d.TargetNames...)
	return out
}

// MethodPattern selects target methods by name and, optionally, descriptor
// (an empty Desc matches any overload).
type MethodPattern struct {
	Name string
	Desc string
}

// Matches reports whether m satisfies the pattern.
func (p MethodPattern) Matches(m *classfile.MethodNode) bool {
	if m.Name != p.Name {
		return false
	}
	return p.Desc == "" || p.Desc == m.Desc
}

// MemberDirective is the common metadata every per-member annotation
// (@Inject, @CRedirect, @CModifyConstant, @Shadow, @CASM, ...) carries,
// independent of which handler consumes it (spec §3).
type MemberDirective struct {
	// Method is the target method pattern this directive applies to.
	Method MethodPattern
	// TargetSpec is the raw injection-target descriptor, parsed by
	// internal/target once the handler needs anchors.
	TargetSpec target.Target
	Slice      *target.Slice
	// Cancellable permits the injected callback to short-circuit the
	// target method (only meaningful to Inject).
	Cancellable bool
	// Optional suppresses TargetNotFound for a directive expected to miss
	// on some target variants.
	Optional bool
	// Locals lists @LocalVariable specs in source-declaration order,
	// always the tail of the transformer method's parameter list before
	// an optional trailing Callback (spec §4.3, §9 open question 2).
	Locals []LocalVariableSpec

	// ASMPhase selects which of the two @CASM anchor points (spec §4.2
	// steps 1 and 13) a KindCASM member runs at. Meaningless for every
	// other kind.
	ASMPhase ASMPhase

	// ShadowTargetName overrides the target member name a @Shadow member
	// maps to, when it differs from the transformer-side name. Empty
	// means "same name." Meaningless for every kind but KindShadow.
	ShadowTargetName string
}

// ASMPhase distinguishes the two @CASM insertion points.
type ASMPhase int

const (
	ASMPhaseTop ASMPhase = iota
	ASMPhaseBottom
)

// LocalVariableSpec identifies one @LocalVariable-annotated parameter.
type LocalVariableSpec struct {
	// ByName selects the variable from the target's local-variable table;
	// mutually exclusive with ByIndex (spec §4.3: "index XOR name").
	ByName string
	// ByIndex selects the variable by raw slot number.
	ByIndex int
	HasIndex bool
	// LoadOpcode overrides automatic load-opcode inference when set to a
	// non-zero opcode.
	LoadOpcode classfile.Opcode
	HasLoadOpcode bool
	// Modifiable permits the transformer to write the local back via the
	// update-on-exit Object[] mechanism (spec §4.3).
	Modifiable bool
	// ParamType is the transformer parameter's declared type (used to
	// validate against the resolved local's actual type and to select the
	// box/unbox path).
	ParamType classfile.Type
}

// MemberKind records the ordered-declaration position of a member
// directive in the transformer class, needed for invariant 1 ("directives
// on members run in source-declaration order").
type MemberKind int

const (
	KindInject MemberKind = iota
	KindRedirect
	KindModifyConstant
	KindShadow
	KindOverride
	KindWrapCatch
	KindInline
	KindUpgrade
	KindCASM
)

// Member pairs a MemberDirective with the transformer method/field it
// annotates and its declaration order.
type Member struct {
	Kind        MemberKind
	Method      *classfile.MethodNode // nil for a field directive (@Shadow on a field)
	Field       *classfile.FieldNode  // nil for a method directive
	Directive   MemberDirective
	DeclOrder   int
}
