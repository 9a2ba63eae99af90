// Package registry implements the process-wide registries spec §3
// describes: the target-class -> transformer-class-node map, the raw
// transformer map, the registered-transformer-name set, and the ordered
// annotation-handler list with its TOP/PRE/POST/BOTTOM insertion anchors.
// Every registry is serialized by a single coarse lock (spec §5); reads
// happen on every class load, mutations only at startup or on hotswap.
package registry

import (
	"sync"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/handler"
)

// TransformerEntry pairs a registered transformer class's (immutable, per
// spec invariant 3) AST with the parsed descriptor and member directives
// the out-of-scope annotation-parsing glue produced for it.
type TransformerEntry struct {
	Node       *classfile.ClassNode
	Descriptor directive.TransformerDescriptor
	Members    []*directive.Member
}

// RawTransformer is the glossary's "raw transformer": a bytecode rewrite
// that bypasses the directive/annotation-handler machinery entirely,
// running directly over the parsed target class node.
type RawTransformer struct {
	Name  string
	Apply func(target *classfile.ClassNode) error
}

// Anchor is one of the four insertion points spec §3 names for the
// annotation-handler registry. TOP and BOTTOM wrap the fixed thirteen-step
// chain (spec §4.2) outside its own CASM(TOP)/CASM(BOTTOM) steps; PRE and
// POST sit just inside those two CASM steps, around the chain's
// directive-consuming core (InnerClassOpener..MemberCopy) — the reading
// that makes literal sense of "cannot be reordered after registration
// except via the anchors" given the core chain's steps are themselves
// already fixed.
type Anchor int

const (
	AnchorTop Anchor = iota
	AnchorPre
	AnchorPost
	AnchorBottom
)

// CustomInjectionTarget is a host-registered resolver for a symbolic
// injection-target kind beyond the eleven spec §3 enumerates
// (`injectionTargets: map<string, InjectionTargetImpl>`). The built-in
// kinds never consult this map; it exists purely as an extension point a
// host can add new symbolic anchors through.
type CustomInjectionTarget func(method *classfile.MethodNode, arg string) ([]classfile.Instruction, error)

// Registry is the process-wide, lock-serialized state spec §3 describes.
type Registry struct {
	mu sync.RWMutex

	transformers    map[string][]*TransformerEntry
	rawTransformers map[string][]RawTransformer
	registeredNames map[string]bool

	customHandlers map[Anchor][]handler.Handler
	customTargets  map[string]CustomInjectionTarget
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		transformers:    make(map[string][]*TransformerEntry),
		rawTransformers: make(map[string][]RawTransformer),
		registeredNames: make(map[string]bool),
		customHandlers:  make(map[Anchor][]handler.Handler),
		customTargets:   make(map[string]CustomInjectionTarget),
	}
}

// RegisterTransformer records node as a transformer against targetName.
// Registering the same transformer class name against the same target a
// second time replaces the first occurrence in place, preserving its
// original position (spec invariant 2: "insertion replaces same-named
// transformer, preserves order").
func (r *Registry) RegisterTransformer(targetName string, node *classfile.ClassNode, desc directive.TransformerDescriptor, members []*directive.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &TransformerEntry{Node: node, Descriptor: desc, Members: members}
	list := r.transformers[targetName]
	for i, existing := range list {
		if existing.Node.Name == node.Name {
			list[i] = entry
			r.registeredNames[node.Name] = true
			return
		}
	}
	r.transformers[targetName] = append(list, entry)
	r.registeredNames[node.Name] = true
}

// RebindMembers returns a copy of e.Members with every Method/Field pointer
// repointed from e.Node onto clone, a same-shape clone of e.Node (e.g. the
// per-pass output of remap.RewriteClassNode). The handler chain must never
// run against e.Members directly: several handlers (Shadow, Inject,
// Override, Upgrade) mutate the method/field a member points at, and
// e.Node is the registry's own immutable copy (spec invariant 3). clone's
// Methods/Fields are assumed to be in the same order as e.Node's, which
// holds for any clone produced by ClassNode.Clone.
func (e *TransformerEntry) RebindMembers(clone *classfile.ClassNode) []*directive.Member {
	methods := make(map[*classfile.MethodNode]*classfile.MethodNode, len(e.Node.Methods))
	for i, orig := range e.Node.Methods {
		methods[orig] = clone.Methods[i]
	}
	fields := make(map[*classfile.FieldNode]*classfile.FieldNode, len(e.Node.Fields))
	for i, orig := range e.Node.Fields {
		fields[orig] = clone.Fields[i]
	}

	out := make([]*directive.Member, len(e.Members))
	for i, m := range e.Members {
		rebound := *m
		if m.Method != nil {
			rebound.Method = methods[m.Method]
		}
		if m.Field != nil {
			rebound.Field = fields[m.Field]
		}
		out[i] = &rebound
	}
	return out
}

// RegisterTransformerNode registers node against every target named in
// desc (spec §3's TargetTypes/TargetNames), used by the hotswap and
// transformer-class-load paths where a single node's own descriptor
// determines its targets rather than a caller-supplied single name.
func (r *Registry) RegisterTransformerNode(node *classfile.ClassNode, desc directive.TransformerDescriptor, members []*directive.Member) {
	for _, target := range desc.AllTargetNames() {
		r.RegisterTransformer(target, node, desc, members)
	}
}

// RegisterRawTransformer appends a raw transformer against targetName.
func (r *Registry) RegisterRawTransformer(targetName string, rt RawTransformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rawTransformers[targetName] = append(r.rawTransformers[targetName], rt)
}

// TransformersFor returns the ordered transformer entries registered
// against targetName, a defensive copy of the internal slice.
func (r *Registry) TransformersFor(targetName string) []*TransformerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*TransformerEntry(nil), r.transformers[targetName]...)
}

// RawTransformersFor returns the ordered raw transformers registered
// against targetName.
func (r *Registry) RawTransformersFor(targetName string) []RawTransformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RawTransformer(nil), r.rawTransformers[targetName]...)
}

// IsRegisteredTransformer reports whether internalName names a class that
// has itself been registered as a transformer (used to decide whether a
// load event for that class should be answered with a stub body, spec §6
// "Hotswap").
func (r *Registry) IsRegisteredTransformer(internalName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registeredNames[internalName]
}

// IsTransformed reports whether targetName has at least one transformer or
// raw transformer registered against it (spec invariant 4: "A target
// class is retransformed only if at least one transformer or raw
// transformer is registered against its name").
func (r *Registry) IsTransformed(targetName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transformers[targetName]) > 0 || len(r.rawTransformers[targetName]) > 0
}

// TransformedTargetNames returns the union of every key across both the
// transformer and raw-transformer maps (spec §3 `transformedTargetNames`).
func (r *Registry) TransformedTargetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.transformers)+len(r.rawTransformers))
	for name := range r.transformers {
		seen[name] = true
	}
	for name := range r.rawTransformers {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

// AddAnnotationHandler registers a custom handler at one of the four
// insertion anchors. Custom handlers run in registration order relative
// to each other within the same anchor.
func (r *Registry) AddAnnotationHandler(anchor Anchor, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customHandlers[anchor] = append(r.customHandlers[anchor], h)
}

// BuildHandlerChain assembles the full, fixed-order handler chain for one
// transformation pass: any AnchorTop handlers, then CASM(TOP), then any
// AnchorPre handlers, then the eleven directive-consuming core handlers in
// their spec §4.2 order, then any AnchorPost handlers, then CASM(BOTTOM),
// then any AnchorBottom handlers.
func (r *Registry) BuildHandlerChain(casmHooks map[string]handler.ASMRawHook) []handler.Handler {
	core := handler.OrderedHandlers(casmHooks)

	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make([]handler.Handler, 0, len(core)+4)
	chain = append(chain, r.customHandlers[AnchorTop]...)
	chain = append(chain, core[0]) // CASM(TOP)
	chain = append(chain, r.customHandlers[AnchorPre]...)
	chain = append(chain, core[1:len(core)-1]...) // InnerClassOpener..MemberCopy
	chain = append(chain, r.customHandlers[AnchorPost]...)
	chain = append(chain, core[len(core)-1]) // CASM(BOTTOM)
	chain = append(chain, r.customHandlers[AnchorBottom]...)
	return chain
}

// RegisterInjectionTarget adds a custom symbolic injection-target kind.
func (r *Registry) RegisterInjectionTarget(name string, resolver CustomInjectionTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customTargets[name] = resolver
}

// InjectionTarget looks up a custom injection-target resolver by name.
func (r *Registry) InjectionTarget(name string) (CustomInjectionTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.customTargets[name]
	return resolver, ok
}
