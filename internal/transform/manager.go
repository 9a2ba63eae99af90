// Package transform wires the registry, directive/target resolution, the
// fixed handler chain, and the external host/codec/extractor collaborators
// into the single operation a host actually drives: Manager.Transform,
// the class-load-time `transform(name, bytes) -> bytes?` contract spec §6
// describes, plus Manager.Hotswap for the IDE push side channel.
package transform

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/quillbyte/classmorph/internal/cache"
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/handler"
	"github.com/quillbyte/classmorph/internal/host"
	"github.com/quillbyte/classmorph/internal/logutil"
	"github.com/quillbyte/classmorph/internal/registry"
	"github.com/quillbyte/classmorph/internal/remap"
)

// Options configures a Manager. Every field beyond Codec and Directives is
// optional; sensible defaults are substituted in New.
type Options struct {
	// Codec parses and re-serializes class bytes (spec §1's external
	// bytecode reader/writer). Required.
	Codec classfile.Codec
	// Directives extracts a transformer class's descriptor and member
	// directives from its annotations (spec §1's annotation-parsing
	// glue). Required.
	Directives directive.Extractor

	ClassProvider   host.ClassProvider
	Instrumentation host.InstrumentationHost
	Logger          host.Logger
	FailStrategy    host.FailStrategy
	CASMHooks       map[string]handler.ASMRawHook
	// Remapper is populated externally (mapping-file parsing is out of
	// scope, spec §1); nil means identity, no remapping applied.
	Remapper *remap.Remapper
	// ResultCache, if set, skips re-running the handler chain when the
	// same input bytes were transformed before. Keyed purely by the input
	// bytes' content hash, so Hotswap invalidates a target's entries
	// before replaying Transform against it — otherwise the unchanged
	// original bytes would hash to the pre-hotswap output.
	ResultCache *cache.Cache
}

// Manager is the transformation core a host embeds.
type Manager struct {
	opts Options
	reg  *registry.Registry

	mu            sync.Mutex
	inFlight      map[string]bool
	originalBytes map[string][]byte
}

// New constructs a Manager. Codec and Directives must be non-nil.
func New(opts Options) (*Manager, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("classmorph: transform.New requires a Codec")
	}
	if opts.Directives == nil {
		return nil, fmt.Errorf("classmorph: transform.New requires a Directives extractor")
	}
	if opts.Logger == nil {
		opts.Logger = logutil.NewConsoleLogger()
	}
	if opts.Remapper == nil {
		opts.Remapper = remap.New()
	}
	return &Manager{
		opts:          opts,
		reg:           registry.New(),
		inFlight:      make(map[string]bool),
		originalBytes: make(map[string][]byte),
	}, nil
}

// Registry exposes the underlying registry, e.g. for a host that wants to
// add custom annotation handlers at an anchor (spec §3).
func (m *Manager) Registry() *registry.Registry { return m.reg }

// RegisterTransformer resolves pattern (a bare dot-form class name,
// "pkg.*" for direct children, or "pkg.**" for every descendant) against
// the configured ClassProvider and registers every matching transformer
// class (spec §6 "Wildcard registration"). A bare name that is not itself
// a transformer class is an error; wildcard expansions silently skip
// non-transformer classes they happen to match.
func (m *Manager) RegisterTransformer(pattern string) error {
	switch {
	case strings.HasSuffix(pattern, "**"):
		return m.registerWildcard(strings.TrimSuffix(pattern, "**"), true)
	case strings.HasSuffix(pattern, "*"):
		return m.registerWildcard(strings.TrimSuffix(pattern, "*"), false)
	default:
		return m.registerBare(pattern)
	}
}

// RegisterRawTransformer registers a raw bytecode rewrite against
// targetName (dot- or slash-form), bypassing the directive machinery.
func (m *Manager) RegisterRawTransformer(targetName string, rt registry.RawTransformer) {
	m.reg.RegisterRawTransformer(anyToInternal(targetName), rt)
}

func (m *Manager) registerBare(dotName string) error {
	internal := dotToInternal(strings.TrimSuffix(dotName, "."))
	raw, err := m.fetchClass(internal)
	if err != nil {
		return err
	}
	node, desc, members, err := m.parseTransformer(raw, dotName)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("classmorph: %s has no class-level transformer annotation", dotName)
	}
	m.reg.RegisterTransformerNode(node, *desc, members)
	return nil
}

func (m *Manager) registerWildcard(dotPrefix string, recursive bool) error {
	if m.opts.ClassProvider == nil {
		return fmt.Errorf("classmorph: wildcard registration %s.* requires a ClassProvider", dotPrefix)
	}
	prefix := dotToInternal(strings.TrimSuffix(dotPrefix, "."))
	for name, loader := range m.opts.ClassProvider.GetAllClasses() {
		if !strings.HasPrefix(name, prefix+"/") {
			continue
		}
		rest := strings.TrimPrefix(name, prefix+"/")
		if !recursive && strings.Contains(rest, "/") {
			continue
		}
		raw, err := loader()
		if err != nil {
			m.opts.Logger.Warn("skipping %s during wildcard registration: %v", name, err)
			continue
		}
		node, desc, members, err := m.parseTransformer(raw, name)
		if err != nil || desc == nil {
			continue // wildcard registrations silently skip non-transformer classes
		}
		m.reg.RegisterTransformerNode(node, *desc, members)
	}
	return nil
}

func (m *Manager) parseTransformer(raw []byte, label string) (*classfile.ClassNode, *directive.TransformerDescriptor, []*directive.Member, error) {
	node, err := m.opts.Codec.Parse(raw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("classmorph: parsing transformer %s: %w", label, err)
	}
	desc, members, err := m.opts.Directives.Extract(node)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("classmorph: extracting directives from %s: %w", label, err)
	}
	return node, desc, members, nil
}

func (m *Manager) fetchClass(internal string) ([]byte, error) {
	if m.opts.ClassProvider == nil {
		return nil, fmt.Errorf("classmorph: no ClassProvider configured to resolve %s", internal)
	}
	raw, err := m.opts.ClassProvider.GetClass(internal)
	if err != nil {
		return nil, fmt.Errorf("classmorph: fetching class %s: %w", internal, err)
	}
	return raw, nil
}

// Transform is the class-load-time entry point. It returns (nil, nil) when
// the class needs no transformation (no transformers registered against
// it, or a CANCEL fail strategy aborted the pass) — the host keeps the
// original bytes in that case.
func (m *Manager) Transform(name string, raw []byte) ([]byte, error) {
	internal := anyToInternal(name)

	if !m.enter(internal) {
		return nil, nil // spec §9: reentrant load of a transformer mid-registration
	}
	defer m.leave(internal)

	if m.reg.IsRegisteredTransformer(internal) {
		return m.stubTransformerClass(internal, raw)
	}

	if !m.reg.IsTransformed(internal) {
		return nil, nil
	}

	m.mu.Lock()
	m.originalBytes[internal] = raw
	m.mu.Unlock()

	if m.opts.ResultCache != nil {
		h := cache.Hash(raw)
		if hit, ok, err := m.opts.ResultCache.Get(h); err == nil && ok {
			return hit, nil
		}
	}

	out, err := m.runPipeline(internal, raw)
	if err != nil {
		return nil, err
	}
	if out != nil && m.opts.ResultCache != nil {
		_ = m.opts.ResultCache.Put(cache.Hash(raw), internal, out)
	}
	return out, nil
}

func (m *Manager) runPipeline(internal string, raw []byte) ([]byte, error) {
	entries := m.reg.TransformersFor(internal)
	rawTransformers := m.reg.RawTransformersFor(internal)
	chain := m.reg.BuildHandlerChain(m.opts.CASMHooks)

	p := newPipeline(
		m.parseStage(internal),
		m.applyTransformersStage(entries, chain, internal),
		m.applyRawStage(rawTransformers, internal),
	)

	final := p.run(&pipelineContext{raw: raw})
	if final.err != nil {
		return nil, final.err
	}
	if final.cancelled || final.node == nil {
		return nil, nil
	}

	out, err := m.opts.Codec.Write(final.node)
	if err != nil {
		m.opts.Logger.Error(err, "writing %s", internal)
		return nil, fmt.Errorf("classmorph: writing %s: %w", internal, err)
	}
	return out, nil
}

// parseStage decodes the target class's raw bytes into an AST.
func (m *Manager) parseStage(internal string) stage {
	return func(ctx *pipelineContext) *pipelineContext {
		node, err := m.opts.Codec.Parse(ctx.raw)
		if err != nil {
			m.opts.Logger.Error(err, "parsing %s", internal)
			ctx.err = fmt.Errorf("classmorph: parsing %s: %w", internal, err)
			return ctx
		}
		ctx.node = node
		return ctx
	}
}

// applyTransformersStage runs every registered transformer's remapped
// clone through the fixed handler chain in registration order. The
// member directives are rebound onto that same clone (never run against
// entry.Members directly) so the method the chain mutates and the method
// MemberCopy later copies are one and the same object, and so the
// registry's own stored node never gets mutated by a handler pass (spec
// invariant 3).
func (m *Manager) applyTransformersStage(entries []*registry.TransformerEntry, chain []handler.Handler, internal string) stage {
	return func(ctx *pipelineContext) *pipelineContext {
		hctx := handler.NewContext(m.opts.ClassProvider, m.opts.Logger)
		for _, entry := range entries {
			transformer := remap.RewriteClassNode(m.opts.Remapper, entry.Node)
			members := entry.RebindMembers(transformer)
			if !m.runChain(hctx, chain, ctx.node, transformer, members, entry.Node.Name) {
				ctx.cancelled = true
				return ctx
			}
		}
		return ctx
	}
}

// applyRawStage runs every raw transformer directly over the target node.
func (m *Manager) applyRawStage(rawTransformers []registry.RawTransformer, internal string) stage {
	return func(ctx *pipelineContext) *pipelineContext {
		for _, rt := range rawTransformers {
			if err := rt.Apply(ctx.node); err != nil {
				if !m.handleFault(err, rt.Name) {
					ctx.cancelled = true
					return ctx
				}
			}
		}
		return ctx
	}
}

// runChain drives target through every handler in chain for one
// transformer, honoring the process-wide fail strategy on a handler
// fault. Returns false when the whole transformation pass must be
// abandoned (CANCEL).
func (m *Manager) runChain(ctx *handler.Context, chain []handler.Handler, target, transformer *classfile.ClassNode, members []*directive.Member, transformerName string) bool {
	for _, h := range chain {
		res := h.Apply(ctx, target, transformer, members)
		switch res.Outcome {
		case handler.Failed:
			if !m.handleFault(res.Err, transformerName) {
				return false
			}
		}
	}
	return true
}

// handleFault applies the configured FailStrategy to a handler or raw
// transformer fault. Returns false when the caller must abandon the rest
// of the pass (CANCEL); Exit never returns.
func (m *Manager) handleFault(err error, transformerName string) bool {
	switch m.opts.FailStrategy {
	case host.Cancel:
		m.opts.Logger.Error(err, "cancelling transform of %s", transformerName)
		return false
	case host.Exit:
		m.opts.Logger.Fatal(err, "fatal error from transformer %s", transformerName)
		os.Exit(1)
		return false
	default:
		m.opts.Logger.Error(err, "handler fault from transformer %s, continuing", transformerName)
		return true
	}
}

// enter sets the reentrancy guard for internal, reporting false if it was
// already set (spec §9: a reentrant load of a class mid-transformation
// returns unchanged rather than recursing).
func (m *Manager) enter(internal string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[internal] {
		return false
	}
	m.inFlight[internal] = true
	return true
}

func (m *Manager) leave(internal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, internal)
}

// stubTransformerClass handles the load event for a class that is itself
// registered as a transformer: its real bytecode is parsed, its
// descriptor and members are (re-)registered, and the host receives an
// empty stub body in its place — the real bytecode lives only in the
// registry from here on (spec §6 "Hotswap").
func (m *Manager) stubTransformerClass(internal string, raw []byte) ([]byte, error) {
	node, desc, members, err := m.parseTransformer(raw, internal)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		m.reg.RegisterTransformerNode(node, *desc, members)
	}
	stub := &classfile.ClassNode{
		Name:       node.Name,
		Access:     node.Access,
		SuperName:  node.SuperName,
		Interfaces: append([]string(nil), node.Interfaces...),
	}
	out, err := m.opts.Codec.Write(stub)
	if err != nil {
		return nil, fmt.Errorf("classmorph: writing stub for transformer %s: %w", internal, err)
	}
	return out, nil
}

// Hotswap re-registers an updated transformer class and redefines every
// target class it has already been observed transforming, through
// host.InstrumentationHost. It is the side channel internal/hotswaprpc
// drives; the synchronous load-time path never calls it.
func (m *Manager) Hotswap(ctx context.Context, transformerName string, newBytes []byte) error {
	internal := anyToInternal(transformerName)
	node, desc, members, err := m.parseTransformer(newBytes, internal)
	if err != nil {
		return err
	}
	if desc == nil {
		return fmt.Errorf("classmorph: %s has no class-level transformer annotation", transformerName)
	}
	m.reg.RegisterTransformerNode(node, *desc, members)

	if m.opts.Instrumentation == nil {
		return nil
	}

	for _, target := range desc.AllTargetNames() {
		targetInternal := anyToInternal(target)
		m.mu.Lock()
		original, ok := m.originalBytes[targetInternal]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if m.opts.ResultCache != nil {
			if err := m.opts.ResultCache.Invalidate(targetInternal); err != nil {
				return err
			}
		}
		newTargetBytes, err := m.Transform(targetInternal, original)
		if err != nil {
			return err
		}
		if newTargetBytes == nil {
			continue
		}
		if err := m.opts.Instrumentation.Redefine(ctx, targetInternal, newTargetBytes); err != nil {
			return fmt.Errorf("classmorph: redefining %s: %w", targetInternal, err)
		}
	}
	return nil
}

func dotToInternal(name string) string { return strings.ReplaceAll(name, ".", "/") }

func anyToInternal(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return dotToInternal(name)
}
