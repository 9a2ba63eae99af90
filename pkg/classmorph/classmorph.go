// Package classmorph is the public embedding API for the transformation
// core, mirroring the teacher's pkg/embed layering over its internal VM:
// a thin wrapper type exposes just the operations a host needs
// (registration and the load-time transform call) over the internal
// registry/handler/target machinery.
package classmorph

import (
	"context"

	"github.com/quillbyte/classmorph/internal/cache"
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/handler"
	"github.com/quillbyte/classmorph/internal/host"
	"github.com/quillbyte/classmorph/internal/hotswaprpc"
	"github.com/quillbyte/classmorph/internal/logutil"
	"github.com/quillbyte/classmorph/internal/manifest"
	"github.com/quillbyte/classmorph/internal/registry"
	"github.com/quillbyte/classmorph/internal/remap"
	"github.com/quillbyte/classmorph/internal/transform"
)

// Re-exported types a host assembles Options from, so it never needs to
// import the internal packages directly.
type (
	Codec               = classfile.Codec
	DirectiveExtractor  = directive.Extractor
	ClassProvider       = host.ClassProvider
	InstrumentationHost = host.InstrumentationHost
	Logger              = host.Logger
	FailStrategy        = host.FailStrategy
	RawTransformer      = registry.RawTransformer
	Anchor              = registry.Anchor
	Handler             = handler.Handler
	ASMRawHook          = handler.ASMRawHook
)

const (
	Continue = host.Continue
	Cancel   = host.Cancel
	Exit     = host.Exit

	AnchorTop    = registry.AnchorTop
	AnchorPre    = registry.AnchorPre
	AnchorPost   = registry.AnchorPost
	AnchorBottom = registry.AnchorBottom
)

// Options configures a Manager.
type Options struct {
	Codec               Codec
	Directives          DirectiveExtractor
	ClassProvider       ClassProvider
	Instrumentation     InstrumentationHost
	Logger              Logger
	FailStrategy        FailStrategy
	CASMHooks           map[string]ASMRawHook
	Remapper            *remap.Remapper
	ResultCachePath     string // optional: opens a sqlite-backed result cache at this path
	HotswapListenAddr   string // optional: starts the hotswap gRPC side channel on this address
}

// Manager is the embeddable transformation core.
type Manager struct {
	inner    *transform.Manager
	resCache *cache.Cache
	hotswap  *hotswaprpc.Server
}

// New constructs a Manager from opts. Codec and Directives are required.
func New(opts Options) (*Manager, error) {
	var resCache *cache.Cache
	if opts.ResultCachePath != "" {
		c, err := cache.Open(opts.ResultCachePath)
		if err != nil {
			return nil, err
		}
		resCache = c
	}

	logger := opts.Logger
	if logger == nil {
		logger = logutil.NewConsoleLogger()
	}

	inner, err := transform.New(transform.Options{
		Codec:           opts.Codec,
		Directives:      opts.Directives,
		ClassProvider:   opts.ClassProvider,
		Instrumentation: opts.Instrumentation,
		Logger:          logger,
		FailStrategy:    opts.FailStrategy,
		CASMHooks:       opts.CASMHooks,
		Remapper:        opts.Remapper,
		ResultCache:     resCache,
	})
	if err != nil {
		if resCache != nil {
			resCache.Close()
		}
		return nil, err
	}

	m := &Manager{inner: inner, resCache: resCache}

	if opts.HotswapListenAddr != "" {
		srv, err := hotswaprpc.NewServer(inner)
		if err != nil {
			return nil, err
		}
		if err := srv.ServeAsync(opts.HotswapListenAddr); err != nil {
			return nil, err
		}
		m.hotswap = srv
	}

	return m, nil
}

// NewFromManifest loads a YAML manifest and registers every transformer
// pattern it lists, applying its fail_strategy and hotswap settings on top
// of opts.
func NewFromManifest(path string, opts Options) (*Manager, error) {
	man, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	opts.FailStrategy = man.ResolveFailStrategy()
	if man.Hotswap.Enabled && opts.HotswapListenAddr == "" {
		opts.HotswapListenAddr = man.Hotswap.Address
	}

	m, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, pattern := range man.Transformers {
		if err := m.RegisterTransformer(pattern); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterTransformer registers a bare class name or wildcard pattern
// ("pkg.*" / "pkg.**") as a transformer.
func (m *Manager) RegisterTransformer(pattern string) error {
	return m.inner.RegisterTransformer(pattern)
}

// RegisterRawTransformer registers a raw bytecode rewrite against a
// target class name, bypassing the directive/annotation machinery.
func (m *Manager) RegisterRawTransformer(targetName string, rt RawTransformer) {
	m.inner.RegisterRawTransformer(targetName, rt)
}

// AddAnnotationHandler inserts a custom handler at one of the four
// insertion anchors around the fixed thirteen-step chain.
func (m *Manager) AddAnnotationHandler(anchor Anchor, h Handler) {
	m.inner.Registry().AddAnnotationHandler(anchor, h)
}

// Transform is the class-load-time entry point: given a class's internal
// or dotted name and its raw bytes, it returns the transformed bytes, or
// (nil, nil) when the class needs no transformation.
func (m *Manager) Transform(name string, raw []byte) ([]byte, error) {
	return m.inner.Transform(name, raw)
}

// Hotswap pushes updated transformer bytes and redefines every
// already-loaded target through the configured InstrumentationHost.
func (m *Manager) Hotswap(ctx context.Context, transformerName string, newBytes []byte) error {
	return m.inner.Hotswap(ctx, transformerName, newBytes)
}

// Close releases the result cache and stops the hotswap listener, if
// either was configured.
func (m *Manager) Close() error {
	if m.hotswap != nil {
		m.hotswap.Stop()
	}
	if m.resCache != nil {
		return m.resCache.Close()
	}
	return nil
}
