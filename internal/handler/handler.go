// Package handler implements the thirteen ordered annotation handlers
// (spec §4.2) that mutate a target class given a transformer class, plus
// the central @Inject contract (spec §4.3).
package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/host"
)

// Outcome is the tagged result a handler reports for one (target,
// transformer) application — the systems-language stand-in for the
// source's use of exceptions for early exit across handler chains (spec §9
// "Coroutine patterns").
type Outcome int

const (
	Applied Outcome = iota
	Skipped
	Failed
)

// Result reports what a handler did.
type Result struct {
	Outcome Outcome
	Reason  string // set when Outcome == Skipped
	Err     error  // set when Outcome == Failed; always a *TransformerException or wraps one
}

func applied() Result               { return Result{Outcome: Applied} }
func skipped(reason string) Result  { return Result{Outcome: Skipped, Reason: reason} }
func failed(err error) Result       { return Result{Outcome: Failed, Err: err} }

// Context is threaded through every handler call. It carries the
// collaborators the spec names as external (manager/classProvider/logger)
// plus the per-application identifier map accumulated by Shadow and
// SyntheticRenamer, consumed by MemberCopy (spec §4.2 steps 4, 12).
type Context struct {
	ClassProvider host.ClassProvider
	Logger        host.Logger

	// IdentifierMap accumulates transformer-member -> target-member name
	// rewrites discovered by earlier handlers in this pass (Shadow,
	// SyntheticRenamer), consumed by MemberCopy when rewriting internal
	// references inside copied bodies.
	IdentifierMap map[string]string

	// syntheticSeq is not read by any handler: SyntheticRenamer always
	// draws its name suffix from uuid.NewString.
	syntheticSeq int
}

// NewContext returns a Context with an initialized identifier map.
func NewContext(cp host.ClassProvider, logger host.Logger) *Context {
	return &Context{ClassProvider: cp, Logger: logger, IdentifierMap: make(map[string]string)}
}

// Handler is one annotation-handler pass. All thirteen share this
// signature (spec §4.2): it may mutate targetClass in place; transformer
// is the already clone-and-remapped transformer class node for this
// target (spec invariant 3).
type Handler interface {
	// Name identifies the handler for logging and the registry's ordering
	// anchors.
	Name() string
	Apply(ctx *Context, target *classfile.ClassNode, transformer *classfile.ClassNode, members []*directive.Member) Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc struct {
	name string
	fn   func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result
}

func (h HandlerFunc) Name() string { return h.name }
func (h HandlerFunc) Apply(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
	return h.fn(ctx, target, transformer, members)
}

func newHandler(name string, fn func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result) Handler {
	return HandlerFunc{name: name, fn: fn}
}

// membersOfKind filters members to a single directive kind, preserving
// source-declaration order (spec invariant 1).
func membersOfKind(members []*directive.Member, kind directive.MemberKind) []*directive.Member {
	var out []*directive.Member
	for _, m := range members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
