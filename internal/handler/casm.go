package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// ASMRawHook is the signature a @CASM-annotated transformer method exposes:
// it receives the target class node directly and mutates it however it
// likes, bypassing every structured directive. The transformation pipeline
// supplies the implementation by invoking the transformer's own bytecode
// semantics is out of scope for this Go core (spec §1: "the specific
// annotation-parsing reflection glue" resolves the actual call); here we
// model the hook as a registered Go callback keyed by the transformer
// method's name, matching how an embedding host wires a native escape
// hatch into an otherwise declarative framework.
type ASMRawHook func(target *classfile.ClassNode) error

// NewCASMHandler returns the raw pre/post-pass hook handler for the given
// phase (spec §4.2 steps 1 and 13). hooks maps a transformer method's name
// to the Go callback an embedding host registered for it; a @CASM member
// with no registered hook is a no-op skip, not an error, since the hook
// implementation lives entirely on the host side of the boundary.
func NewCASMHandler(phase directive.ASMPhase, hooks map[string]ASMRawHook) Handler {
	name := "CASM(BOTTOM)"
	if phase == directive.ASMPhaseTop {
		name = "CASM(TOP)"
	}
	return newHandler(name, func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
		applied := false
		for _, m := range membersOfKind(members, directive.KindCASM) {
			if m.Directive.ASMPhase != phase {
				continue
			}
			if m.Method == nil {
				continue
			}
			hook, ok := hooks[m.Method.Name]
			if !ok {
				continue
			}
			if err := hook(target); err != nil {
				return failed(&TransformerException{
					Kind:        KindHandlerFault,
					Transformer: transformer.Name,
					Method:      m.Method.Name + m.Method.Desc,
					Message:     err.Error(),
				})
			}
			applied = true
		}
		if !applied {
			return skipped("no @CASM member for this phase")
		}
		return Result{Outcome: Applied}
	})
}
