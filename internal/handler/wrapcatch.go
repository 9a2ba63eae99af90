package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/target"
)

// NewWrapCatchHandler implements spec §4.2 step 6: wraps a
// directive-selected region of the target method in a try/catch whose
// handler calls the transformer method with the caught throwable. The
// inserted try/catch entry is marked Synthetic so the THROW injection
// target (resolved later, in step 7) correctly excludes it (spec §9 open
// question 1).
func NewWrapCatchHandler() Handler {
	return newHandler("WrapCatch", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindWrapCatch) {
			if m.Method == nil {
				continue
			}
			targetMethod := t.FindMethod(m.Directive.Method.Name, m.Directive.Method.Desc)
			if targetMethod == nil {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"no target method %s%s to wrap on %s", m.Directive.Method.Name, m.Directive.Method.Desc, t.Name))
			}

			desc := m.Method.Descriptor()
			if len(desc.Args) != 1 || desc.Args[0].Sort() != classfile.SortObject {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"@CWrapCatch handler must take exactly one reference-typed (throwable) argument"))
			}
			throwableType := desc.Args[0].InternalName()

			anchors, err := target.Resolve(targetMethod, target.Directive{
				Target:   m.Directive.TargetSpec,
				Slice:    m.Directive.Slice,
				Optional: m.Directive.Optional,
			})
			if err != nil {
				return failed(resolveErrToException(err, transformer.Name, m.Method.Name+m.Method.Desc))
			}
			if len(anchors) == 0 {
				continue
			}

			first := anchors[0].Instruction
			last := anchors[len(anchors)-1].Instruction

			startLabel := &classfile.LabelInsn{}
			endLabel := &classfile.LabelInsn{}
			handlerLabel := &classfile.LabelInsn{}

			targetMethod.Instructions.InsertBefore(first, startLabel)
			targetMethod.Instructions.InsertAfter(last, endLabel)

			alloc := classfile.NewSlotAllocator(targetMethod)
			throwVar := alloc.AllocFor(desc.Args[0])
			targetMethod.MaxLocals = alloc.HighWater()

			handlerBody := classfile.NewInsnList()
			handlerBody.Append(handlerLabel)
			handlerBody.Append(&classfile.VarInsn{Opcode: classfile.ASTORE, Var: throwVar})
			invokeOp := classfile.INVOKESTATIC
			if !m.Method.IsStatic() {
				invokeOp = classfile.INVOKEVIRTUAL
				handlerBody.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: 0})
			}
			handlerBody.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: throwVar})
			handlerBody.Append(&classfile.MethodInsn{Opcode: invokeOp, Owner: t.Name, Name: m.Method.Name, Desc: m.Method.Desc})
			handlerBody.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: throwVar})
			handlerBody.Append(&classfile.ZeroInsn{Opcode: classfile.ATHROW})
			targetMethod.Instructions.AppendList(handlerBody)

			targetMethod.TryCatch = append(targetMethod.TryCatch, classfile.TryCatchBlockNode{
				Start:     startLabel,
				End:       endLabel,
				Handler:   handlerLabel,
				Type:      throwableType,
				Synthetic: true,
			})

			count++
		}
		if count == 0 {
			return skipped("transformer declares no @CWrapCatch members")
		}
		return applied()
	})
}

// resolveErrToException maps a *target.ResolveError to the handler
// package's TransformerException taxonomy.
func resolveErrToException(err error, transformerName, method string) error {
	if rerr, ok := err.(*target.ResolveError); ok {
		kind := KindInvalidTarget
		if rerr.Kind == target.ErrTargetNotFound {
			kind = KindTargetNotFound
		}
		return &TransformerException{Kind: kind, Transformer: transformerName, Method: method, Message: rerr.Message}
	}
	return &TransformerException{Kind: KindHandlerFault, Transformer: transformerName, Method: method, Message: err.Error()}
}
