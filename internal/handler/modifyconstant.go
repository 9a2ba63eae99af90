package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/target"
)

// NewModifyConstantHandler implements spec §4.2 step 9: a transformer
// method annotated @CModifyConstant runs immediately after a matched
// constant-load instruction, taking the loaded value and returning the
// value that actually continues on the stack. Unlike Redirect, the
// original load instruction is never removed — only a call is spliced in
// after it.
func NewModifyConstantHandler() Handler {
	return newHandler("ModifyConstant", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindModifyConstant) {
			if m.Method == nil {
				continue
			}
			targetMethod := t.FindMethod(m.Directive.Method.Name, m.Directive.Method.Desc)
			if targetMethod == nil {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"no target method %s%s to modify a constant in on %s", m.Directive.Method.Name, m.Directive.Method.Desc, t.Name))
			}

			anchors, rerr := target.Resolve(targetMethod, target.Directive{
				Target:   m.Directive.TargetSpec,
				Slice:    m.Directive.Slice,
				Optional: m.Directive.Optional,
			})
			if rerr != nil {
				return failed(resolveErrToException(rerr, transformer.Name, m.Method.Name+m.Method.Desc))
			}
			if len(anchors) == 0 {
				continue
			}

			for _, a := range anchors {
				constType, ok := anchorConstantType(a.Instruction)
				if !ok {
					return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
						"@CModifyConstant anchor is not a recognizable constant load"))
				}
				want := classfile.BuildMethodDescriptor([]classfile.Type{constType}, constType)
				if m.Method.Desc != want {
					return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
						"modify-constant descriptor mismatch: expected %s, got %s", want, m.Method.Desc))
				}

				invokeOp := classfile.INVOKESTATIC
				call := classfile.NewInsnList()
				if !m.Method.IsStatic() {
					invokeOp = classfile.INVOKESPECIAL
					alloc := classfile.NewSlotAllocator(targetMethod)
					tmp := alloc.AllocFor(constType)
					call.Append(&classfile.VarInsn{Opcode: classfile.StoreOpcode(constType), Var: tmp})
					call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: 0})
					call.Append(&classfile.VarInsn{Opcode: classfile.LoadOpcode(constType), Var: tmp})
					targetMethod.MaxLocals = alloc.HighWater()
				}
				call.Append(&classfile.MethodInsn{Opcode: invokeOp, Owner: t.Name, Name: m.Method.Name, Desc: m.Method.Desc})
				targetMethod.Instructions.InsertListAfter(a.Instruction, call)
			}
			count++
		}
		if count == 0 {
			return skipped("transformer declares no @CModifyConstant members")
		}
		return applied()
	})
}

// anchorConstantType infers the JVM type of the value a constant-load
// instruction pushes, so the modify method's descriptor can be validated.
func anchorConstantType(insn classfile.Instruction) (classfile.Type, bool) {
	switch v := insn.(type) {
	case *classfile.LdcInsn:
		switch v.Value.(type) {
		case string:
			return classfile.ObjectType("java/lang/String"), true
		case int32:
			t, _, _ := classfile.ParseType("I")
			return t, true
		case int64:
			t, _, _ := classfile.ParseType("J")
			return t, true
		case float32:
			t, _, _ := classfile.ParseType("F")
			return t, true
		case float64:
			t, _, _ := classfile.ParseType("D")
			return t, true
		}
		return classfile.Type{}, false
	case *classfile.IntInsn:
		if v.Opcode != classfile.BIPUSH && v.Opcode != classfile.SIPUSH {
			return classfile.Type{}, false
		}
		t, _, _ := classfile.ParseType("I")
		return t, true
	case *classfile.ZeroInsn:
		var d string
		switch {
		case v.Opcode >= classfile.ICONST_M1 && v.Opcode <= classfile.ICONST_5:
			d = "I"
		case v.Opcode == classfile.LCONST_0 || v.Opcode == classfile.LCONST_1:
			d = "J"
		case v.Opcode >= classfile.FCONST_0 && v.Opcode <= classfile.FCONST_2:
			d = "F"
		case v.Opcode == classfile.DCONST_0 || v.Opcode == classfile.DCONST_1:
			d = "D"
		default:
			return classfile.Type{}, false
		}
		t, _, _ := classfile.ParseType(d)
		return t, true
	}
	return classfile.Type{}, false
}
