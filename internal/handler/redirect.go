package handler

import (
	"fmt"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/target"
)

// NewRedirectHandler implements spec §4.2 step 8: a transformer method
// annotated @CRedirect replaces every resolved anchor — a field access, a
// method invocation, or a `new` construction — with a call to the
// transformer method, which receives the same operands the original
// instruction would have consumed and must return what it would have left
// on the stack.
func NewRedirectHandler() Handler {
	return newHandler("Redirect", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindRedirect) {
			if m.Method == nil {
				continue
			}
			targetMethod := t.FindMethod(m.Directive.Method.Name, m.Directive.Method.Desc)
			if targetMethod == nil {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"no target method %s%s to redirect in on %s", m.Directive.Method.Name, m.Directive.Method.Desc, t.Name))
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
				if err := redirectOne(t, transformer.Name, targetMethod, a, m); err != nil {
					return failed(err)
				}
			}
			count++
		}
		if count == 0 {
			return skipped("transformer declares no @CRedirect members")
		}
		return applied()
	})
}

func redirectOne(t *classfile.ClassNode, transformerName string, targetMethod *classfile.MethodNode, a target.Anchor, m *directive.Member) error {
	switch insn := a.Instruction.(type) {
	case *classfile.FieldInsn:
		return redirectField(t, transformerName, targetMethod, insn, m)
	case *classfile.MethodInsn:
		return redirectInvoke(t, transformerName, targetMethod, insn, m)
	case *classfile.TypeInsn:
		if insn.Opcode == classfile.NEW {
			return redirectNew(t, transformerName, targetMethod, insn, m)
		}
	}
	return shapeError(transformerName, m.Method.Name+m.Method.Desc, "@CRedirect anchor is not a field access, method invocation, or NEW site")
}

func redirectField(t *classfile.ClassNode, transformerName string, targetMethod *classfile.MethodNode, fi *classfile.FieldInsn, m *directive.Member) error {
	fieldType, _, err := classfile.ParseType(fi.Desc)
	if err != nil {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc, "malformed field descriptor %q: %v", fi.Desc, err)
	}

	var argTypes []classfile.Type
	var ret classfile.Type
	switch fi.Opcode {
	case classfile.GETFIELD:
		argTypes = []classfile.Type{classfile.ObjectType(fi.Owner)}
		ret = fieldType
	case classfile.GETSTATIC:
		ret = fieldType
	case classfile.PUTFIELD:
		argTypes = []classfile.Type{classfile.ObjectType(fi.Owner), fieldType}
		ret = classfile.Void()
	case classfile.PUTSTATIC:
		argTypes = []classfile.Type{fieldType}
		ret = classfile.Void()
	default:
		return shapeError(transformerName, m.Method.Name+m.Method.Desc, "unsupported field opcode in @CRedirect anchor")
	}

	if err := validateRedirectDesc(transformerName, m, argTypes, ret); err != nil {
		return err
	}

	call := buildRedirectInvocation(targetMethod, t.Name, m, argTypes)
	targetMethod.Instructions.ReplaceRange(fi, fi, call)
	return nil
}

func redirectInvoke(t *classfile.ClassNode, transformerName string, targetMethod *classfile.MethodNode, mi *classfile.MethodInsn, m *directive.Member) error {
	called, err := classfile.ParseMethodDescriptor(mi.Desc)
	if err != nil {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc, "malformed call descriptor %q: %v", mi.Desc, err)
	}

	argTypes := called.Args
	if mi.Opcode != classfile.INVOKESTATIC {
		argTypes = append([]classfile.Type{classfile.ObjectType(mi.Owner)}, called.Args...)
	}

	if err := validateRedirectDesc(transformerName, m, argTypes, called.Return); err != nil {
		return err
	}

	call := buildRedirectInvocation(targetMethod, t.Name, m, argTypes)
	targetMethod.Instructions.ReplaceRange(mi, mi, call)
	return nil
}

// redirectNew replaces an entire `new Owner(args...)` construction — the
// NEW/DUP/arg-evaluation/INVOKESPECIAL <init> sequence javac emits — with a
// call to a redirect factory method returning Owner. This assumes the NEW
// is immediately followed by its DUP, which holds for every construction a
// compiler emits in source order; a DUP'd-and-stashed receiver used by more
// than one constructor call is out of scope.
func redirectNew(t *classfile.ClassNode, transformerName string, targetMethod *classfile.MethodNode, ti *classfile.TypeInsn, m *directive.Member) error {
	dup := targetMethod.Instructions.Next(ti)
	if dup == nil || dup.Op() != classfile.DUP {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc,
			"NEW %s is not immediately followed by DUP; this construction shape cannot be redirected", ti.Type)
	}
	ctor, err := findMatchingInit(targetMethod, dup, ti.Type)
	if err != nil {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc, "%s", err.Error())
	}

	ctorDesc, err := classfile.ParseMethodDescriptor(ctor.Desc)
	if err != nil {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc, "malformed constructor descriptor %q: %v", ctor.Desc, err)
	}

	if err := validateRedirectDesc(transformerName, m, ctorDesc.Args, classfile.ObjectType(ti.Type)); err != nil {
		return err
	}

	targetMethod.Instructions.Remove(ti)
	targetMethod.Instructions.Remove(dup)
	call := buildRedirectInvocation(targetMethod, t.Name, m, ctorDesc.Args)
	targetMethod.Instructions.ReplaceRange(ctor, ctor, call)
	return nil
}

func findMatchingInit(targetMethod *classfile.MethodNode, dup classfile.Instruction, owner string) (*classfile.MethodInsn, error) {
	depth := 0
	for insn := targetMethod.Instructions.Next(dup); insn != nil; insn = targetMethod.Instructions.Next(insn) {
		switch v := insn.(type) {
		case *classfile.TypeInsn:
			if v.Opcode == classfile.NEW && v.Type == owner {
				depth++
			}
		case *classfile.MethodInsn:
			if v.Opcode == classfile.INVOKESPECIAL && v.Name == "<init>" && v.Owner == owner {
				if depth == 0 {
					return v, nil
				}
				depth--
			}
		}
	}
	return nil, fmt.Errorf("no matching <init> found for NEW %s", owner)
}

func validateRedirectDesc(transformerName string, m *directive.Member, argTypes []classfile.Type, ret classfile.Type) error {
	want := classfile.BuildMethodDescriptor(argTypes, ret)
	if m.Method.Desc != want {
		return shapeError(transformerName, m.Method.Name+m.Method.Desc,
			"redirect descriptor mismatch: expected %s, got %s", want, m.Method.Desc)
	}
	return nil
}

// buildRedirectInvocation assumes len(argTypes) values are already on top
// of the operand stack, in order, and returns the instructions that stash
// them into fresh locals, optionally push `this` ahead of them (when the
// redirect method is an instance method, consistent with Inject's
// convention of dispatching on the enclosing instance rather than the
// redirected owner), reload them, and invoke the redirect method.
func buildRedirectInvocation(targetMethod *classfile.MethodNode, owner string, m *directive.Member, argTypes []classfile.Type) *classfile.InsnList {
	alloc := classfile.NewSlotAllocator(targetMethod)
	out := classfile.NewInsnList()

	slots := make([]int, len(argTypes))
	for i := len(argTypes) - 1; i >= 0; i-- {
		slots[i] = alloc.AllocFor(argTypes[i])
		out.Append(&classfile.VarInsn{Opcode: classfile.StoreOpcode(argTypes[i]), Var: slots[i]})
	}
	if !m.Method.IsStatic() {
		out.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: 0})
	}
	for i, t := range argTypes {
		out.Append(&classfile.VarInsn{Opcode: classfile.LoadOpcode(t), Var: slots[i]})
	}
	invokeOp := classfile.INVOKESTATIC
	if !m.Method.IsStatic() {
		invokeOp = classfile.INVOKESPECIAL
	}
	out.Append(&classfile.MethodInsn{Opcode: invokeOp, Owner: owner, Name: m.Method.Name, Desc: m.Method.Desc})

	targetMethod.MaxLocals = alloc.HighWater()
	return out
}
