package handler

import (
	"fmt"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/target"
)

// NewInjectHandler implements the @Inject contract (spec §4.3), the
// largest of the thirteen annotation handlers. For every @Inject member it
// validates the injector method's shape against its target, resolves the
// directive's anchors, and splices a call to the injector at each one,
// threading a Callback object through when the injector asks for one.
func NewInjectHandler() Handler {
	return newHandler("Inject", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindInject) {
			if m.Method == nil {
				continue
			}
			targetMethod := t.FindMethod(m.Directive.Method.Name, m.Directive.Method.Desc)
			if targetMethod == nil {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"no target method %s%s to inject into on %s", m.Directive.Method.Name, m.Directive.Method.Desc, t.Name))
			}
			if targetMethod.IsStatic() != m.Method.IsStatic() {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"static/instance mismatch: target is static=%v, injector is static=%v",
					targetMethod.IsStatic(), m.Method.IsStatic()))
			}

			shape, shapeErr := analyzeInjectShape(transformer.Name, m, targetMethod)
			if shapeErr != nil {
				return failed(shapeErr)
			}

			if modifiable := shape.modifiableLocals(); len(modifiable) > 0 {
				augmentForModifiableLocals(m.Method, shape.headCount, modifiable)
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
				spliceInject(t, targetMethod, a, m, shape)
			}
			count++
		}
		if count == 0 {
			return skipped("transformer declares no @Inject members")
		}
		return applied()
	})
}

// injectShape is the validated, resolved shape of one @Inject member
// against its target method: how many of the injector's leading
// parameters mirror the target's own arguments, which trailing parameters
// are @LocalVariable captures, and whether a Callback trails them.
type injectShape struct {
	headCount   int
	locals      []localBinding
	hasCallback bool
	cancellable bool
}

func (s *injectShape) modifiableLocals() []localBinding {
	var out []localBinding
	for _, lb := range s.locals {
		if lb.modifiable() {
			out = append(out, lb)
		}
	}
	return out
}

type localBinding struct {
	spec directive.LocalVariableSpec
	slot int // target method's local slot
	pos  int // position among the injector's trailing @LocalVariable parameters
}

func (lb localBinding) modifiable() bool { return lb.spec.Modifiable }

// analyzeInjectShape validates the injector method's descriptor against
// spec §4.3's required shape: H = A_t ++ [@LocalVariable...] ++ [Callback]?
// and resolves each @LocalVariable to a concrete local slot on the target.
func analyzeInjectShape(transformerName string, m *directive.Member, targetMethod *classfile.MethodNode) (*injectShape, error) {
	targetDesc := targetMethod.Descriptor()
	injDesc := m.Method.Descriptor()
	method := m.Method.Name + m.Method.Desc

	headCount := len(targetDesc.Args)
	if len(injDesc.Args) < headCount {
		return nil, shapeError(transformerName, method,
			"injector has %d parameters, fewer than the target method's %d arguments", len(injDesc.Args), headCount)
	}
	for i := 0; i < headCount; i++ {
		if injDesc.Args[i].Descriptor() != targetDesc.Args[i].Descriptor() {
			return nil, shapeError(transformerName, method,
				"injector parameter %d (%s) does not match target argument %d (%s)",
				i, injDesc.Args[i].Descriptor(), i, targetDesc.Args[i].Descriptor())
		}
	}

	remaining := injDesc.Args[headCount:]
	hasCallback := len(remaining) > 0 && isCallbackType(remaining[len(remaining)-1])
	if hasCallback {
		remaining = remaining[:len(remaining)-1]
	}
	if len(remaining) != len(m.Directive.Locals) {
		return nil, shapeError(transformerName, method,
			"injector declares %d trailing local parameters but %d @LocalVariable directives are present",
			len(remaining), len(m.Directive.Locals))
	}

	locals := make([]localBinding, 0, len(remaining))
	for i, spec := range m.Directive.Locals {
		slot, err := resolveLocalSlot(targetMethod, spec)
		if err != nil {
			return nil, shapeErrorHint(transformerName, method,
				"check the @LocalVariable's name/index against the target method's local-variable table",
				"%s", err.Error())
		}
		if remaining[i].Descriptor() != spec.ParamType.Descriptor() {
			return nil, shapeError(transformerName, method,
				"@LocalVariable %d declared as %s but injector parameter is %s", i, spec.ParamType.Descriptor(), remaining[i].Descriptor())
		}
		locals = append(locals, localBinding{spec: spec, slot: slot, pos: i})
	}

	if m.Directive.Cancellable && !hasCallback {
		return nil, shapeErrorHint(transformerName, method,
			"add a trailing Callback parameter or drop Cancellable",
			"directive is cancellable but the injector has no Callback to report cancellation through")
	}

	return &injectShape{
		headCount:   headCount,
		locals:      locals,
		hasCallback: hasCallback,
		cancellable: m.Directive.Cancellable,
	}, nil
}

// augmentForModifiableLocals implements spec §4.3's update-on-exit
// mechanism: the injector method's own descriptor gains a trailing
// Object[] parameter, every existing RETURN/ATHROW in its body is preceded
// by code packing the modifiable locals into that array, and every VarInsn
// referencing a slot at or past the insertion point is bumped by one to
// make room for it. The call site (spliceInject) builds and passes the
// matching array using its own, independent slot on the target method.
func augmentForModifiableLocals(method *classfile.MethodNode, headCount int, modifiable []localBinding) {
	arrayType, _, err := classfile.ParseType("[Ljava/lang/Object;")
	if err != nil {
		panic(err)
	}

	arraySlot := method.FirstFreeLocal()
	classfile.BumpSlotsAtOrAbove(method.Instructions, arraySlot, 1)

	desc := method.Descriptor()
	args := make([]classfile.Type, len(desc.Args), len(desc.Args)+1)
	copy(args, desc.Args)
	args = append(args, arrayType)
	method.Desc = classfile.BuildMethodDescriptor(args, desc.Return)
	if method.MaxLocals < arraySlot+1 {
		method.MaxLocals = arraySlot + 1
	}

	exits := method.Instructions.All()
	for _, insn := range exits {
		op := insn.Op()
		if op != classfile.ATHROW && !classfile.IsReturn(op) {
			continue
		}
		pack := classfile.NewInsnList()
		for arrIdx, lb := range modifiable {
			paramSlot := argSlot(method, headCount+lb.pos)
			pack.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: arraySlot})
			pack.Append(pushInt(arrIdx))
			pack.Append(&classfile.VarInsn{Opcode: classfile.LoadOpcode(lb.spec.ParamType), Var: paramSlot})
			if classfile.NeedsBoxing(lb.spec.ParamType) {
				classfile.EmitBox(pack, lb.spec.ParamType)
			}
			pack.Append(&classfile.ZeroInsn{Opcode: classfile.AASTORE})
		}
		method.Instructions.InsertListBefore(insn, pack)
	}
}

func resolveLocalSlot(method *classfile.MethodNode, spec directive.LocalVariableSpec) (int, error) {
	if spec.HasIndex {
		return spec.ByIndex, nil
	}
	for _, lv := range method.Locals {
		if lv.Name == spec.ByName {
			return lv.Index, nil
		}
	}
	return 0, fmt.Errorf("no local named %q in %s%s", spec.ByName, method.Name, method.Desc)
}

// spliceInject builds and inserts the call-site bytecode for one resolved
// anchor. It handles the RETURN/TAIL/THROW capture-vs-call distinction
// (spec §4.3): at a Before-shifted RETURN/TAIL/THROW anchor the value
// about to be consumed is duplicated and threaded through to the Callback
// rather than merely observed.
func spliceInject(t *classfile.ClassNode, targetMethod *classfile.MethodNode, a target.Anchor, m *directive.Member, shape *injectShape) {
	alloc := classfile.NewSlotAllocator(targetMethod)
	targetDesc := targetMethod.Descriptor()
	op := a.Instruction.Op()

	capture := false
	var captureType classfile.Type
	if a.Shift == target.Before {
		switch {
		case op == classfile.ATHROW:
			capture = true
			captureType = classfile.ObjectType("java/lang/Throwable")
		case classfile.IsReturn(op) && !targetDesc.Return.IsVoid():
			capture = true
			captureType = targetDesc.Return
		}
	}

	call := classfile.NewInsnList()

	capturedSlot := -1
	if capture {
		call.Append(&classfile.ZeroInsn{Opcode: classfile.DUP})
		if classfile.NeedsBoxing(captureType) {
			classfile.EmitBox(call, captureType)
		}
		capturedSlot = alloc.Alloc(1)
		call.Append(&classfile.VarInsn{Opcode: classfile.ASTORE, Var: capturedSlot})
	}

	modifiable := shape.modifiableLocals()

	localLoad := func(lb localBinding) classfile.Opcode {
		if lb.spec.LoadOpcode != 0 {
			return lb.spec.LoadOpcode
		}
		return classfile.LoadOpcode(lb.spec.ParamType)
	}

	localsArraySlot := -1
	if len(modifiable) > 0 {
		call.Append(pushInt(len(modifiable)))
		call.Append(&classfile.TypeInsn{Opcode: classfile.ANEWARRAY, Type: "java/lang/Object"})
		localsArraySlot = alloc.Alloc(1)
		call.Append(&classfile.VarInsn{Opcode: classfile.ASTORE, Var: localsArraySlot})
		for i, lb := range modifiable {
			call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: localsArraySlot})
			call.Append(pushInt(i))
			call.Append(&classfile.VarInsn{Opcode: localLoad(lb), Var: lb.slot})
			if classfile.NeedsBoxing(lb.spec.ParamType) {
				classfile.EmitBox(call, lb.spec.ParamType)
			}
			call.Append(&classfile.ZeroInsn{Opcode: classfile.AASTORE})
		}
	}

	callbackSlot := -1
	if shape.hasCallback {
		call.Append(&classfile.TypeInsn{Opcode: classfile.NEW, Type: callbackInternalName})
		call.Append(&classfile.ZeroInsn{Opcode: classfile.DUP})
		call.Append(pushInt(boolInt(shape.cancellable)))
		ctorDesc := callbackPlainCtorDesc
		if capture {
			ctorDesc = callbackCapturedCtorDesc
			call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: capturedSlot})
		}
		call.Append(&classfile.MethodInsn{Opcode: classfile.INVOKESPECIAL, Owner: callbackInternalName, Name: "<init>", Desc: ctorDesc})
		callbackSlot = alloc.Alloc(1)
		call.Append(&classfile.VarInsn{Opcode: classfile.ASTORE, Var: callbackSlot})
	}

	if !m.Method.IsStatic() {
		call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: 0})
	}
	for i := 0; i < shape.headCount; i++ {
		call.Append(&classfile.VarInsn{Opcode: classfile.LoadOpcode(targetDesc.Args[i]), Var: argSlot(targetMethod, i)})
	}
	for _, lb := range shape.locals {
		call.Append(&classfile.VarInsn{Opcode: localLoad(lb), Var: lb.slot})
	}
	if shape.hasCallback {
		call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: callbackSlot})
	}
	if localsArraySlot >= 0 {
		call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: localsArraySlot})
	}
	invokeOp := classfile.INVOKESTATIC
	if !m.Method.IsStatic() {
		invokeOp = classfile.INVOKESPECIAL
	}
	call.Append(&classfile.MethodInsn{Opcode: invokeOp, Owner: t.Name, Name: m.Method.Name, Desc: m.Method.Desc})

	for i, lb := range modifiable {
		call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: localsArraySlot})
		call.Append(pushInt(i))
		call.Append(&classfile.ZeroInsn{Opcode: classfile.AALOAD})
		if classfile.NeedsBoxing(lb.spec.ParamType) {
			classfile.EmitUnbox(call, lb.spec.ParamType)
		} else if lb.spec.ParamType.IsReference() && lb.spec.ParamType.Sort() == classfile.SortObject && lb.spec.ParamType.InternalName() != "java/lang/Object" {
			call.Append(&classfile.TypeInsn{Opcode: classfile.CHECKCAST, Type: lb.spec.ParamType.InternalName()})
		}
		call.Append(&classfile.VarInsn{Opcode: classfile.StoreOpcode(lb.spec.ParamType), Var: lb.slot})
	}

	if shape.cancellable {
		skip := &classfile.LabelInsn{}
		call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: callbackSlot})
		call.Append(&classfile.MethodInsn{Opcode: classfile.INVOKEVIRTUAL, Owner: callbackInternalName, Name: "isCancelled", Desc: callbackIsCancelledDesc})
		call.Append(&classfile.JumpInsn{Opcode: classfile.IFEQ, Target: skip})
		if !targetDesc.Return.IsVoid() {
			call.Append(&classfile.VarInsn{Opcode: classfile.ALOAD, Var: callbackSlot})
			call.Append(&classfile.MethodInsn{Opcode: classfile.INVOKEVIRTUAL, Owner: callbackInternalName, Name: "getReturnValue", Desc: callbackGetReturnDesc})
			if classfile.NeedsBoxing(targetDesc.Return) {
				classfile.EmitUnbox(call, targetDesc.Return)
			} else if targetDesc.Return.Sort() == classfile.SortObject && targetDesc.Return.InternalName() != "java/lang/Object" {
				call.Append(&classfile.TypeInsn{Opcode: classfile.CHECKCAST, Type: targetDesc.Return.InternalName()})
			}
		}
		call.Append(&classfile.ZeroInsn{Opcode: classfile.ReturnOpcode(targetDesc.Return)})
		call.Append(skip)
	}

	if a.Shift == target.Before {
		targetMethod.Instructions.InsertListBefore(a.Instruction, call)
	} else {
		targetMethod.Instructions.InsertListAfter(a.Instruction, call)
	}
	targetMethod.MaxLocals = alloc.HighWater()
}

func argSlot(method *classfile.MethodNode, index int) int {
	desc := method.Descriptor()
	slot := 0
	if !method.IsStatic() {
		slot = 1
	}
	for i := 0; i < index; i++ {
		slot += classfile.Width(desc.Args[i])
	}
	return slot
}

func pushInt(n int) classfile.Instruction {
	switch {
	case n >= -1 && n <= 5:
		return &classfile.ZeroInsn{Opcode: classfile.Opcode(int(classfile.ICONST_0) + n)}
	case n >= -128 && n <= 127:
		return &classfile.IntInsn{Opcode: classfile.BIPUSH, Operand: n}
	default:
		return &classfile.IntInsn{Opcode: classfile.SIPUSH, Operand: n}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
