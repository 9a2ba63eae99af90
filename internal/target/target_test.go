package target

import (
	"strconv"
	"testing"

	"github.com/quillbyte/classmorph/internal/classfile"
)

func method(desc string, insns ...classfile.Instruction) *classfile.MethodNode {
	list := classfile.NewInsnList()
	for _, i := range insns {
		list.Append(i)
	}
	return &classfile.MethodNode{Name: "m", Desc: desc, Instructions: list}
}

func TestResolveHeadSkipsPseudoInstructions(t *testing.T) {
	label := &classfile.LabelInsn{}
	real := &classfile.ZeroInsn{Opcode: classfile.NOP}
	m := method("()V", label, real, &classfile.ZeroInsn{Opcode: classfile.RETURN})

	anchors, err := Resolve(m, Directive{Target: Target{Kind: HEAD}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(real) {
		t.Fatalf("anchors = %+v, want single anchor at the first non-pseudo instruction", anchors)
	}
	if anchors[0].Shift != Before {
		t.Errorf("HEAD shift = %v, want Before", anchors[0].Shift)
	}
}

func TestResolveReturnMatchesEveryReturn(t *testing.T) {
	r1 := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	r2 := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	m := method("()I", r1, r2)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: RETURN}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 2 {
		t.Fatalf("len(anchors) = %d, want 2", len(anchors))
	}
}

func TestResolveTailPicksLastReturn(t *testing.T) {
	r1 := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	r2 := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	m := method("()I", r1, r2)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: TAIL}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(r2) {
		t.Fatalf("anchors = %+v, want just the last return", anchors)
	}
}

func TestResolveInvokeMatchesExactTriple(t *testing.T) {
	match := &classfile.MethodInsn{Opcode: classfile.INVOKEVIRTUAL, Owner: "java/lang/String", Name: "toUpperCase", Desc: "()Ljava/lang/String;"}
	other := &classfile.MethodInsn{Opcode: classfile.INVOKEVIRTUAL, Owner: "java/lang/String", Name: "toLowerCase", Desc: "()Ljava/lang/String;"}
	m := method("()Ljava/lang/String;", other, match, &classfile.ZeroInsn{Opcode: classfile.ARETURN})

	anchors, err := Resolve(m, Directive{Target: Target{
		Kind:     INVOKE,
		Argument: "Ljava/lang/String;toUpperCase()Ljava/lang/String;",
	}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(match) {
		t.Fatalf("anchors = %+v, want only the toUpperCase call", anchors)
	}
}

func TestResolveInvokeAcceptsDottedForm(t *testing.T) {
	match := &classfile.MethodInsn{Opcode: classfile.INVOKESTATIC, Owner: "a/b/C", Name: "f", Desc: "(I)V"}
	m := method("()V", match)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: INVOKE, Argument: "a/b/C.f (I)V"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("len(anchors) = %d, want 1", len(anchors))
	}
}

func TestResolveGetFieldMatchesStaticGetNotPut(t *testing.T) {
	get := &classfile.FieldInsn{Opcode: classfile.GETSTATIC, Owner: "target/Foo", Name: "flag", Desc: "Z"}
	put := &classfile.FieldInsn{Opcode: classfile.PUTSTATIC, Owner: "target/Foo", Name: "flag", Desc: "Z"}
	m := method("()Z", get, put)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: GETFIELD, Argument: "Ltarget/Foo;flag:Z"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(get) {
		t.Fatalf("anchors = %+v, want only the GETSTATIC", anchors)
	}
}

func TestResolveNewMatchesOwner(t *testing.T) {
	ti := &classfile.TypeInsn{Opcode: classfile.NEW, Type: "java/util/ArrayList"}
	m := method("()V", ti)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: NEW, Argument: "Ljava/util/ArrayList;"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("len(anchors) = %d, want 1", len(anchors))
	}
}

func TestResolveConstantMatchesIntLiteral(t *testing.T) {
	ldc := &classfile.LdcInsn{Value: int32(5)}
	other := &classfile.LdcInsn{Value: int32(6)}
	m := method("()I", other, ldc)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: CONSTANT, Argument: "5"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(ldc) {
		t.Fatalf("anchors = %+v, want only the LDC 5", anchors)
	}
}

func TestResolveConstantMatchesIconst(t *testing.T) {
	iconst := &classfile.ZeroInsn{Opcode: classfile.ICONST_3}
	m := method("()I", iconst)

	anchors, err := Resolve(m, Directive{Target: Target{Kind: CONSTANT, Argument: "3"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("len(anchors) = %d, want 1", len(anchors))
	}
}

func TestResolveOptionalEmptyReturnsNoError(t *testing.T) {
	m := method("()V", &classfile.ZeroInsn{Opcode: classfile.RETURN})

	anchors, err := Resolve(m, Directive{
		Target:   Target{Kind: INVOKE, Argument: "a/b/C.f ()V"},
		Optional: true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if anchors != nil {
		t.Fatalf("anchors = %+v, want nil", anchors)
	}
}

func TestResolveRequiredEmptyIsTargetNotFound(t *testing.T) {
	m := method("()V", &classfile.ZeroInsn{Opcode: classfile.RETURN})

	_, err := Resolve(m, Directive{Target: Target{Kind: INVOKE, Argument: "a/b/C.f ()V"}})
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != ErrTargetNotFound {
		t.Fatalf("err = %v, want *ResolveError{Kind: ErrTargetNotFound}", err)
	}
}

func TestResolveMalformedArgumentIsInvalidTarget(t *testing.T) {
	m := method("()V", &classfile.ZeroInsn{Opcode: classfile.RETURN})

	_, err := Resolve(m, Directive{Target: Target{Kind: INVOKE, Argument: "not-a-valid-target"}})
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != ErrInvalidTarget {
		t.Fatalf("err = %v, want *ResolveError{Kind: ErrInvalidTarget}", err)
	}
}

func TestResolveSliceRestrictsToRange(t *testing.T) {
	start := &classfile.MethodInsn{Opcode: classfile.INVOKESTATIC, Owner: "a/b/C", Name: "start", Desc: "()V"}
	before := &classfile.ZeroInsn{Opcode: classfile.ICONST_1}
	inside := &classfile.ZeroInsn{Opcode: classfile.ICONST_2}
	end := &classfile.MethodInsn{Opcode: classfile.INVOKESTATIC, Owner: "a/b/C", Name: "end", Desc: "()V"}
	after := &classfile.ZeroInsn{Opcode: classfile.ICONST_3}
	m := method("()V", before, start, inside, end, after)

	anchors, err := Resolve(m, Directive{
		Target: Target{Kind: OPCODE, Argument: strconv.Itoa(int(classfile.NOP))},
		Slice: &Slice{
			From: Target{Kind: INVOKE, Argument: "a/b/C.start ()V"},
			To:   Target{Kind: INVOKE, Argument: "a/b/C.end ()V"},
		},
		Optional: true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if anchors != nil {
		t.Fatalf("anchors = %+v, want nil (no NOP inside the slice)", anchors)
	}

	anchors, err = Resolve(m, Directive{
		Target: Target{Kind: CONSTANT, Argument: "2"},
		Slice: &Slice{
			From: Target{Kind: INVOKE, Argument: "a/b/C.start ()V"},
			To:   Target{Kind: INVOKE, Argument: "a/b/C.end ()V"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(inside) {
		t.Fatalf("anchors = %+v, want only the constant inside the slice", anchors)
	}
}

func TestResolveThrowExcludesSyntheticHandlerRethrow(t *testing.T) {
	guarded := &classfile.ZeroInsn{Opcode: classfile.ATHROW}
	handlerLabel := &classfile.LabelInsn{}
	rethrow := &classfile.ZeroInsn{Opcode: classfile.ATHROW}
	m := method("()V", guarded, handlerLabel, rethrow)
	m.TryCatch = []classfile.TryCatchBlockNode{{
		Start: &classfile.LabelInsn{}, End: &classfile.LabelInsn{}, Handler: handlerLabel,
		Type: "java/lang/Throwable", Synthetic: true,
	}}

	anchors, err := Resolve(m, Directive{Target: Target{Kind: THROW}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(anchors) != 1 || anchors[0].Instruction != classfile.Instruction(guarded) {
		t.Fatalf("anchors = %+v, want only the guarded ATHROW, not the synthetic rethrow", anchors)
	}
}
