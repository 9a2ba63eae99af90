package handler

import (
	"testing"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
	"github.com/quillbyte/classmorph/internal/target"
)

func newCtx() *Context {
	return NewContext(nil, nil)
}

func mustType(desc string) classfile.Type {
	t, _, err := classfile.ParseType(desc)
	if err != nil {
		panic(err)
	}
	return t
}

func listOf(insns ...classfile.Instruction) *classfile.InsnList {
	l := classfile.NewInsnList()
	for _, i := range insns {
		l.Append(i)
	}
	return l
}

func TestShadowHandlerRewritesToExistingTargetMember(t *testing.T) {
	tgt := &classfile.ClassNode{
		Name:   "target/Foo",
		Fields: []*classfile.FieldNode{{Name: "counter", Desc: "I"}},
	}
	shadowField := &classfile.FieldNode{Name: "counter", Desc: "I"}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Fields: []*classfile.FieldNode{shadowField}}
	members := []*directive.Member{{Kind: directive.KindShadow, Field: shadowField}}

	ctx := newCtx()
	res := NewShadowHandler().Apply(ctx, tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	if ctx.IdentifierMap[fieldKey(transformer.Name, "counter")] != "counter" {
		t.Fatalf("identifier map missing shadow field mapping: %+v", ctx.IdentifierMap)
	}
}

func TestShadowHandlerFailsWhenTargetMemberMissing(t *testing.T) {
	tgt := &classfile.ClassNode{Name: "target/Foo"}
	shadowField := &classfile.FieldNode{Name: "missing", Desc: "I"}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Fields: []*classfile.FieldNode{shadowField}}
	members := []*directive.Member{{Kind: directive.KindShadow, Field: shadowField}}

	res := NewShadowHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Failed {
		t.Fatalf("outcome = %v, want Failed", res.Outcome)
	}
}

func TestOverrideHandlerPreservesOriginalUnderAlias(t *testing.T) {
	existing := &classfile.MethodNode{Name: "tick", Desc: "()V", Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.RETURN})}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{existing}}
	override := &classfile.MethodNode{Name: "tick", Desc: "()V", Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.NOP}, &classfile.ZeroInsn{Opcode: classfile.RETURN})}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{override}}
	members := []*directive.Member{{Kind: directive.KindOverride, Method: override}}

	res := NewOverrideHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	if tgt.FindMethod("tick$original", "()V") == nil {
		t.Fatal("original tick body was not preserved under alias")
	}
	if existing.Instructions.Len() != 2 {
		t.Fatalf("existing.Instructions.Len() = %d, want 2 (overwritten from override body)", existing.Instructions.Len())
	}
}

func TestOverrideHandlerRejectsStaticInstanceMismatch(t *testing.T) {
	existing := &classfile.MethodNode{Name: "tick", Desc: "()V", Access: classfile.AccStatic}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{existing}}
	override := &classfile.MethodNode{Name: "tick", Desc: "()V"}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{override}}
	members := []*directive.Member{{Kind: directive.KindOverride, Method: override}}

	res := NewOverrideHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Failed {
		t.Fatalf("outcome = %v, want Failed on static/instance mismatch", res.Outcome)
	}
}

func TestWrapCatchHandlerInsertsSyntheticTryCatch(t *testing.T) {
	call := &classfile.MethodInsn{Opcode: classfile.INVOKESTATIC, Owner: "target/Foo", Name: "risky", Desc: "()V"}
	ret := &classfile.ZeroInsn{Opcode: classfile.RETURN}
	targetMethod := &classfile.MethodNode{Name: "tick", Desc: "()V", Access: classfile.AccStatic, Instructions: listOf(call, ret)}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	handlerBody := &classfile.MethodNode{
		Name: "onError", Desc: "(Ljava/lang/Throwable;)V", Access: classfile.AccStatic,
		Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.RETURN}),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{handlerBody}}
	members := []*directive.Member{{
		Kind:   directive.KindWrapCatch,
		Method: handlerBody,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "tick", Desc: "()V"},
			TargetSpec: target.Target{Kind: target.HEAD},
		},
	}}

	res := NewWrapCatchHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	if len(targetMethod.TryCatch) != 1 || !targetMethod.TryCatch[0].Synthetic {
		t.Fatalf("expected one synthetic try/catch entry, got %+v", targetMethod.TryCatch)
	}
}

func TestInjectHandlerSplicesCallAtHead(t *testing.T) {
	ret := &classfile.ZeroInsn{Opcode: classfile.RETURN}
	targetMethod := &classfile.MethodNode{Name: "tick", Desc: "()V", Access: classfile.AccStatic, Instructions: listOf(ret)}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	injector := &classfile.MethodNode{
		Name: "onTick", Desc: "()V", Access: classfile.AccStatic,
		Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.RETURN}),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{injector}}
	members := []*directive.Member{{
		Kind:   directive.KindInject,
		Method: injector,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "tick", Desc: "()V"},
			TargetSpec: target.Target{Kind: target.HEAD},
		},
	}}

	res := NewInjectHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	first := targetMethod.Instructions.First()
	mi, ok := first.(*classfile.MethodInsn)
	if !ok || mi.Name != "onTick" || mi.Owner != "target/Foo" {
		t.Fatalf("first instruction = %#v, want a call to onTick on target/Foo", first)
	}
}

func TestInjectHandlerRejectsArgumentShapeMismatch(t *testing.T) {
	ret := &classfile.ZeroInsn{Opcode: classfile.RETURN}
	targetMethod := &classfile.MethodNode{Name: "tick", Desc: "(I)V", Access: classfile.AccStatic, Instructions: listOf(ret)}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	injector := &classfile.MethodNode{Name: "onTick", Desc: "()V", Access: classfile.AccStatic, Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.RETURN})}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{injector}}
	members := []*directive.Member{{
		Kind:   directive.KindInject,
		Method: injector,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "tick", Desc: "(I)V"},
			TargetSpec: target.Target{Kind: target.HEAD},
		},
	}}

	res := NewInjectHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Failed {
		t.Fatalf("outcome = %v, want Failed: injector drops the target's own int argument", res.Outcome)
	}
}

func TestInjectHandlerAugmentsInjectorForModifiableLocal(t *testing.T) {
	ret := &classfile.ZeroInsn{Opcode: classfile.RETURN}
	targetMethod := &classfile.MethodNode{
		Name: "tick", Desc: "(I)V", Access: classfile.AccStatic,
		Instructions: listOf(ret),
		Locals:       []classfile.LocalVariableNode{{Name: "count", Index: 0, Desc: "I"}},
	}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	injectorRet := &classfile.ZeroInsn{Opcode: classfile.RETURN}
	injector := &classfile.MethodNode{
		Name: "onTick", Desc: "(II)V", Access: classfile.AccStatic, // (I)=target's own arg, (I)=the modifiable local
		Instructions: listOf(injectorRet),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{injector}}
	members := []*directive.Member{{
		Kind:   directive.KindInject,
		Method: injector,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "tick", Desc: "(I)V"},
			TargetSpec: target.Target{Kind: target.HEAD},
			Locals: []directive.LocalVariableSpec{
				{ByName: "count", ParamType: mustType("I"), Modifiable: true},
			},
		},
	}}

	res := NewInjectHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}

	if injector.Desc != "(II[Ljava/lang/Object;)V" {
		t.Fatalf("injector.Desc = %q, want a trailing Object[] parameter", injector.Desc)
	}

	last := injector.Instructions.Last()
	if last != injectorRet {
		t.Fatalf("RETURN should still be the last instruction after splicing in pack code")
	}
	prev := injector.Instructions.Prev(last)
	if _, ok := prev.(*classfile.ZeroInsn); !ok || prev.(*classfile.ZeroInsn).Opcode != classfile.AASTORE {
		t.Fatalf("expected an AASTORE immediately before RETURN to pack the modifiable local, got %#v", prev)
	}

	var call *classfile.MethodInsn
	for _, insn := range targetMethod.Instructions.All() {
		if mi, ok := insn.(*classfile.MethodInsn); ok && mi.Name == "onTick" {
			call = mi
			break
		}
	}
	if call == nil || call.Desc != injector.Desc {
		t.Fatalf("no call to onTick using its augmented descriptor found in %#v", targetMethod.Instructions.All())
	}
}

func TestRedirectHandlerReplacesStaticFieldGet(t *testing.T) {
	get := &classfile.FieldInsn{Opcode: classfile.GETSTATIC, Owner: "target/Foo", Name: "flag", Desc: "Z"}
	ret := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	targetMethod := &classfile.MethodNode{Name: "isFlagged", Desc: "()Z", Access: classfile.AccStatic, Instructions: listOf(get, ret)}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	redirector := &classfile.MethodNode{Name: "redirectFlag", Desc: "()Z", Access: classfile.AccStatic}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{redirector}}
	members := []*directive.Member{{
		Kind:   directive.KindRedirect,
		Method: redirector,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "isFlagged", Desc: "()Z"},
			TargetSpec: target.Target{Kind: target.GETFIELD, Argument: "Ltarget/Foo;flag:Z", Shift: target.Before},
		},
	}}

	res := NewRedirectHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	first := targetMethod.Instructions.First()
	mi, ok := first.(*classfile.MethodInsn)
	if !ok || mi.Name != "redirectFlag" {
		t.Fatalf("first instruction = %#v, want a call to redirectFlag", first)
	}
}

func TestModifyConstantHandlerSplicesCallAfterConstant(t *testing.T) {
	ldc := &classfile.LdcInsn{Value: int32(5)}
	ret := &classfile.ZeroInsn{Opcode: classfile.IRETURN}
	targetMethod := &classfile.MethodNode{Name: "limit", Desc: "()I", Access: classfile.AccStatic, Instructions: listOf(ldc, ret)}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{targetMethod}}

	modifier := &classfile.MethodNode{Name: "modifyLimit", Desc: "(I)I", Access: classfile.AccStatic}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{modifier}}
	members := []*directive.Member{{
		Kind:   directive.KindModifyConstant,
		Method: modifier,
		Directive: directive.MemberDirective{
			Method:     directive.MethodPattern{Name: "limit", Desc: "()I"},
			TargetSpec: target.Target{Kind: target.CONSTANT, Argument: "5", Shift: target.Before},
		},
	}}

	res := NewModifyConstantHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	second := targetMethod.Instructions.Next(ldc)
	mi, ok := second.(*classfile.MethodInsn)
	if !ok || mi.Name != "modifyLimit" {
		t.Fatalf("instruction after the constant = %#v, want a call to modifyLimit", second)
	}
}

func TestInlineHandlerFoldsConstantAndDropsAccessor(t *testing.T) {
	accessor := &classfile.MethodNode{
		Name: "maxRetries", Desc: "()I", Access: classfile.AccStatic | classfile.AccPrivate,
		Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.ICONST_3}, &classfile.ZeroInsn{Opcode: classfile.IRETURN}),
	}
	caller := &classfile.MethodNode{
		Name: "attempt", Desc: "()V", Access: classfile.AccStatic,
		Instructions: listOf(&classfile.MethodInsn{Opcode: classfile.INVOKESTATIC, Owner: "mix/FooMixin", Name: "maxRetries", Desc: "()I"}, &classfile.ZeroInsn{Opcode: classfile.RETURN}),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{accessor, caller}}
	members := []*directive.Member{{Kind: directive.KindInline, Method: accessor}}

	res := NewInlineHandler().Apply(newCtx(), &classfile.ClassNode{Name: "target/Foo"}, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	if transformer.FindMethod("maxRetries", "()I") != nil {
		t.Fatal("inline accessor should have been dropped from the transformer")
	}
	first := caller.Instructions.First()
	if _, ok := first.(*classfile.ZeroInsn); !ok || first.Op() != classfile.ICONST_3 {
		t.Fatalf("caller's first instruction = %#v, want the folded ICONST_3", first)
	}
}

func TestUpgradeHandlerMovesBodyAndDiscardsOriginal(t *testing.T) {
	existing := &classfile.MethodNode{
		Name: "compute", Desc: "()I", Access: classfile.AccStatic,
		Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.ICONST_1}, &classfile.ZeroInsn{Opcode: classfile.IRETURN}),
	}
	tgt := &classfile.ClassNode{Name: "target/Foo", Methods: []*classfile.MethodNode{existing}}
	upgrade := &classfile.MethodNode{
		Name: "compute", Desc: "()I", Access: classfile.AccStatic,
		Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.ICONST_2}, &classfile.ZeroInsn{Opcode: classfile.IRETURN}),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{upgrade}}
	members := []*directive.Member{{Kind: directive.KindUpgrade, Method: upgrade}}

	res := NewUpgradeHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	first, ok := existing.Instructions.First().(*classfile.ZeroInsn)
	if !ok || first.Opcode != classfile.ICONST_2 {
		t.Fatalf("existing.Instructions.First() = %#v, want the upgrade body's ICONST_2", existing.Instructions.First())
	}
	if tgt.FindMethod("compute$original", "()I") != nil {
		t.Fatal("Upgrade must discard the original body, not preserve it under an alias")
	}
}

func TestUpgradeHandlerRejectsFieldDirective(t *testing.T) {
	field := &classfile.FieldNode{Name: "state", Desc: "I"}
	tgt := &classfile.ClassNode{Name: "target/Foo", Fields: []*classfile.FieldNode{field}}
	ref := &classfile.FieldNode{Name: "state", Desc: "I"}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Fields: []*classfile.FieldNode{ref}}
	members := []*directive.Member{{Kind: directive.KindUpgrade, Field: ref}}

	res := NewUpgradeHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Failed {
		t.Fatalf("outcome = %v, want Failed: @Upgrade moves a method body, it has no field form", res.Outcome)
	}
}

func TestMemberCopyHandlerSkipsShadowedMembers(t *testing.T) {
	tgt := &classfile.ClassNode{Name: "target/Foo"}
	shadow := &classfile.MethodNode{Name: "shadowed", Desc: "()V"}
	helper := &classfile.MethodNode{Name: "helper", Desc: "()V", Instructions: listOf(&classfile.ZeroInsn{Opcode: classfile.RETURN})}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{shadow, helper}}
	members := []*directive.Member{{Kind: directive.KindShadow, Method: shadow}}

	res := NewMemberCopyHandler().Apply(newCtx(), tgt, transformer, members)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	if tgt.FindMethod("shadowed", "()V") != nil {
		t.Fatal("shadowed method should not have been copied onto the target")
	}
	if tgt.FindMethod("helper", "()V") == nil {
		t.Fatal("plain helper method should have been copied onto the target")
	}
}

func TestMemberCopyHandlerRewritesSelfReferencesViaIdentifierMap(t *testing.T) {
	tgt := &classfile.ClassNode{Name: "target/Foo"}
	helper := &classfile.MethodNode{
		Name: "helper", Desc: "()V",
		Instructions: listOf(&classfile.MethodInsn{Opcode: classfile.INVOKEVIRTUAL, Owner: "mix/FooMixin", Name: "shadowed", Desc: "()V"}, &classfile.ZeroInsn{Opcode: classfile.RETURN}),
	}
	transformer := &classfile.ClassNode{Name: "mix/FooMixin", Methods: []*classfile.MethodNode{helper}}
	ctx := newCtx()
	ctx.IdentifierMap[methodKey("mix/FooMixin", "shadowed", "()V")] = "realName"

	res := NewMemberCopyHandler().Apply(ctx, tgt, transformer, nil)
	if res.Outcome != Applied {
		t.Fatalf("outcome = %v, want Applied (err=%v)", res.Outcome, res.Err)
	}
	copied := tgt.FindMethod("helper", "()V")
	if copied == nil {
		t.Fatal("helper method was not copied")
	}
	call := copied.Instructions.First().(*classfile.MethodInsn)
	if call.Owner != "target/Foo" || call.Name != "realName" {
		t.Fatalf("self-reference not rewritten: %+v", call)
	}
}
