package remap

import (
	"testing"

	"github.com/quillbyte/classmorph/internal/classfile"
)

func TestMapDescRewritesEmbeddedClassNames(t *testing.T) {
	r := New()
	r.AddClassMapping("a/B", "x/Y")
	got := r.MapDesc("(La/B;I)La/B;")
	want := "(Lx/Y;I)Lx/Y;"
	if got != want {
		t.Errorf("MapDesc = %q, want %q", got, want)
	}
}

func TestReverseIsIdempotentOnceBuilt(t *testing.T) {
	r := New()
	r.AddClassMapping("a/B", "x/Y")
	rev1 := r.Reverse()
	rev2 := r.Reverse()
	if rev1 != rev2 {
		t.Errorf("Reverse() rebuilt without an intervening mutation")
	}
	if rev1.MapClassName("x/Y") != "a/B" {
		t.Errorf("reverse mapping incorrect: got %q", rev1.MapClassName("x/Y"))
	}
}

func TestReverseInvalidatedOnMutation(t *testing.T) {
	r := New()
	r.AddClassMapping("a/B", "x/Y")
	rev1 := r.Reverse()
	r.AddClassMapping("c/D", "z/W")
	rev2 := r.Reverse()
	if rev1 == rev2 {
		t.Errorf("Reverse() should rebuild after a mutation")
	}
	if rev2.MapClassName("z/W") != "c/D" {
		t.Errorf("new mapping missing from rebuilt reverse")
	}
}

func TestRewriteClassNodeIsIdempotent(t *testing.T) {
	r := New()
	r.AddClassMapping("transformer/T", "target/Target")

	m := &classfile.MethodNode{Name: "hook", Desc: "()V", Instructions: classfile.NewInsnList()}
	m.Instructions.Append(&classfile.FieldInsn{Opcode: classfile.GETSTATIC, Owner: "transformer/T", Name: "f", Desc: "I"})
	cls := &classfile.ClassNode{Name: "transformer/T", Methods: []*classfile.MethodNode{m}}

	once := RewriteClassNode(r, cls)
	if once.Name != "target/Target" {
		t.Fatalf("Name = %q, want target/Target", once.Name)
	}

	twice := RewriteClassNode(r, once)
	if twice != once {
		t.Errorf("second RewriteClassNode call should be a no-op returning the same node")
	}
}

func TestRewriteClassNodeDoesNotMutateOriginal(t *testing.T) {
	r := New()
	r.AddClassMapping("transformer/T", "target/Target")
	cls := &classfile.ClassNode{Name: "transformer/T", Methods: nil}
	out := RewriteClassNode(r, cls)
	if cls.Name != "transformer/T" {
		t.Errorf("original class node was mutated: %q", cls.Name)
	}
	if out.Name != "target/Target" {
		t.Errorf("rewritten clone has wrong name: %q", out.Name)
	}
}
