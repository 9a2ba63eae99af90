package registry

import (
	"testing"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

func TestRebindMembersPointsAtCloneNotOriginal(t *testing.T) {
	node := &classfile.ClassNode{
		Name: "mix/FooMixin",
		Methods: []*classfile.MethodNode{
			{Name: "a", Desc: "()V", Instructions: classfile.NewInsnList()},
			{Name: "b", Desc: "()V", Instructions: classfile.NewInsnList()},
		},
		Fields: []*classfile.FieldNode{
			{Name: "flag", Desc: "Z"},
		},
	}
	entry := &TransformerEntry{
		Node: node,
		Members: []*directive.Member{
			{Kind: directive.KindInject, Method: node.Methods[1], DeclOrder: 0},
			{Kind: directive.KindShadow, Field: node.Fields[0], DeclOrder: 1},
		},
	}

	clone := node.Clone()
	rebound := entry.RebindMembers(clone)

	if len(rebound) != len(entry.Members) {
		t.Fatalf("len(rebound) = %d, want %d", len(rebound), len(entry.Members))
	}
	if rebound[0].Method != clone.Methods[1] {
		t.Errorf("rebound[0].Method = %p, want clone.Methods[1] (%p)", rebound[0].Method, clone.Methods[1])
	}
	if rebound[0].Method == node.Methods[1] {
		t.Errorf("rebound[0].Method still points at the registry's own node")
	}
	if rebound[1].Field != clone.Fields[0] {
		t.Errorf("rebound[1].Field = %p, want clone.Fields[0] (%p)", rebound[1].Field, clone.Fields[0])
	}

	rebound[0].Method.Desc = "([Ljava/lang/Object;)V"
	if node.Methods[1].Desc != "()V" {
		t.Errorf("mutating the rebound member's method mutated the registry's own node: %s", node.Methods[1].Desc)
	}
}
