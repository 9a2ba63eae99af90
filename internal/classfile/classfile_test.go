package classfile

import "testing"

func TestParseMethodDescriptor(t *testing.T) {
	d, err := ParseMethodDescriptor("(ILjava/lang/String;[I)Z")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(d.Args) != 3 {
		t.Fatalf("want 3 args, got %d", len(d.Args))
	}
	if d.Args[0].Sort() != SortInt {
		t.Errorf("arg0 sort = %v, want SortInt", d.Args[0].Sort())
	}
	if d.Args[1].Sort() != SortObject || d.Args[1].InternalName() != "java/lang/String" {
		t.Errorf("arg1 = %+v, want object java/lang/String", d.Args[1])
	}
	if d.Args[2].Sort() != SortArray {
		t.Errorf("arg2 sort = %v, want SortArray", d.Args[2].Sort())
	}
	if d.Return.Sort() != SortBoolean {
		t.Errorf("return sort = %v, want SortBoolean", d.Return.Sort())
	}
}

func TestArgsWidthAccountsForWideTypes(t *testing.T) {
	d, err := ParseMethodDescriptor("(IJD)V")
	if err != nil {
		t.Fatal(err)
	}
	if w := d.ArgsWidth(); w != 5 { // I(1) + J(2) + D(2) = 5
		t.Errorf("ArgsWidth = %d, want 5", w)
	}
}

func TestFirstFreeLocalInstanceMethod(t *testing.T) {
	m := &MethodNode{Access: 0, Desc: "(IJ)V", Instructions: NewInsnList()}
	// this(1) + I(1) + J(2) = 4
	if got := m.FirstFreeLocal(); got != 4 {
		t.Errorf("FirstFreeLocal = %d, want 4", got)
	}
}

func TestFirstFreeLocalStaticMethod(t *testing.T) {
	m := &MethodNode{Access: AccStatic, Desc: "(IJ)V", Instructions: NewInsnList()}
	if got := m.FirstFreeLocal(); got != 3 {
		t.Errorf("FirstFreeLocal = %d, want 3", got)
	}
}

func TestInsnListInsertAndClone(t *testing.T) {
	list := NewInsnList()
	a := &ZeroInsn{Opcode: NOP}
	b := &ZeroInsn{Opcode: RETURN}
	list.Append(a)
	list.Append(b)
	mid := &ZeroInsn{Opcode: DUP}
	list.InsertAfter(a, mid)

	got := list.All()
	if len(got) != 3 || got[0] != Instruction(a) || got[1] != Instruction(mid) || got[2] != Instruction(b) {
		t.Fatalf("unexpected order after InsertAfter: %v", got)
	}

	clone := list.Clone()
	if clone.Len() != 3 {
		t.Fatalf("clone length = %d, want 3", clone.Len())
	}
	if clone.First() == list.First() {
		t.Errorf("clone shares identity with original")
	}
}

func TestInsnListCloneRewritesJumpTargets(t *testing.T) {
	list := NewInsnList()
	label := &LabelInsn{}
	jump := &JumpInsn{Opcode: GOTO, Target: label}
	list.Append(jump)
	list.Append(label)

	clone := list.Clone()
	clonedJump := clone.First().(*JumpInsn)
	clonedLabel := clone.Last().(*LabelInsn)
	if clonedJump.Target != clonedLabel {
		t.Errorf("cloned jump target does not point at cloned label")
	}
	if clonedJump.Target == label {
		t.Errorf("cloned jump target still points at original label")
	}
}

func TestReplaceRange(t *testing.T) {
	list := NewInsnList()
	a, b, c, d := &ZeroInsn{Opcode: NOP}, &ZeroInsn{Opcode: DUP}, &ZeroInsn{Opcode: POP}, &ZeroInsn{Opcode: RETURN}
	list.Append(a)
	list.Append(b)
	list.Append(c)
	list.Append(d)

	repl := NewInsnList()
	repl.Append(&ZeroInsn{Opcode: SWAP})

	list.ReplaceRange(b, c, repl)
	got := list.All()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != Instruction(a) || got[2] != Instruction(d) {
		t.Fatalf("unexpected surrounding instructions: %v", got)
	}
	if z, ok := got[1].(*ZeroInsn); !ok || z.Opcode != SWAP {
		t.Fatalf("middle instruction = %v, want SWAP", got[1])
	}
}

func TestLoadStoreReturnOpcodeSelection(t *testing.T) {
	cases := []struct {
		desc string
		load, store, ret Opcode
	}{
		{"I", ILOAD, ISTORE, IRETURN},
		{"J", LLOAD, LSTORE, LRETURN},
		{"F", FLOAD, FSTORE, FRETURN},
		{"D", DLOAD, DSTORE, DRETURN},
		{"Ljava/lang/Object;", ALOAD, ASTORE, ARETURN},
	}
	for _, c := range cases {
		ty, _, err := ParseType(c.desc)
		if err != nil {
			t.Fatal(err)
		}
		if got := LoadOpcode(ty); got != c.load {
			t.Errorf("%s: LoadOpcode = %v, want %v", c.desc, got, c.load)
		}
		if got := StoreOpcode(ty); got != c.store {
			t.Errorf("%s: StoreOpcode = %v, want %v", c.desc, got, c.store)
		}
		if got := ReturnOpcode(ty); got != c.ret {
			t.Errorf("%s: ReturnOpcode = %v, want %v", c.desc, got, c.ret)
		}
	}
	if got := ReturnOpcode(Void()); got != RETURN {
		t.Errorf("ReturnOpcode(void) = %v, want RETURN", got)
	}
}

func TestClassNodeCloneIsIndependent(t *testing.T) {
	c := &ClassNode{
		Name: "a/B",
		Methods: []*MethodNode{
			{Name: "m", Desc: "()V", Instructions: NewInsnList()},
		},
	}
	clone := c.Clone()
	clone.Methods[0].Name = "renamed"
	if c.Methods[0].Name != "m" {
		t.Errorf("mutating clone mutated original")
	}
}
