package classfile

// Instruction is the tagged-variant element of a method's instruction list
// (spec §3). Each concrete type below corresponds to one of the kinds the
// spec's data model enumerates: Var, Field, Method, Jump, Label, Type, Ldc,
// Insn (zero-operand), IntPush, InvokeDynamic, LineNumber, Frame. Naming
// follows the visitor vocabulary of the ASM-style MethodVisitor contract
// (VisitVarInsn, VisitFieldInsn, ...; see DESIGN.md).
type Instruction interface {
	// Op returns the instruction's opcode.
	Op() Opcode
	// Clone returns a deep copy with no list linkage.
	Clone() Instruction

	node() *insnNode
	setNode(*insnNode)
}

// base is embedded by every concrete instruction type to carry its position
// in an InsnList without requiring the list itself to know about each kind.
type base struct {
	n *insnNode
}

func (b *base) node() *insnNode      { return b.n }
func (b *base) setNode(n *insnNode) { b.n = n }

// VarInsn is a local-variable load/store: ILOAD, ASTORE, etc.
type VarInsn struct {
	base
	Opcode Opcode
	Var    int
}

func (i *VarInsn) Op() Opcode { return i.Opcode }
func (i *VarInsn) Clone() Instruction {
	return &VarInsn{Opcode: i.Opcode, Var: i.Var}
}

// FieldInsn is GETFIELD/PUTFIELD/GETSTATIC/PUTSTATIC.
type FieldInsn struct {
	base
	Opcode Opcode
	Owner  string
	Name   string
	Desc   string
}

func (i *FieldInsn) Op() Opcode { return i.Opcode }
func (i *FieldInsn) Clone() Instruction {
	return &FieldInsn{Opcode: i.Opcode, Owner: i.Owner, Name: i.Name, Desc: i.Desc}
}

// MethodInsn is INVOKEVIRTUAL/INVOKESPECIAL/INVOKESTATIC/INVOKEINTERFACE.
type MethodInsn struct {
	base
	Opcode      Opcode
	Owner       string
	Name        string
	Desc        string
	IsInterface bool
}

func (i *MethodInsn) Op() Opcode { return i.Opcode }
func (i *MethodInsn) Clone() Instruction {
	return &MethodInsn{Opcode: i.Opcode, Owner: i.Owner, Name: i.Name, Desc: i.Desc, IsInterface: i.IsInterface}
}

// JumpInsn is GOTO/IFxx/IFNULL/IFNONNULL, referencing a LabelInsn target.
type JumpInsn struct {
	base
	Opcode Opcode
	Target *LabelInsn
}

func (i *JumpInsn) Op() Opcode { return i.Opcode }
func (i *JumpInsn) Clone() Instruction {
	return &JumpInsn{Opcode: i.Opcode, Target: i.Target}
}

// LabelInsn is a branch target / try-catch boundary marker. Two LabelInsn
// values are the same label iff they are the same pointer.
type LabelInsn struct {
	base
}

func (i *LabelInsn) Op() Opcode { return -1 }
func (i *LabelInsn) Clone() Instruction {
	return &LabelInsn{}
}

// TypeInsn is NEW/ANEWARRAY/CHECKCAST/INSTANCEOF, carrying an internal name.
type TypeInsn struct {
	base
	Opcode Opcode
	Type   string
}

func (i *TypeInsn) Op() Opcode { return i.Opcode }
func (i *TypeInsn) Clone() Instruction {
	return &TypeInsn{Opcode: i.Opcode, Type: i.Type}
}

// LdcInsn loads an arbitrary constant (string, number, class literal) from
// the constant pool.
type LdcInsn struct {
	base
	Value interface{}
}

func (i *LdcInsn) Op() Opcode { return LDC }
func (i *LdcInsn) Clone() Instruction {
	return &LdcInsn{Value: i.Value}
}

// ZeroInsn is any zero-operand opcode: DUP, SWAP, POP, ATHROW, IRETURN, ...
type ZeroInsn struct {
	base
	Opcode Opcode
}

func (i *ZeroInsn) Op() Opcode { return i.Opcode }
func (i *ZeroInsn) Clone() Instruction {
	return &ZeroInsn{Opcode: i.Opcode}
}

// IntInsn is BIPUSH/SIPUSH/NEWARRAY, carrying a single integer operand.
type IntInsn struct {
	base
	Opcode  Opcode
	Operand int
}

func (i *IntInsn) Op() Opcode { return i.Opcode }
func (i *IntInsn) Clone() Instruction {
	return &IntInsn{Opcode: i.Opcode, Operand: i.Operand}
}

// InvokeDynamicInsn is an INVOKEDYNAMIC call site.
type InvokeDynamicInsn struct {
	base
	Name           string
	Desc           string
	BootstrapIndex int
}

func (i *InvokeDynamicInsn) Op() Opcode { return INVOKEDYNAMIC }
func (i *InvokeDynamicInsn) Clone() Instruction {
	return &InvokeDynamicInsn{Name: i.Name, Desc: i.Desc, BootstrapIndex: i.BootstrapIndex}
}

// LineNumberInsn attributes a source line number to the following label.
type LineNumberInsn struct {
	base
	Line  int
	Start *LabelInsn
}

func (i *LineNumberInsn) Op() Opcode { return -1 }
func (i *LineNumberInsn) Clone() Instruction {
	return &LineNumberInsn{Line: i.Line, Start: i.Start}
}

// FrameInsn is a stack-map-frame marker; the pipeline treats it as opaque
// and never reasons about its contents, only preserves/drops it.
type FrameInsn struct {
	base
	Raw interface{}
}

func (i *FrameInsn) Op() Opcode { return -1 }
func (i *FrameInsn) Clone() Instruction {
	return &FrameInsn{Raw: i.Raw}
}

// IsPseudo reports whether insn is a LabelInsn, LineNumberInsn, or
// FrameInsn — the three kinds HEAD must skip past (spec §4.1).
func IsPseudo(insn Instruction) bool {
	switch insn.(type) {
	case *LabelInsn, *LineNumberInsn, *FrameInsn:
		return true
	default:
		return false
	}
}
