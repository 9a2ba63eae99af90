package classfile

// Access flags, the subset the pipeline inspects or mutates.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
	AccAnnotation = 0x2000
	AccEnum      = 0x4000
)

// AnnotationNode is a single class/method/field/parameter annotation, as
// attached by the (out-of-scope) annotation-parsing reflection glue. Values
// are either primitives, strings, Type (for class-literal annotation
// members), or nested []AnnotationValue for arrays.
type AnnotationNode struct {
	Desc    string
	Visible bool
	Values  map[string]interface{}
}

// TypeValue wraps a Type so it is distinguishable from a plain string
// inside an AnnotationNode's Values map (spec §4.4: "Type-valued
// attributes" are remapped, plain string-named targets are remapped too
// but via a different path).
type TypeValue struct{ Type Type }

// LocalVariableNode is one entry of a method's local-variable table.
type LocalVariableNode struct {
	Name       string
	Desc       string
	Index      int
	StartLabel *LabelInsn
	EndLabel   *LabelInsn
}

// TryCatchBlockNode is one exception-table entry.
type TryCatchBlockNode struct {
	Start, End, Handler *LabelInsn
	Type                string // internal name of the caught exception, "" for finally
	// Synthetic marks a handler inserted by WrapCatch (resolves the THROW
	// vs framework-inserted-catch open question; see DESIGN.md).
	Synthetic bool
}

// ParameterAnnotations maps parameter index to its annotations.
type ParameterAnnotations map[int][]AnnotationNode

// MethodNode is a method body: access, name+descriptor, instructions,
// local-variable table, exception table, parameter annotations.
type MethodNode struct {
	Access     int
	Name       string
	Desc       string
	Signature  string
	Instructions *InsnList
	MaxStack   int
	MaxLocals  int
	Locals     []LocalVariableNode
	TryCatch   []TryCatchBlockNode
	Annotations        []AnnotationNode
	ParamAnnotations   ParameterAnnotations
	Exceptions []string // declared checked exceptions (internal names)
}

func (m *MethodNode) IsStatic() bool { return m.Access&AccStatic != 0 }

// Descriptor returns the parsed method descriptor, panicking on malformed
// input — callers operate on already-validated class files.
func (m *MethodNode) Descriptor() MethodDescriptor {
	d, err := ParseMethodDescriptor(m.Desc)
	if err != nil {
		panic(err)
	}
	return d
}

// FirstFreeLocal returns the first local-variable slot not occupied by
// `this` (for instance methods) or the method's declared arguments —
// i.e. the free-variable-slot computation named in spec §2.
func (m *MethodNode) FirstFreeLocal() int {
	slot := 0
	if !m.IsStatic() {
		slot++
	}
	slot += m.Descriptor().ArgsWidth()
	return slot
}

// Clone returns a deep copy of the method, safe to mutate independently of
// the original (spec invariant 3: registry-stored transformer class nodes
// are immutable; mutation happens on a clone).
func (m *MethodNode) Clone() *MethodNode {
	out := &MethodNode{
		Access:    m.Access,
		Name:      m.Name,
		Desc:      m.Desc,
		Signature: m.Signature,
		MaxStack:  m.MaxStack,
		MaxLocals: m.MaxLocals,
	}
	insns, labelMap := m.Instructions.CloneWithLabelMap(nil)
	out.Instructions = insns
	for _, tc := range m.TryCatch {
		out.TryCatch = append(out.TryCatch, TryCatchBlockNode{
			Start:     remapLabel(tc.Start, labelMap),
			End:       remapLabel(tc.End, labelMap),
			Handler:   remapLabel(tc.Handler, labelMap),
			Type:      tc.Type,
			Synthetic: tc.Synthetic,
		})
	}
	for _, lv := range m.Locals {
		out.Locals = append(out.Locals, LocalVariableNode{
			Name:       lv.Name,
			Desc:       lv.Desc,
			Index:      lv.Index,
			StartLabel: remapLabel(lv.StartLabel, labelMap),
			EndLabel:   remapLabel(lv.EndLabel, labelMap),
		})
	}
	out.Annotations = cloneAnnotations(m.Annotations)
	if m.ParamAnnotations != nil {
		out.ParamAnnotations = make(ParameterAnnotations, len(m.ParamAnnotations))
		for k, v := range m.ParamAnnotations {
			out.ParamAnnotations[k] = cloneAnnotations(v)
		}
	}
	out.Exceptions = append([]string(nil), m.Exceptions...)
	return out
}

func cloneAnnotations(in []AnnotationNode) []AnnotationNode {
	if in == nil {
		return nil
	}
	out := make([]AnnotationNode, len(in))
	for i, a := range in {
		vals := make(map[string]interface{}, len(a.Values))
		for k, v := range a.Values {
			vals[k] = v
		}
		out[i] = AnnotationNode{Desc: a.Desc, Visible: a.Visible, Values: vals}
	}
	return out
}

// FieldNode is a class field declaration.
type FieldNode struct {
	Access      int
	Name        string
	Desc        string
	Signature   string
	Value       interface{} // constant value, for static final fields
	Annotations []AnnotationNode
}

func (f *FieldNode) IsStatic() bool { return f.Access&AccStatic != 0 }

func (f *FieldNode) Clone() *FieldNode {
	return &FieldNode{
		Access:      f.Access,
		Name:        f.Name,
		Desc:        f.Desc,
		Signature:   f.Signature,
		Value:       f.Value,
		Annotations: cloneAnnotations(f.Annotations),
	}
}

// InnerClassNode is one entry of the InnerClasses attribute.
type InnerClassNode struct {
	Name       string // internal name of the inner class
	OuterName  string
	InnerName  string
	Access     int
}

// ClassNode is the typed view of a class file (spec §3).
type ClassNode struct {
	Name        string // internal name, e.g. "a/b/C"
	Access      int
	SuperName   string
	Interfaces  []string
	Fields      []*FieldNode
	Methods     []*MethodNode
	InnerClasses []InnerClassNode
	Annotations []AnnotationNode

	// Remapped marks that a remap.RewriteClassNode pass has already run against this
	// node, so a second pass is a no-op (spec invariant 2).
	Remapped bool
}

// FindMethod returns the method with the given name+descriptor, or nil.
func (c *ClassNode) FindMethod(name, desc string) *MethodNode {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// FindField returns the field with the given name (and, if desc != "",
// matching descriptor), or nil.
func (c *ClassNode) FindField(name, desc string) *FieldNode {
	for _, f := range c.Fields {
		if f.Name == name && (desc == "" || f.Desc == desc) {
			return f
		}
	}
	return nil
}

// Annotation returns the class-level annotation with the given descriptor,
// or nil if absent.
func (c *ClassNode) Annotation(desc string) *AnnotationNode {
	for i := range c.Annotations {
		if c.Annotations[i].Desc == desc {
			return &c.Annotations[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the whole class node (spec invariant 3).
func (c *ClassNode) Clone() *ClassNode {
	out := &ClassNode{
		Name:       c.Name,
		Access:     c.Access,
		SuperName:  c.SuperName,
		Interfaces: append([]string(nil), c.Interfaces...),
	}
	for _, f := range c.Fields {
		out.Fields = append(out.Fields, f.Clone())
	}
	for _, m := range c.Methods {
		out.Methods = append(out.Methods, m.Clone())
	}
	out.InnerClasses = append([]InnerClassNode(nil), c.InnerClasses...)
	out.Annotations = cloneAnnotations(c.Annotations)
	return out
}
