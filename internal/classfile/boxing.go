package classfile

// boxInfo names the wrapper class and the valueOf/xValue method descriptors
// used to box/unbox a given primitive sort.
type boxInfo struct {
	wrapper  string
	boxDesc  string // descriptor of "valueOf(prim)Wrapper;"
	unboxName string
	unboxDesc string // descriptor of "primValue()prim"
}

var boxTable = map[Sort]boxInfo{
	SortBoolean: {"java/lang/Boolean", "(Z)Ljava/lang/Boolean;", "booleanValue", "()Z"},
	SortByte:    {"java/lang/Byte", "(B)Ljava/lang/Byte;", "byteValue", "()B"},
	SortChar:    {"java/lang/Character", "(C)Ljava/lang/Character;", "charValue", "()C"},
	SortShort:   {"java/lang/Short", "(S)Ljava/lang/Short;", "shortValue", "()S"},
	SortInt:     {"java/lang/Integer", "(I)Ljava/lang/Integer;", "intValue", "()I"},
	SortFloat:   {"java/lang/Float", "(F)Ljava/lang/Float;", "floatValue", "()F"},
	SortLong:    {"java/lang/Long", "(J)Ljava/lang/Long;", "longValue", "()J"},
	SortDouble:  {"java/lang/Double", "(D)Ljava/lang/Double;", "doubleValue", "()D"},
}

// NeedsBoxing reports whether t is a primitive sort that must be boxed to
// flow through an Object-typed slot (e.g. the Callback's return-value
// channel, or a modifiable local's Object[] cell).
func NeedsBoxing(t Type) bool {
	if !t.IsPrimitive() {
		return false
	}
	_, ok := boxTable[t.Sort()]
	return ok
}

// EmitBox appends the instructions that box the value of primitive type t
// currently on top of the operand stack into its wrapper type, onto list.
func EmitBox(list *InsnList, t Type) {
	info, ok := boxTable[t.Sort()]
	if !ok {
		return // already a reference type
	}
	list.Append(&MethodInsn{
		Opcode: INVOKESTATIC,
		Owner:  info.wrapper,
		Name:   "valueOf",
		Desc:   info.boxDesc,
	})
}

// EmitUnbox appends the instructions that unbox a wrapper reference on top
// of the stack down to primitive type t, onto list. It emits the CHECKCAST
// to the wrapper type itself, so the value on the stack may be statically
// typed as plain Object.
func EmitUnbox(list *InsnList, t Type) {
	info, ok := boxTable[t.Sort()]
	if !ok {
		return
	}
	list.Append(&TypeInsn{Opcode: CHECKCAST, Type: info.wrapper})
	list.Append(&MethodInsn{
		Opcode: INVOKEVIRTUAL,
		Owner:  info.wrapper,
		Name:   info.unboxName,
		Desc:   info.unboxDesc,
	})
}

// WrapperInternalName returns the boxed wrapper's internal name for
// primitive sort t, or "" if t is already a reference type.
func WrapperInternalName(t Type) string {
	info, ok := boxTable[t.Sort()]
	if !ok {
		return ""
	}
	return info.wrapper
}
