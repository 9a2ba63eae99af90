package classfile

import (
	"fmt"
	"strings"
)

// Sort classifies a Type's primitive/reference kind.
type Sort int

const (
	SortVoid Sort = iota
	SortBoolean
	SortByte
	SortChar
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortObject
	SortArray
)

// Type is a parsed JVM field/method descriptor fragment, e.g. "I", "J",
// "Ljava/lang/String;", "[[I".
type Type struct {
	descriptor string
	sort       Sort
}

func (t Type) Sort() Sort        { return t.sort }
func (t Type) Descriptor() string { return t.descriptor }
func (t Type) IsVoid() bool       { return t.sort == SortVoid }
func (t Type) IsPrimitive() bool {
	return t.sort >= SortBoolean && t.sort <= SortDouble
}
func (t Type) IsReference() bool { return t.sort == SortObject || t.sort == SortArray }

// InternalName returns the internal class name for an object type (strips
// the leading 'L' and trailing ';'). Panics if called on a non-object type;
// callers must check Sort() first.
func (t Type) InternalName() string {
	if t.sort != SortObject {
		panic(fmt.Sprintf("classfile: InternalName of non-object type %q", t.descriptor))
	}
	return t.descriptor[1 : len(t.descriptor)-1]
}

func (t Type) String() string { return t.descriptor }

var primitiveSorts = map[byte]Sort{
	'V': SortVoid,
	'Z': SortBoolean,
	'B': SortByte,
	'C': SortChar,
	'S': SortShort,
	'I': SortInt,
	'F': SortFloat,
	'J': SortLong,
	'D': SortDouble,
}

// ParseType parses a single field descriptor starting at desc[0] and
// returns the Type plus the number of bytes consumed.
func ParseType(desc string) (Type, int, error) {
	if desc == "" {
		return Type{}, 0, fmt.Errorf("classfile: empty type descriptor")
	}
	switch desc[0] {
	case 'L':
		idx := strings.IndexByte(desc, ';')
		if idx < 0 {
			return Type{}, 0, fmt.Errorf("classfile: unterminated object descriptor %q", desc)
		}
		return Type{descriptor: desc[:idx+1], sort: SortObject}, idx + 1, nil
	case '[':
		_, n, err := ParseType(desc[1:])
		if err != nil {
			return Type{}, 0, err
		}
		return Type{descriptor: desc[:1+n], sort: SortArray}, 1 + n, nil
	default:
		if sort, ok := primitiveSorts[desc[0]]; ok {
			return Type{descriptor: desc[:1], sort: sort}, 1, nil
		}
		return Type{}, 0, fmt.Errorf("classfile: unknown type descriptor byte %q in %q", desc[0], desc)
	}
}

// MethodDescriptor is a parsed "(arg...)ret" method descriptor.
type MethodDescriptor struct {
	Raw    string
	Args   []Type
	Return Type
}

// ParseMethodDescriptor parses "(I[Ljava/lang/String;)Z"-shaped descriptors.
func ParseMethodDescriptor(desc string) (MethodDescriptor, error) {
	if len(desc) < 2 || desc[0] != '(' {
		return MethodDescriptor{}, fmt.Errorf("classfile: malformed method descriptor %q", desc)
	}
	close := strings.IndexByte(desc, ')')
	if close < 0 {
		return MethodDescriptor{}, fmt.Errorf("classfile: unterminated method descriptor %q", desc)
	}
	argStr := desc[1:close]
	var args []Type
	for len(argStr) > 0 {
		t, n, err := ParseType(argStr)
		if err != nil {
			return MethodDescriptor{}, err
		}
		args = append(args, t)
		argStr = argStr[n:]
	}
	ret, n, err := ParseType(desc[close+1:])
	if err != nil {
		return MethodDescriptor{}, err
	}
	if n != len(desc)-close-1 {
		return MethodDescriptor{}, fmt.Errorf("classfile: trailing garbage in method descriptor %q", desc)
	}
	return MethodDescriptor{Raw: desc, Args: args, Return: ret}, nil
}

// ArgsWidth returns the total local-variable slot width of the argument
// list (used when computing the first free slot for an instance method,
// which reserves slot 0 for `this`).
func (m MethodDescriptor) ArgsWidth() int {
	w := 0
	for _, a := range m.Args {
		w += Width(a)
	}
	return w
}

// Equal reports whether two method descriptors describe the same argument
// and return types (exact string comparison of the canonical form).
func (m MethodDescriptor) Equal(other MethodDescriptor) bool {
	return m.Raw == other.Raw
}

// BuildMethodDescriptor renders args/ret back into descriptor form.
func BuildMethodDescriptor(args []Type, ret Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		b.WriteString(a.Descriptor())
	}
	b.WriteByte(')')
	b.WriteString(ret.Descriptor())
	return b.String()
}

// ObjectType builds an object Type from an internal name ("java/lang/String").
func ObjectType(internalName string) Type {
	return Type{descriptor: "L" + internalName + ";", sort: SortObject}
}

var voidType = Type{descriptor: "V", sort: SortVoid}

// Void returns the void pseudo-type.
func Void() Type { return voidType }
