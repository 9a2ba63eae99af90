// Package target implements the injection target resolver (spec §4.1):
// given a symbolic target descriptor and a method body, it returns the
// ordered list of anchor instructions the directive applies to, plus the
// shift each anchor carries. This is the piece every annotation handler
// that splices or replaces code (Inject, Redirect, ModifyConstant,
// WrapCatch) calls before touching a single instruction.
package target

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quillbyte/classmorph/internal/classfile"
)

// Kind is one of the eleven symbolic injection-target kinds spec §3
// enumerates.
type Kind int

const (
	HEAD Kind = iota
	RETURN
	TAIL
	THROW
	INVOKE
	FIELD
	GETFIELD
	PUTFIELD
	NEW
	OPCODE
	CONSTANT
)

func (k Kind) String() string {
	switch k {
	case HEAD:
		return "HEAD"
	case RETURN:
		return "RETURN"
	case TAIL:
		return "TAIL"
	case THROW:
		return "THROW"
	case INVOKE:
		return "INVOKE"
	case FIELD:
		return "FIELD"
	case GETFIELD:
		return "GETFIELD"
	case PUTFIELD:
		return "PUTFIELD"
	case NEW:
		return "NEW"
	case OPCODE:
		return "OPCODE"
	case CONSTANT:
		return "CONSTANT"
	default:
		return "UNKNOWN"
	}
}

// Shift places an anchor's insertion relative to the matched instruction.
// Only Before/After apply here; TOP/BOTTOM (spec §3) are the registry's
// handler-list anchors, a different axis entirely (see internal/registry).
type Shift int

const (
	Before Shift = iota
	After
)

// Target is the directive's symbolic target descriptor: a kind plus the
// kind-specific argument string, and the shift to apply at each resolved
// anchor. The zero value (Kind: HEAD, Shift: Before) matches spec §4.1's
// stated default for HEAD.
type Target struct {
	Kind     Kind
	Argument string
	Shift    Shift
}

// Slice restricts an anchor set to the instructions between two
// independently-resolved bounds, inclusive (spec §4.1 "Slicing").
type Slice struct {
	From Target
	To   Target
}

// Directive is everything Resolve needs: the target itself, an optional
// slice, and whether an empty result is tolerated.
type Directive struct {
	Target   Target
	Slice    *Slice
	Optional bool
}

// Anchor is one resolved instruction plus the shift a caller should apply
// when splicing code in relative to it.
type Anchor struct {
	Instruction classfile.Instruction
	Shift       Shift
}

// ErrKind distinguishes the two ways Resolve can fail (spec §4.1 "Empty
// result policy").
type ErrKind int

const (
	// ErrInvalidTarget means the target/slice argument string itself did
	// not parse — the resolver returned null, not an empty list.
	ErrInvalidTarget ErrKind = iota
	// ErrTargetNotFound means resolution produced zero anchors and the
	// directive was not marked optional.
	ErrTargetNotFound
)

// ResolveError is returned by Resolve on InvalidTarget/TargetNotFound.
type ResolveError struct {
	Kind    ErrKind
	Message string
}

func (e *ResolveError) Error() string { return e.Message }

// Resolve locates the anchor instructions d.Target (and, if present,
// d.Slice) select inside method, applying spec §4.1's empty-result policy:
// a malformed target/slice argument is ErrInvalidTarget; an empty match
// that isn't Optional is ErrTargetNotFound; an empty match that is
// Optional returns (nil, nil) so callers simply skip the directive.
func Resolve(method *classfile.MethodNode, d Directive) ([]Anchor, error) {
	matched, err := matchKind(method, d.Target.Kind, d.Target.Argument)
	if err != nil {
		return nil, &ResolveError{Kind: ErrInvalidTarget, Message: fmt.Sprintf("%s target %q: %v", d.Target.Kind, d.Target.Argument, err)}
	}

	if d.Slice != nil {
		matched, err = applySlice(method, matched, *d.Slice)
		if err != nil {
			return nil, &ResolveError{Kind: ErrInvalidTarget, Message: fmt.Sprintf("slice bounds for %s target: %v", d.Target.Kind, err)}
		}
	}

	if len(matched) == 0 {
		if d.Optional {
			return nil, nil
		}
		return nil, &ResolveError{Kind: ErrTargetNotFound, Message: fmt.Sprintf("%s target %q matched no instructions in %s%s", d.Target.Kind, d.Target.Argument, method.Name, method.Desc)}
	}

	shift := d.Target.Shift
	if d.Target.Kind == HEAD {
		// Spec §4.1: "shift defaults to BEFORE" for HEAD — the only anchor
		// HEAD ever produces is the method's first real instruction, and
		// inserting after it would put the injected code after whatever
		// already runs first.
		shift = Before
	}

	anchors := make([]Anchor, len(matched))
	for i, insn := range matched {
		anchors[i] = Anchor{Instruction: insn, Shift: shift}
	}
	return anchors, nil
}

// matchKind resolves the raw candidate instruction set for one kind,
// ignoring slicing. Returns a parse error (wrapped as ErrInvalidTarget by
// Resolve) only when argument itself is malformed; an unmatched-but-
// well-formed target returns (nil, nil).
func matchKind(method *classfile.MethodNode, kind Kind, argument string) ([]classfile.Instruction, error) {
	switch kind {
	case HEAD:
		for _, insn := range method.Instructions.All() {
			if !classfile.IsPseudo(insn) {
				return []classfile.Instruction{insn}, nil
			}
		}
		return nil, nil

	case RETURN:
		return matchReturns(method), nil

	case TAIL:
		rets := matchReturns(method)
		if len(rets) == 0 {
			return nil, nil
		}
		return []classfile.Instruction{rets[len(rets)-1]}, nil

	case THROW:
		return matchThrow(method), nil

	case INVOKE:
		owner, name, desc, err := parseInvokeArg(argument)
		if err != nil {
			return nil, err
		}
		var out []classfile.Instruction
		for _, insn := range method.Instructions.All() {
			if mi, ok := insn.(*classfile.MethodInsn); ok && mi.Owner == owner && mi.Name == name && mi.Desc == desc {
				out = append(out, insn)
			}
		}
		return out, nil

	case FIELD, GETFIELD, PUTFIELD:
		owner, name, desc, err := parseFieldArg(argument)
		if err != nil {
			return nil, err
		}
		var out []classfile.Instruction
		for _, insn := range method.Instructions.All() {
			fi, ok := insn.(*classfile.FieldInsn)
			if !ok || fi.Owner != owner || fi.Name != name {
				continue
			}
			if desc != "" && fi.Desc != desc {
				continue
			}
			switch kind {
			case GETFIELD:
				if fi.Opcode != classfile.GETFIELD && fi.Opcode != classfile.GETSTATIC {
					continue
				}
			case PUTFIELD:
				if fi.Opcode != classfile.PUTFIELD && fi.Opcode != classfile.PUTSTATIC {
					continue
				}
			}
			out = append(out, insn)
		}
		return out, nil

	case NEW:
		owner, err := parseNewArg(argument)
		if err != nil {
			return nil, err
		}
		var out []classfile.Instruction
		for _, insn := range method.Instructions.All() {
			if ti, ok := insn.(*classfile.TypeInsn); ok && ti.Opcode == classfile.NEW && ti.Type == owner {
				out = append(out, insn)
			}
		}
		return out, nil

	case OPCODE:
		op, err := parseOpcodeArg(argument)
		if err != nil {
			return nil, err
		}
		var out []classfile.Instruction
		for _, insn := range method.Instructions.All() {
			if insn.Op() == op {
				out = append(out, insn)
			}
		}
		return out, nil

	case CONSTANT:
		var out []classfile.Instruction
		for _, insn := range method.Instructions.All() {
			if constantMatches(insn, argument) {
				out = append(out, insn)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown injection target kind %v", int(kind))
}

func matchReturns(method *classfile.MethodNode) []classfile.Instruction {
	var out []classfile.Instruction
	for _, insn := range method.Instructions.All() {
		if classfile.IsReturn(insn.Op()) {
			out = append(out, insn)
		}
	}
	return out
}

// matchThrow resolves THROW as every ATHROW in program order, except those
// inside a handler WrapCatch inserted on a prior pass (spec §9 open
// question 1's resolution; see DESIGN.md). Such a handler's body is always
// appended after every instruction that existed when it ran, so excluding
// everything at or past the earliest synthetic handler label is exact for
// how WrapCatch actually splices: nothing legitimate is ever appended
// after a synthetic handler within the same pass.
func matchThrow(method *classfile.MethodNode) []classfile.Instruction {
	all := method.Instructions.All()
	pos := make(map[classfile.Instruction]int, len(all))
	for i, insn := range all {
		pos[insn] = i
	}

	excludeFrom := -1
	for _, tc := range method.TryCatch {
		if !tc.Synthetic || tc.Handler == nil {
			continue
		}
		if idx, ok := pos[tc.Handler]; ok && (excludeFrom == -1 || idx < excludeFrom) {
			excludeFrom = idx
		}
	}

	var out []classfile.Instruction
	for i, insn := range all {
		if insn.Op() != classfile.ATHROW {
			continue
		}
		if excludeFrom >= 0 && i >= excludeFrom {
			continue
		}
		out = append(out, insn)
	}
	return out
}

// applySlice restricts candidates to the instructions lying between the
// first match of slice.From and the last match of slice.To, inclusive
// (spec §4.1 "Slicing"). Either bound failing to match yields an empty
// result, not an error — matching the spec text exactly.
func applySlice(method *classfile.MethodNode, candidates []classfile.Instruction, slice Slice) ([]classfile.Instruction, error) {
	all := method.Instructions.All()
	pos := make(map[classfile.Instruction]int, len(all))
	for i, insn := range all {
		pos[insn] = i
	}

	fromMatches, err := matchKind(method, slice.From.Kind, slice.From.Argument)
	if err != nil {
		return nil, err
	}
	toMatches, err := matchKind(method, slice.To.Kind, slice.To.Argument)
	if err != nil {
		return nil, err
	}
	if len(fromMatches) == 0 || len(toMatches) == 0 {
		return nil, nil
	}

	fromPos := pos[fromMatches[0]]
	toPos := pos[toMatches[len(toMatches)-1]]
	if fromPos > toPos {
		return nil, nil
	}

	var out []classfile.Instruction
	for _, insn := range candidates {
		if p, ok := pos[insn]; ok && p >= fromPos && p <= toPos {
			out = append(out, insn)
		}
	}
	return out, nil
}

// parseInvokeArg parses spec §4.1's two accepted INVOKE argument shapes:
// "Lowner;name(desc)returnDesc" (a Type-shaped prefix followed directly by
// the method name and descriptor) or "owner.name desc" (dotted owner,
// space, descriptor).
func parseInvokeArg(arg string) (owner, name, desc string, err error) {
	if strings.HasPrefix(arg, "L") {
		semi := strings.IndexByte(arg, ';')
		if semi < 0 {
			return "", "", "", fmt.Errorf("malformed INVOKE argument %q: missing ';' after owner", arg)
		}
		owner = arg[1:semi]
		rest := arg[semi+1:]
		paren := strings.IndexByte(rest, '(')
		if paren < 0 {
			return "", "", "", fmt.Errorf("malformed INVOKE argument %q: missing '(' after method name", arg)
		}
		return owner, rest[:paren], rest[paren:], nil
	}

	sp := strings.IndexByte(arg, ' ')
	if sp < 0 {
		return "", "", "", fmt.Errorf("malformed INVOKE argument %q: expected \"owner.name desc\"", arg)
	}
	ownerName, desc := arg[:sp], arg[sp+1:]
	dot := strings.LastIndexByte(ownerName, '.')
	if dot < 0 {
		return "", "", "", fmt.Errorf("malformed INVOKE argument %q: missing '.' between owner and name", arg)
	}
	return ownerName[:dot], ownerName[dot+1:], desc, nil
}

// parseFieldArg parses "Lowner;name:desc" (spec §4.1 FIELD/GETFIELD/
// PUTFIELD). A missing ':desc' suffix matches any descriptor.
func parseFieldArg(arg string) (owner, name, desc string, err error) {
	if !strings.HasPrefix(arg, "L") {
		return "", "", "", fmt.Errorf("malformed field argument %q: expected \"Lowner;name:desc\"", arg)
	}
	semi := strings.IndexByte(arg, ';')
	if semi < 0 {
		return "", "", "", fmt.Errorf("malformed field argument %q: missing ';' after owner", arg)
	}
	owner = arg[1:semi]
	rest := arg[semi+1:]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return owner, rest, "", nil
	}
	return owner, rest[:colon], rest[colon+1:], nil
}

// parseNewArg parses "Lowner;" (spec §4.1 NEW).
func parseNewArg(arg string) (string, error) {
	if !strings.HasPrefix(arg, "L") || !strings.HasSuffix(arg, ";") || len(arg) < 2 {
		return "", fmt.Errorf("malformed NEW argument %q: expected \"Lowner;\"", arg)
	}
	return arg[1 : len(arg)-1], nil
}

// opcodeNames maps every symbolic name classfile.Opcode exports to its
// value, for OPCODE targets spelled symbolically rather than numerically.
var opcodeNames = map[string]classfile.Opcode{
	"NOP": classfile.NOP, "ACONST_NULL": classfile.ACONST_NULL,
	"ICONST_M1": classfile.ICONST_M1, "ICONST_0": classfile.ICONST_0, "ICONST_1": classfile.ICONST_1,
	"ICONST_2": classfile.ICONST_2, "ICONST_3": classfile.ICONST_3, "ICONST_4": classfile.ICONST_4, "ICONST_5": classfile.ICONST_5,
	"LCONST_0": classfile.LCONST_0, "LCONST_1": classfile.LCONST_1,
	"FCONST_0": classfile.FCONST_0, "FCONST_1": classfile.FCONST_1, "FCONST_2": classfile.FCONST_2,
	"DCONST_0": classfile.DCONST_0, "DCONST_1": classfile.DCONST_1,
	"BIPUSH": classfile.BIPUSH, "SIPUSH": classfile.SIPUSH,
	"LDC": classfile.LDC, "LDC_W": classfile.LDC_W, "LDC2_W": classfile.LDC2_W,
	"ILOAD": classfile.ILOAD, "LLOAD": classfile.LLOAD, "FLOAD": classfile.FLOAD, "DLOAD": classfile.DLOAD, "ALOAD": classfile.ALOAD,
	"ISTORE": classfile.ISTORE, "LSTORE": classfile.LSTORE, "FSTORE": classfile.FSTORE, "DSTORE": classfile.DSTORE, "ASTORE": classfile.ASTORE,
	"DUP": classfile.DUP, "SWAP": classfile.SWAP, "POP": classfile.POP,
	"AALOAD": classfile.AALOAD, "AASTORE": classfile.AASTORE,
	"IRETURN": classfile.IRETURN, "LRETURN": classfile.LRETURN, "FRETURN": classfile.FRETURN, "DRETURN": classfile.DRETURN,
	"ARETURN": classfile.ARETURN, "RETURN": classfile.RETURN,
	"GETSTATIC": classfile.GETSTATIC, "PUTSTATIC": classfile.PUTSTATIC, "GETFIELD": classfile.GETFIELD, "PUTFIELD": classfile.PUTFIELD,
	"INVOKEVIRTUAL": classfile.INVOKEVIRTUAL, "INVOKESPECIAL": classfile.INVOKESPECIAL,
	"INVOKESTATIC": classfile.INVOKESTATIC, "INVOKEINTERFACE": classfile.INVOKEINTERFACE, "INVOKEDYNAMIC": classfile.INVOKEDYNAMIC,
	"NEW": classfile.NEW, "NEWARRAY": classfile.NEWARRAY, "ANEWARRAY": classfile.ANEWARRAY, "CHECKCAST": classfile.CHECKCAST,
	"ATHROW": classfile.ATHROW, "GOTO": classfile.GOTO, "IFEQ": classfile.IFEQ, "IFNE": classfile.IFNE,
	"IFNULL": classfile.IFNULL, "IFNONNULL": classfile.IFNONNULL,
}

// parseOpcodeArg parses either a raw numeric opcode or one of the symbolic
// names above (spec §4.1 OPCODE: "a numeric or symbolic opcode").
func parseOpcodeArg(arg string) (classfile.Opcode, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		return classfile.Opcode(n), nil
	}
	if op, ok := opcodeNames[strings.ToUpper(arg)]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown opcode %q", arg)
}

// constantMatches reports whether insn is a constant load whose pushed
// value equals arg, parsed per spec §4.1 CONSTANT as int/long/float/
// double/string.
func constantMatches(insn classfile.Instruction, arg string) bool {
	switch v := insn.(type) {
	case *classfile.LdcInsn:
		return ldcValueMatches(v.Value, arg)
	case *classfile.IntInsn:
		if v.Opcode != classfile.BIPUSH && v.Opcode != classfile.SIPUSH {
			return false
		}
		n, err := strconv.ParseInt(trimIntSuffix(arg), 10, 64)
		return err == nil && n == int64(v.Operand)
	case *classfile.ZeroInsn:
		if v.Opcode < classfile.ICONST_M1 || v.Opcode > classfile.ICONST_5 {
			return false
		}
		n, err := strconv.ParseInt(trimIntSuffix(arg), 10, 64)
		return err == nil && n == int64(v.Opcode)-int64(classfile.ICONST_0)
	default:
		return false
	}
}

func trimIntSuffix(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "L"), "l")
}

func ldcValueMatches(value interface{}, arg string) bool {
	switch tv := value.(type) {
	case string:
		s := arg
		if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
			s = s[1 : len(s)-1]
		}
		return tv == s
	case int32:
		n, err := strconv.ParseInt(trimIntSuffix(arg), 10, 32)
		return err == nil && int32(n) == tv
	case int64:
		n, err := strconv.ParseInt(trimIntSuffix(arg), 10, 64)
		return err == nil && n == tv
	case float32:
		f, err := strconv.ParseFloat(strings.TrimRight(arg, "Ff"), 32)
		return err == nil && float32(f) == tv
	case float64:
		f, err := strconv.ParseFloat(strings.TrimRight(arg, "Dd"), 64)
		return err == nil && f == tv
	default:
		return false
	}
}
