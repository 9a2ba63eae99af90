package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewInlineHandler implements spec §4.2 step 10: a transformer method
// annotated @Inline must be a zero-argument accessor whose body is nothing
// but a single constant load and a matching return. Every call to it from
// elsewhere in the transformer is replaced with that constant directly,
// and the accessor itself is then dropped — it never needs to exist in the
// merged class, the same optimization real annotation-driven bytecode
// weavers use to avoid paying for a method call that only ever returns one
// value.
func NewInlineHandler() Handler {
	return newHandler("Inline", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		inlined := 0
		for _, member := range membersOfKind(members, directive.KindInline) {
			if member.Method == nil {
				continue
			}
			constant, err := extractInlineConstant(member.Method)
			if err != nil {
				return failed(shapeErrorHint(transformer.Name, member.Method.Name+member.Method.Desc,
					"an @Inline accessor must take no arguments and its body must be exactly one constant load followed by the matching return",
					"%s", err.Error()))
			}

			for _, other := range transformer.Methods {
				if other == member.Method {
					continue
				}
				other.Instructions.Each(func(insn classfile.Instruction) {
					mi, ok := insn.(*classfile.MethodInsn)
					if !ok {
						return
					}
					if mi.Owner != transformer.Name || mi.Name != member.Method.Name || mi.Desc != member.Method.Desc {
						return
					}
					other.Instructions.InsertBefore(mi, constant.Clone())
					other.Instructions.Remove(mi)
				})
			}

			removeMethod(transformer, member.Method)
			inlined++
		}
		if inlined == 0 {
			return skipped("transformer declares no @Inline members")
		}
		return applied()
	})
}

// extractInlineConstant validates that method is shaped like a constant
// accessor and returns the single constant-load instruction it contains.
func extractInlineConstant(method *classfile.MethodNode) (classfile.Instruction, error) {
	desc := method.Descriptor()
	if len(desc.Args) != 0 {
		return nil, errShape("@Inline accessor %s%s must take no arguments", method.Name, method.Desc)
	}

	var body []classfile.Instruction
	for _, insn := range method.Instructions.All() {
		if classfile.IsPseudo(insn) {
			continue
		}
		body = append(body, insn)
	}
	if len(body) != 2 {
		return nil, errShape("@Inline accessor %s%s must contain exactly a constant load and a return", method.Name, method.Desc)
	}
	load, ret := body[0], body[1]
	if !classfile.IsConstantLoad(load.Op()) && !isZeroConstant(load) {
		return nil, errShape("@Inline accessor %s%s does not begin with a constant load", method.Name, method.Desc)
	}
	if !classfile.IsReturn(ret.Op()) || ret.Op() != classfile.ReturnOpcode(desc.Return) {
		return nil, errShape("@Inline accessor %s%s does not end with a return matching its declared type", method.Name, method.Desc)
	}
	return load, nil
}

func isZeroConstant(insn classfile.Instruction) bool {
	z, ok := insn.(*classfile.ZeroInsn)
	return ok && z.Opcode >= classfile.ICONST_M1 && z.Opcode <= classfile.DCONST_1
}

func removeMethod(c *classfile.ClassNode, method *classfile.MethodNode) {
	for i, m := range c.Methods {
		if m == method {
			c.Methods = append(c.Methods[:i], c.Methods[i+1:]...)
			return
		}
	}
}
