package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewMemberCopyHandler implements spec §4.2 step 12: every transformer
// method and field that wasn't consumed declaratively by Shadow, Override,
// Upgrade, or CASM is copied onto the target class. Self-references inside
// the copied bodies — calls back into the transformer's own shadowed or
// renamed members — are rewritten using ctx.IdentifierMap, the map Shadow
// and SyntheticRenamer accumulated earlier in this same pass.
func NewMemberCopyHandler() Handler {
	return newHandler("MemberCopy", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		skipMethods := make(map[*classfile.MethodNode]bool)
		skipFields := make(map[*classfile.FieldNode]bool)
		for _, m := range members {
			switch m.Kind {
			case directive.KindShadow, directive.KindOverride, directive.KindUpgrade, directive.KindCASM:
				if m.Method != nil {
					skipMethods[m.Method] = true
				}
				if m.Field != nil {
					skipFields[m.Field] = true
				}
			}
		}

		copied := 0
		for _, f := range transformer.Fields {
			if skipFields[f] {
				continue
			}
			if t.FindField(f.Name, f.Desc) != nil {
				continue
			}
			t.Fields = append(t.Fields, f.Clone())
			copied++
		}
		for _, meth := range transformer.Methods {
			if skipMethods[meth] {
				continue
			}
			if t.FindMethod(meth.Name, meth.Desc) != nil {
				continue
			}
			clone := meth.Clone()
			rewriteSelfReferences(clone, transformer.Name, t.Name, ctx.IdentifierMap)
			t.Methods = append(t.Methods, clone)
			copied++
		}

		if copied == 0 {
			return skipped("transformer has no remaining members to copy")
		}
		return applied()
	})
}

// rewriteSelfReferences rewrites any field/method reference inside method
// that points back at the transformer's own (pre-merge) identity, so a
// copied body that used to call `this.helper()` on the transformer now
// calls it on the target under whatever name Shadow or SyntheticRenamer
// settled on.
func rewriteSelfReferences(method *classfile.MethodNode, fromOwner, toOwner string, idMap map[string]string) {
	method.Instructions.Each(func(insn classfile.Instruction) {
		switch v := insn.(type) {
		case *classfile.MethodInsn:
			if v.Owner != fromOwner {
				return
			}
			v.Owner = toOwner
			if mapped, ok := idMap[methodKey(fromOwner, v.Name, v.Desc)]; ok {
				v.Name = mapped
			}
		case *classfile.FieldInsn:
			if v.Owner != fromOwner {
				return
			}
			v.Owner = toOwner
			if mapped, ok := idMap[fieldKey(fromOwner, v.Name)]; ok {
				v.Name = mapped
			}
		}
	})
}
