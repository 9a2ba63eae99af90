package handler

import (
	"fmt"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewOverrideHandler implements spec §4.2 step 5: a transformer method
// annotated @Override replaces a matching target method (same name+desc
// after remap), and the original body survives under a renamed alias so
// the new body can still super-call it.
func NewOverrideHandler() Handler {
	return newHandler("Override", func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindOverride) {
			if m.Method == nil {
				continue
			}
			existing := target.FindMethod(m.Method.Name, m.Method.Desc)
			if existing == nil {
				return failed(shapeErrorHint(transformer.Name, m.Method.Name+m.Method.Desc,
					"either rename @Override to match an existing method or drop it in favor of MemberCopy",
					"no existing target method %s%s to override on %s", m.Method.Name, m.Method.Desc, target.Name))
			}
			if existing.IsStatic() != m.Method.IsStatic() {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"static/instance mismatch: target method is static=%v, transformer override is static=%v",
					existing.IsStatic(), m.Method.IsStatic()))
			}

			aliasName := fmt.Sprintf("%s$original", existing.Name)
			alias := existing.Clone()
			alias.Name = aliasName
			target.Methods = append(target.Methods, alias)

			existing.Instructions = m.Method.Instructions.Clone()
			existing.MaxStack = m.Method.MaxStack
			existing.MaxLocals = m.Method.MaxLocals
			existing.Locals = m.Method.Locals
			existing.TryCatch = m.Method.TryCatch

			ctx.IdentifierMap[methodKey(transformer.Name, m.Method.Name, m.Method.Desc)] = existing.Name
			ctx.IdentifierMap[methodKey(target.Name, existing.Name+"$super", existing.Desc)] = aliasName

			count++
		}
		if count == 0 {
			return skipped("transformer declares no @Override members")
		}
		return applied()
	})
}
