package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewUpgradeHandler implements spec §4.2 step 11: a transformer method
// annotated @Upgrade moves its body into the matching target method,
// replacing it outright — unlike Override, the original target body is
// discarded rather than preserved under an alias, since nothing calls back
// into it afterward.
func NewUpgradeHandler() Handler {
	return newHandler("Upgrade", func(ctx *Context, t, transformer *classfile.ClassNode, members []*directive.Member) Result {
		count := 0
		for _, m := range membersOfKind(members, directive.KindUpgrade) {
			if m.Method == nil {
				return failed(shapeErrorHint(transformer.Name, m.Field.Name,
					"@Upgrade moves a method body; annotate the method to upgrade, not a field",
					"@Upgrade does not apply to fields on %s", t.Name))
			}

			existing := t.FindMethod(m.Method.Name, m.Method.Desc)
			if existing == nil {
				return failed(shapeErrorHint(transformer.Name, m.Method.Name+m.Method.Desc,
					"check the @Upgrade method's name/descriptor against the target",
					"upgrade target method %s%s not found on %s", m.Method.Name, m.Method.Desc, t.Name))
			}
			if existing.IsStatic() != m.Method.IsStatic() {
				return failed(shapeError(transformer.Name, m.Method.Name+m.Method.Desc,
					"static/instance mismatch: target method is static=%v, transformer upgrade is static=%v",
					existing.IsStatic(), m.Method.IsStatic()))
			}

			existing.Instructions = m.Method.Instructions.Clone()
			existing.MaxStack = m.Method.MaxStack
			existing.MaxLocals = m.Method.MaxLocals
			existing.Locals = m.Method.Locals
			existing.TryCatch = m.Method.TryCatch

			ctx.IdentifierMap[methodKey(transformer.Name, m.Method.Name, m.Method.Desc)] = existing.Name
			count++
		}
		if count == 0 {
			return skipped("transformer declares no @Upgrade members")
		}
		return applied()
	})
}
