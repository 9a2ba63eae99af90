package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewShadowHandler implements spec §4.2 step 4: for each transformer
// field/method annotated @Shadow, it records a transformerMember ->
// targetMember mapping and strips the transformer-side body, so the
// member exists on the transformer only as a typed reference to something
// the target already has. Body references to shadow members are rewritten
// by MemberCopy (step 12) using ctx.IdentifierMap.
func NewShadowHandler() Handler {
	return newHandler("Shadow", func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
		shadowed := 0
		for _, m := range membersOfKind(members, directive.KindShadow) {
			targetName := m.Directive.ShadowTargetName

			switch {
			case m.Method != nil:
				name := targetName
				if name == "" {
					name = m.Method.Name
				}
				if target.FindMethod(name, m.Method.Desc) == nil {
					return failed(shapeErrorHint(transformer.Name, m.Method.Name+m.Method.Desc,
						"check the @Shadow method's name/descriptor against the target",
						"shadow target method %s%s not found on %s", name, m.Method.Desc, target.Name))
				}
				ctx.IdentifierMap[methodKey(transformer.Name, m.Method.Name, m.Method.Desc)] = name
				m.Method.Instructions = classfile.NewInsnList()
				m.Method.Access |= classfile.AccAbstract
				shadowed++

			case m.Field != nil:
				name := targetName
				if name == "" {
					name = m.Field.Name
				}
				if target.FindField(name, "") == nil {
					return failed(shapeErrorHint(transformer.Name, name,
						"check the @Shadow field's name against the target",
						"shadow target field %s not found on %s", name, target.Name))
				}
				ctx.IdentifierMap[fieldKey(transformer.Name, m.Field.Name)] = name
				shadowed++
			}
		}
		if shadowed == 0 {
			return skipped("transformer declares no @Shadow members")
		}
		return applied()
	})
}
