package handler

import (
	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewInnerClassOpenerHandler strips AccPrivate/AccProtected off every
// InnerClasses entry the transformer class references, so that once its
// members are copied into the target (MemberCopy, step 12) the copied
// bodies can still link against those inner classes from a different
// enclosing class (spec §4.2 step 2).
func NewInnerClassOpenerHandler() Handler {
	return newHandler("InnerClassOpener", func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
		referenced := referencedInnerClasses(transformer)
		if len(referenced) == 0 {
			return skipped("transformer references no inner classes")
		}
		opened := 0
		for i := range target.InnerClasses {
			ic := &target.InnerClasses[i]
			if !referenced[ic.Name] {
				continue
			}
			before := ic.Access
			ic.Access &^= classfile.AccPrivate | classfile.AccProtected
			ic.Access |= classfile.AccPublic
			if ic.Access != before {
				opened++
			}
		}
		for i := range transformer.InnerClasses {
			ic := &transformer.InnerClasses[i]
			ic.Access &^= classfile.AccPrivate | classfile.AccProtected
			ic.Access |= classfile.AccPublic
		}
		if opened == 0 {
			return skipped("no matching inner-class entries needed opening")
		}
		return applied()
	})
}

func referencedInnerClasses(transformer *classfile.ClassNode) map[string]bool {
	out := make(map[string]bool)
	for _, ic := range transformer.InnerClasses {
		out[ic.Name] = true
	}
	return out
}
