package handler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/quillbyte/classmorph/internal/classfile"
	"github.com/quillbyte/classmorph/internal/directive"
)

// NewSyntheticRenamerHandler renames every synthetic member on the
// transformer class to a globally-unique name before any member copy runs,
// so that two independently-registered transformers targeting the same
// class never collide on a compiler-generated name like a lambda's
// `lambda$onTick$0` (spec §4.2 step 3). The new name is recorded in
// ctx.IdentifierMap so MemberCopy (step 12) rewrites internal references
// consistently.
func NewSyntheticRenamerHandler() Handler {
	return newHandler("SyntheticRenamer", func(ctx *Context, target, transformer *classfile.ClassNode, members []*directive.Member) Result {
		renamed := 0
		for _, m := range transformer.Methods {
			if m.Access&classfile.AccSynthetic == 0 {
				continue
			}
			oldName := m.Name
			newName := fmt.Sprintf("synthetic$%s$%s", sanitize(oldName), uuid.NewString())
			m.Name = newName
			ctx.IdentifierMap[methodKey(transformer.Name, oldName, m.Desc)] = newName
			renamed++
		}
		for _, f := range transformer.Fields {
			if f.Access&classfile.AccSynthetic == 0 {
				continue
			}
			oldName := f.Name
			newName := fmt.Sprintf("synthetic$%s$%s", sanitize(oldName), uuid.NewString())
			f.Name = newName
			ctx.IdentifierMap[fieldKey(transformer.Name, oldName)] = newName
			renamed++
		}
		if renamed == 0 {
			return skipped("transformer has no synthetic members")
		}
		return applied()
	})
}

func sanitize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func methodKey(owner, name, desc string) string { return owner + "#" + name + desc }
func fieldKey(owner, name string) string        { return owner + "#" + name }
