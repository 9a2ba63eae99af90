package remap

import "github.com/quillbyte/classmorph/internal/classfile"

// RewriteClassNode clones transformerClass and rewrites every class/field/
// method reference inside its fields, method bodies, and annotations to
// point at the target's current identifiers, using r. A node that has
// already been rewritten (ClassNode.Remapped) is returned unchanged and
// un-cloned (spec invariant 2: remapping is idempotent).
func RewriteClassNode(r *Remapper, transformerClass *classfile.ClassNode) *classfile.ClassNode {
	if transformerClass.Remapped {
		return transformerClass
	}
	out := transformerClass.Clone()
	out.Remapped = true

	out.Name = r.MapClassName(out.Name)
	out.SuperName = r.MapClassName(out.SuperName)
	for i, iface := range out.Interfaces {
		out.Interfaces[i] = r.MapClassName(iface)
	}
	rewriteAnnotations(r, out.Annotations)

	for _, f := range out.Fields {
		owner := transformerClass.Name
		f.Name = r.MapFieldName(owner, f.Name, f.Desc)
		f.Desc = r.MapDesc(f.Desc)
		rewriteAnnotations(r, f.Annotations)
	}

	for _, m := range out.Methods {
		rewriteMethod(r, transformerClass.Name, m)
	}

	return out
}

func rewriteMethod(r *Remapper, ownerOriginalName string, m *classfile.MethodNode) {
	m.Name = r.MapMethodName(ownerOriginalName, m.Name, m.Desc)
	m.Desc = r.MapDesc(m.Desc)
	rewriteAnnotations(r, m.Annotations)
	for _, anns := range m.ParamAnnotations {
		rewriteAnnotations(r, anns)
	}
	for i, exc := range m.Exceptions {
		m.Exceptions[i] = r.MapClassName(exc)
	}
	for i, tc := range m.TryCatch {
		if tc.Type != "" {
			m.TryCatch[i].Type = r.MapClassName(tc.Type)
		}
	}
	for i, lv := range m.Locals {
		m.Locals[i].Desc = r.MapDesc(lv.Desc)
	}

	m.Instructions.Each(func(insn classfile.Instruction) {
		switch v := insn.(type) {
		case *classfile.FieldInsn:
			newOwner := r.MapClassName(v.Owner)
			v.Name = r.MapFieldName(v.Owner, v.Name, v.Desc)
			v.Owner = newOwner
			v.Desc = r.MapDesc(v.Desc)
		case *classfile.MethodInsn:
			newOwner := r.MapClassName(v.Owner)
			v.Name = r.MapMethodName(v.Owner, v.Name, v.Desc)
			v.Owner = newOwner
			v.Desc = r.MapDesc(v.Desc)
		case *classfile.TypeInsn:
			v.Type = r.MapClassName(v.Type)
		case *classfile.LdcInsn:
			if tv, ok := v.Value.(classfile.TypeValue); ok {
				v.Value = classfile.TypeValue{Type: classfile.ObjectType(r.MapClassName(tv.Type.InternalName()))}
			}
		}
	})
}

func rewriteAnnotations(r *Remapper, anns []classfile.AnnotationNode) {
	for i := range anns {
		anns[i].Desc = r.MapDesc(anns[i].Desc)
		for k, v := range anns[i].Values {
			anns[i].Values[k] = rewriteAnnotationValue(r, v)
		}
	}
}

func rewriteAnnotationValue(r *Remapper, v interface{}) interface{} {
	switch val := v.(type) {
	case classfile.TypeValue:
		if val.Type.Sort() == classfile.SortObject {
			return classfile.TypeValue{Type: classfile.ObjectType(r.MapClassName(val.Type.InternalName()))}
		}
		return val
	case string:
		// A string-named target (e.g. a raw class-name argument on a
		// directive annotation) is remapped via the safe, kind-agnostic
		// lookup since we don't know if it names a class, method, or field.
		return r.MapSafe(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = rewriteAnnotationValue(r, e)
		}
		return out
	default:
		return v
	}
}
