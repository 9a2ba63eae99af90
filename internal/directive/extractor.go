package directive

import "github.com/quillbyte/classmorph/internal/classfile"

// Extractor turns a transformer class's raw annotation data into a
// TransformerDescriptor and its ordered member directives. It is the
// "specific annotation-parsing reflection glue" the spec names as an
// out-of-scope external collaborator — the core only ever depends on this
// interface, never on a concrete annotation reader. Extract returns a nil
// descriptor (and no error) for a class that carries no class-level
// transformer annotation at all.
type Extractor interface {
	Extract(transformer *classfile.ClassNode) (*TransformerDescriptor, []*Member, error)
}
