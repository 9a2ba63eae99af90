package classfile

// insnNode is the doubly-linked list cell wrapping one Instruction. The
// list is doubly linked (spec §3) so handlers can splice in a run of new
// instructions around an anchor in O(1) without shifting everything else.
type insnNode struct {
	instr      Instruction
	prev, next *insnNode
}

// InsnList is a method body's doubly-linked instruction list.
type InsnList struct {
	first, last *insnNode
	size        int
}

// NewInsnList returns an empty list.
func NewInsnList() *InsnList { return &InsnList{} }

// Len returns the number of instructions in the list.
func (l *InsnList) Len() int { return l.size }

// First returns the first instruction, or nil if the list is empty.
func (l *InsnList) First() Instruction {
	if l.first == nil {
		return nil
	}
	return l.first.instr
}

// Last returns the last instruction, or nil if the list is empty.
func (l *InsnList) Last() Instruction {
	if l.last == nil {
		return nil
	}
	return l.last.instr
}

// Next returns the instruction following insn, or nil at the end of the list.
func (l *InsnList) Next(insn Instruction) Instruction {
	n := insn.node()
	if n == nil || n.next == nil {
		return nil
	}
	return n.next.instr
}

// Prev returns the instruction preceding insn, or nil at the start of the list.
func (l *InsnList) Prev(insn Instruction) Instruction {
	n := insn.node()
	if n == nil || n.prev == nil {
		return nil
	}
	return n.prev.instr
}

// Append adds insn at the end of the list.
func (l *InsnList) Append(insn Instruction) {
	n := &insnNode{instr: insn}
	insn.setNode(n)
	if l.last == nil {
		l.first, l.last = n, n
	} else {
		n.prev = l.last
		l.last.next = n
		l.last = n
	}
	l.size++
}

// InsertBefore splices insn immediately before anchor.
func (l *InsnList) InsertBefore(anchor, insn Instruction) {
	an := anchor.node()
	n := &insnNode{instr: insn, prev: an.prev, next: an}
	insn.setNode(n)
	if an.prev != nil {
		an.prev.next = n
	} else {
		l.first = n
	}
	an.prev = n
	l.size++
}

// InsertAfter splices insn immediately after anchor.
func (l *InsnList) InsertAfter(anchor, insn Instruction) {
	an := anchor.node()
	n := &insnNode{instr: insn, prev: an, next: an.next}
	insn.setNode(n)
	if an.next != nil {
		an.next.prev = n
	} else {
		l.last = n
	}
	an.next = n
	l.size++
}

// InsertListBefore splices every instruction in src, in order, immediately
// before anchor. src is consumed (its nodes are relinked into l).
func (l *InsnList) InsertListBefore(anchor Instruction, src *InsnList) {
	for insn := src.First(); insn != nil; {
		next := src.Next(insn)
		l.InsertBefore(anchor, insn)
		insn = next
	}
}

// InsertListAfter splices every instruction in src, in order, immediately
// after anchor.
func (l *InsnList) InsertListAfter(anchor Instruction, src *InsnList) {
	prev := anchor
	for insn := src.First(); insn != nil; {
		next := src.Next(insn)
		l.InsertAfter(prev, insn)
		prev = insn
		insn = next
	}
}

// AppendList splices every instruction in src onto the end of l, in order.
func (l *InsnList) AppendList(src *InsnList) {
	for insn := src.First(); insn != nil; {
		next := src.Next(insn)
		l.Append(insn)
		insn = next
	}
}

// Remove unlinks insn from the list.
func (l *InsnList) Remove(insn Instruction) {
	n := insn.node()
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.last = n.prev
	}
	n.prev, n.next = nil, nil
	insn.setNode(nil)
	l.size--
}

// RemoveRange unlinks every instruction from from..to inclusive. from and
// to must both already be in the list, with from at or before to.
func (l *InsnList) RemoveRange(from, to Instruction) {
	var toRemove []Instruction
	for insn := from; insn != nil; insn = l.Next(insn) {
		toRemove = append(toRemove, insn)
		if insn == to {
			break
		}
	}
	for _, insn := range toRemove {
		l.Remove(insn)
	}
}

// ReplaceRange removes from..to inclusive and splices repl in its place.
func (l *InsnList) ReplaceRange(from, to Instruction, repl *InsnList) {
	anchor := l.Next(to)
	l.RemoveRange(from, to)
	if anchor != nil {
		l.InsertListBefore(anchor, repl)
	} else {
		l.AppendList(repl)
	}
}

// Each calls fn for every instruction in program order. fn may safely
// remove or replace the current instruction but must not remove upcoming
// ones out from under the iteration (callers needing that should collect
// first, as the handlers in this package do).
func (l *InsnList) Each(fn func(Instruction)) {
	for n := l.first; n != nil; {
		next := n.next
		fn(n.instr)
		n = next
	}
}

// All returns every instruction in program order as a slice snapshot.
func (l *InsnList) All() []Instruction {
	out := make([]Instruction, 0, l.size)
	l.Each(func(i Instruction) { out = append(out, i) })
	return out
}

// Clone returns a deep copy of the list: every instruction is cloned, and
// JumpInsn/LineNumberInsn references to labels are rewritten to point at
// the corresponding cloned label (every label's clone is created before
// any reference is rewritten, so forward jumps resolve too). Callers that
// also need the old-to-new label map, e.g. to rewrite try/catch ranges
// alongside, use CloneWithLabelMap.
func (l *InsnList) Clone() *InsnList {
	out, _ := l.CloneWithLabelMap(nil)
	return out
}

// CloneWithLabelMap clones the list like Clone, but accepts a pre-seeded
// label map (may be nil) and returns the completed map so callers can also
// remap try/catch block boundaries that reference the same labels.
func (l *InsnList) CloneWithLabelMap(seed map[*LabelInsn]*LabelInsn) (*InsnList, map[*LabelInsn]*LabelInsn) {
	labelMap := seed
	if labelMap == nil {
		labelMap = make(map[*LabelInsn]*LabelInsn)
	}
	// First pass: create the cloned label identities so forward jumps resolve.
	l.Each(func(insn Instruction) {
		if lbl, ok := insn.(*LabelInsn); ok {
			if _, seen := labelMap[lbl]; !seen {
				labelMap[lbl] = &LabelInsn{}
			}
		}
	})
	out := NewInsnList()
	l.Each(func(insn Instruction) {
		switch v := insn.(type) {
		case *LabelInsn:
			out.Append(labelMap[v])
		case *JumpInsn:
			clone := &JumpInsn{Opcode: v.Opcode, Target: remapLabel(v.Target, labelMap)}
			out.Append(clone)
		case *LineNumberInsn:
			clone := &LineNumberInsn{Line: v.Line, Start: remapLabel(v.Start, labelMap)}
			out.Append(clone)
		default:
			out.Append(insn.Clone())
		}
	})
	return out, labelMap
}

func remapLabel(l *LabelInsn, m map[*LabelInsn]*LabelInsn) *LabelInsn {
	if l == nil {
		return nil
	}
	if mapped, ok := m[l]; ok {
		return mapped
	}
	return l
}
