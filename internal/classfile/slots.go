package classfile

// SlotAllocator hands out fresh local-variable slots above a method's
// existing MaxLocals, tracking the running high-water mark so callers can
// write the result back into MethodNode.MaxLocals once done.
//
// Used by the Inject handler for the returnVar, callback slot, and the
// modifiable-locals Object[] slot (spec §4.3), and by Redirect's field-put
// case for the fresh locals it stores owner/value into before reordering.
type SlotAllocator struct {
	next int
}

// NewSlotAllocator starts allocation above method's current MaxLocals.
func NewSlotAllocator(method *MethodNode) *SlotAllocator {
	return &SlotAllocator{next: method.MaxLocals}
}

// Alloc reserves width consecutive slots (1 for most types, 2 for
// long/double) and returns the first.
func (a *SlotAllocator) Alloc(width int) int {
	slot := a.next
	a.next += width
	return slot
}

// AllocFor reserves the correctly-widthed slot for t.
func (a *SlotAllocator) AllocFor(t Type) int {
	return a.Alloc(Width(t))
}

// HighWater returns the highest slot number claimed so far, i.e. the new
// MaxLocals.
func (a *SlotAllocator) HighWater() int {
	return a.next
}

// BumpSlotsAtOrAbove rewrites every VarInsn in list whose Var is >= from to
// Var+delta. Used when a trailing Object[] parameter is inserted into a
// transformer method's descriptor: every local referencing a slot at or
// past the insertion point must shift (spec §4.3, "update-on-exit").
func BumpSlotsAtOrAbove(list *InsnList, from, delta int) {
	list.Each(func(insn Instruction) {
		if v, ok := insn.(*VarInsn); ok && v.Var >= from {
			v.Var += delta
		}
	})
}
