package handler

import "github.com/quillbyte/classmorph/internal/classfile"

// The injection runtime ships a small support class alongside every
// transformed class, the way a mixin library ships its own CallbackInfo:
// this handler only ever emits references to it, never generates its
// bytecode. Its contract is fixed, so the descriptors are constants here
// rather than looked up from anywhere.
const (
	callbackInternalName = "dev/quillbyte/classmorph/runtime/Callback"

	callbackPlainCtorDesc = "(Z)V"
	// Captured constructor: cancellable, captured return/throwable value
	// (spec §4.3's two-constructor model: `(bool)` and `(bool, any)`).
	// Modifiable locals never pass through Callback — they travel in the
	// trailing Object[] parameter the Inject handler adds to the injector's
	// own descriptor (spec §4.3, "update-on-exit").
	callbackCapturedCtorDesc = "(ZLjava/lang/Object;)V"

	callbackIsCancelledDesc = "()Z"
	callbackGetReturnDesc   = "()Ljava/lang/Object;"
)

func isCallbackType(t classfile.Type) bool {
	return t.Sort() == classfile.SortObject && t.InternalName() == callbackInternalName
}
