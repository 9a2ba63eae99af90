package handler

import "github.com/quillbyte/classmorph/internal/directive"

// OrderedHandlers builds the thirteen annotation handlers in the fixed
// order spec §4.2 mandates. casmHooks is threaded through to both CASM
// anchors (TOP and BOTTOM run the same raw-hook table, filtered by phase).
func OrderedHandlers(casmHooks map[string]ASMRawHook) []Handler {
	return []Handler{
		NewCASMHandler(directive.ASMPhaseTop, casmHooks),
		NewInnerClassOpenerHandler(),
		NewSyntheticRenamerHandler(),
		NewShadowHandler(),
		NewOverrideHandler(),
		NewWrapCatchHandler(),
		NewInjectHandler(),
		NewRedirectHandler(),
		NewModifyConstantHandler(),
		NewInlineHandler(),
		NewUpgradeHandler(),
		NewMemberCopyHandler(),
		NewCASMHandler(directive.ASMPhaseBottom, casmHooks),
	}
}
