package transform

import "github.com/quillbyte/classmorph/internal/classfile"

// pipelineContext threads a single class transformation pass through its
// stages. Adapted from the teacher's generic Processor/Pipeline shape
// (internal/pipeline): where that pipeline kept running every stage to
// collect diagnostics from all of them, a bytecode transformation pass
// has no use for partial results once one stage fails, so this one stops
// at the first error or cancellation instead.
type pipelineContext struct {
	raw       []byte
	node      *classfile.ClassNode
	err       error
	cancelled bool
}

// stage is one step of a transformation pass.
type stage func(*pipelineContext) *pipelineContext

// pipeline is a fixed sequence of stages run in order.
type pipeline struct {
	stages []stage
}

func newPipeline(stages ...stage) *pipeline {
	return &pipeline{stages: stages}
}

// run executes every stage in order, short-circuiting on the first error
// or cancellation (spec §7's CANCEL fail strategy: the rest of the pass is
// simply skipped, original bytes pass through unchanged).
func (p *pipeline) run(initial *pipelineContext) *pipelineContext {
	ctx := initial
	for _, s := range p.stages {
		if ctx.err != nil || ctx.cancelled {
			break
		}
		ctx = s(ctx)
	}
	return ctx
}
