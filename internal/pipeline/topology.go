package pipeline

import (
	"context"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// mergeStage reads pc.Extra["per_source_events"] (populated by the fetch
// orchestrator, one slice per configured source) and replaces pc.Events
// with the deduplicated union.
type mergeStage struct{}

func (mergeStage) Name() string { return "merge" }
func (mergeStage) Run(_ context.Context, pc *model.ProcessingContext) model.StageResult {
	perSource, _ := pc.Extra["per_source_events"].([][]model.CalendarEvent)
	return Merge(perSource)
}

// filterStage drops cancelled, past, and operator-skipped events.
type filterStage struct{}

func (filterStage) Name() string { return "filter" }
func (filterStage) Run(_ context.Context, pc *model.ProcessingContext) model.StageResult {
	return Filter(pc.Events, pc.Now, pc.SkippedEventIDs)
}

// NewPostProcessingPipeline builds the merge-then-filter chain that runs
// once per refresh cycle after every source has been fetched and expanded
// independently (spec C6, "post-processing" topology).
func NewPostProcessingPipeline() *Pipeline {
	return New("post-processing", mergeStage{}, filterStage{})
}

// NewPerSourcePipeline builds the per-source chain: a caller-supplied parse
// stage (wrapping internal/icsparse) feeding a caller-supplied expansion
// stage (wrapping pkg/ical). Kept generic here since parse/expand need a
// clock and tz resolver the pipeline package has no reason to own.
func NewPerSourcePipeline(parse, expand Stage) *Pipeline {
	return New("per-source", parse, expand)
}

// NewPrecomputationPipeline wraps a caller-supplied precompute stage so it
// participates in the same Stage/Pipeline/multierror machinery as the
// other two topologies (spec C6, "precomputation" topology).
func NewPrecomputationPipeline(precompute Stage) *Pipeline {
	return New("precomputation", precompute)
}
