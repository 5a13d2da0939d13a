package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/chimewatch/calendar-assistant/internal/model"
)

// Stage transforms a ProcessingContext, returning the stage's own result
// for logging/metrics. A stage mutates ctx.Events in place by replacing the
// slice; it never mutates an individual CalendarEvent.
type Stage interface {
	Name() string
	Run(ctx context.Context, pc *model.ProcessingContext) model.StageResult
}

// Pipeline runs a fixed sequence of stages, aggregating every stage's
// warnings into a single go-multierror so a caller can log or report
// everything that happened in one place without aborting on the first
// stage that produced a warning. A stage that reports Success=false stops
// the run: the remaining stages are skipped, and Result carries the Events
// that stage left behind together with an error naming it.
type Pipeline struct {
	name   string
	stages []Stage
}

func New(name string, stages ...Stage) *Pipeline {
	return &Pipeline{name: name, stages: stages}
}

// Result is the pipeline-level outcome: the final events plus every
// stage's aggregated errors/warnings.
type Result struct {
	Events   []model.CalendarEvent
	Warnings []string
	Err      error // non-nil *multierror.Error if any stage reported failure
}

func (p *Pipeline) Run(ctx context.Context, pc *model.ProcessingContext) Result {
	var merr *multierror.Error
	var warnings []string

	for _, stage := range p.stages {
		select {
		case <-ctx.Done():
			merr = multierror.Append(merr, ctx.Err())
			return Result{Events: pc.Events, Warnings: warnings, Err: merr.ErrorOrNil()}
		default:
		}

		res := stage.Run(ctx, pc)
		warnings = append(warnings, res.Warnings...)
		for _, e := range res.Errors {
			merr = multierror.Append(merr, e)
		}
		if res.Events != nil {
			pc.Events = res.Events
		}
		if !res.Success {
			merr = multierror.Append(merr, fmt.Errorf("pipeline %s: stage %s failed", p.name, stage.Name()))
			return Result{Events: pc.Events, Warnings: warnings, Err: merr.ErrorOrNil()}
		}
	}

	return Result{Events: pc.Events, Warnings: warnings, Err: merr.ErrorOrNil()}
}

// funcStage adapts a plain function into a Stage, used for the stateless
// merge/filter/prioritize steps that don't need their own type.
type funcStage struct {
	name string
	fn   func(context.Context, *model.ProcessingContext) model.StageResult
}

func (f funcStage) Name() string { return f.name }
func (f funcStage) Run(ctx context.Context, pc *model.ProcessingContext) model.StageResult {
	return f.fn(ctx, pc)
}

// StageFunc builds a Stage from a plain function.
func StageFunc(name string, fn func(context.Context, *model.ProcessingContext) model.StageResult) Stage {
	return funcStage{name: name, fn: fn}
}
