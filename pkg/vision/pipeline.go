package vision

import (
	"log/slog"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
)

// Pipeline runs extraction, selection, geometry and annotation on one frame.
type Pipeline struct {
	Extractor Extractor
	Selector  *Selector
	Estimator *Estimator
	Annotator *Annotator // nil disables drawing

	log *slog.Logger
}

// NewPipeline wires the stages together. All but the annotator are required.
func NewPipeline(ex Extractor, sel *Selector, est *Estimator, ann *Annotator, logger *slog.Logger) (*Pipeline, error) {
	if ex == nil || sel == nil || est == nil {
		return nil, errors.New("pipeline needs an extractor, selector and estimator")
	}
	return &Pipeline{
		Extractor: ex,
		Selector:  sel,
		Estimator: est,
		Annotator: ann,
		log:       log.Or(logger).With("component", "pipeline"),
	}, nil
}

// Process detects the target in frame. When visionOn is false it does nothing
// and returns the zero Result. Diagnostics are drawn into frame.
func (p *Pipeline) Process(frame *Frame, visionOn bool) (Result, error) {
	if !visionOn {
		return Result{}, nil
	}

	contours, err := p.Extractor.Extract(frame)
	if err != nil {
		return Result{}, errors.Wrap(err, "extract contours")
	}

	picked := p.Selector.Pick(contours)
	if p.Annotator != nil {
		p.Annotator.Annotate(frame, picked)
	}

	pair, ok := p.Selector.Aggregate(picked)
	if !ok {
		return Result{}, nil
	}

	dist, err := p.Estimator.Distance(pair.YAvg)
	if err != nil {
		p.log.Error("distance estimate failed", "height", pair.YAvg, "error", err)
		return Result{}, nil
	}

	return Result{
		Found:    true,
		Count:    len(contours),
		Box:      pair.Box.Rect,
		Offset:   p.Estimator.Offset(pair.XAvg),
		Distance: dist,
	}, nil
}
