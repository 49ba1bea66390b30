package service

import (
	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/model"
)

// DefaultBoxFit is the fit used when both dimensions are given and the
// caller did not choose one. "inside" never crops: the result fits within
// width×height and keeps its aspect ratio. Deployments that want the
// crop-to-fill behaviour set processing.default_fit to "cover".
const DefaultBoxFit = model.FitInside

// FitResolver decides how requested dimensions are applied.
type FitResolver struct {
	defaultFit model.Fit
}

// NewFitResolver returns a resolver using defaultFit for the two-dimension
// case. Anything other than a known fit falls back to DefaultBoxFit.
func NewFitResolver(defaultFit model.Fit) FitResolver {
	if _, ok := model.ParseFit(string(defaultFit)); !ok {
		defaultFit = DefaultBoxFit
	}
	return FitResolver{defaultFit: defaultFit}
}

// DefaultFit reports which two-dimension default is active.
func (r FitResolver) DefaultFit() model.Fit { return r.defaultFit }

// Resolve turns optional width/height/fit into a resize geometry.
//
//   - both dimensions: the explicit fit, else the configured default
//   - one dimension:   always inside; the other side follows the aspect ratio
//   - no dimensions:   ok is false and no resize step should run
//
// Non-positive dimensions are treated as not supplied.
func (r FitResolver) Resolve(width, height *int, explicit *model.Fit) (codec.Geometry, bool) {
	width, height = positive(width), positive(height)

	switch {
	case width != nil && height != nil:
		fit := r.defaultFit
		if explicit != nil {
			if f, ok := model.ParseFit(string(*explicit)); ok {
				fit = f
			}
		}
		return codec.Geometry{Width: width, Height: height, Fit: fit}, true
	case width != nil || height != nil:
		return codec.Geometry{Width: width, Height: height, Fit: model.FitInside}, true
	default:
		return codec.Geometry{}, false
	}
}

func positive(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
