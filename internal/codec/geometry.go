package codec

import (
	"errors"
	"fmt"
	"math"

	"github.com/fleveque/image-service/internal/model"
)

// Geometry is a resolved resize request: at least one dimension plus the
// fit mode to apply.
type Geometry struct {
	Width  *int
	Height *int
	Fit    model.Fit
}

// CanvasMode is the optional step applied after scaling.
type CanvasMode int

const (
	CanvasNone  CanvasMode = iota
	CanvasCrop             // center-crop the scaled image down to the canvas
	CanvasEmbed            // center the scaled image on a larger canvas
)

// Plan is the concrete sequence of geometric steps an engine executes:
// scale to ScaledWidth×ScaledHeight, then optionally crop or embed to
// CanvasWidth×CanvasHeight.
type Plan struct {
	ScaledWidth  int
	ScaledHeight int
	Canvas       CanvasMode
	CanvasWidth  int
	CanvasHeight int
}

// OutputSize returns the dimensions the plan produces.
func (p Plan) OutputSize() (int, int) {
	if p.Canvas == CanvasNone {
		return p.ScaledWidth, p.ScaledHeight
	}
	return p.CanvasWidth, p.CanvasHeight
}

// CropOffset returns the top-left corner of a centered crop.
func (p Plan) CropOffset() (left, top int) {
	return (p.ScaledWidth - p.CanvasWidth) / 2, (p.ScaledHeight - p.CanvasHeight) / 2
}

// ErrNoGeometry is returned when PlanResize is called without any dimension.
var ErrNoGeometry = errors.New("resize needs a width or a height")

// PlanResize computes the resize plan for a source of srcW×srcH pixels.
//
// The scale factor is capped at 1 for every fit mode, so no output dimension
// ever exceeds the matching source dimension. With a single dimension the
// fit mode is irrelevant: the other side follows the aspect ratio.
func PlanResize(srcW, srcH int, g Geometry) (Plan, error) {
	if srcW <= 0 || srcH <= 0 {
		return Plan{}, fmt.Errorf("invalid source dimensions %dx%d", srcW, srcH)
	}

	switch {
	case g.Width != nil && g.Height != nil:
		return planBox(srcW, srcH, *g.Width, *g.Height, g.Fit)
	case g.Width != nil:
		return scaled(srcW, srcH, float64(*g.Width)/float64(srcW)), nil
	case g.Height != nil:
		return scaled(srcW, srcH, float64(*g.Height)/float64(srcH)), nil
	default:
		return Plan{}, ErrNoGeometry
	}
}

func planBox(srcW, srcH, boxW, boxH int, fit model.Fit) (Plan, error) {
	if boxW <= 0 || boxH <= 0 {
		return Plan{}, fmt.Errorf("invalid target dimensions %dx%d", boxW, boxH)
	}

	sx := float64(boxW) / float64(srcW)
	sy := float64(boxH) / float64(srcH)

	switch fit {
	case model.FitFill:
		return Plan{ScaledWidth: min(boxW, srcW), ScaledHeight: min(boxH, srcH)}, nil

	case model.FitCover:
		p := scaled(srcW, srcH, math.Max(sx, sy))
		p.Canvas = CanvasCrop
		p.CanvasWidth = min(boxW, p.ScaledWidth)
		p.CanvasHeight = min(boxH, p.ScaledHeight)
		if p.CanvasWidth == p.ScaledWidth && p.CanvasHeight == p.ScaledHeight {
			p.Canvas = CanvasNone
		}
		return p, nil

	case model.FitContain:
		p := scaled(srcW, srcH, math.Min(sx, sy))
		p.Canvas = CanvasEmbed
		p.CanvasWidth = min(boxW, srcW)
		p.CanvasHeight = min(boxH, srcH)
		if p.CanvasWidth == p.ScaledWidth && p.CanvasHeight == p.ScaledHeight {
			p.Canvas = CanvasNone
		}
		return p, nil

	case model.FitOutside:
		return scaled(srcW, srcH, math.Max(sx, sy)), nil

	case model.FitInside, "":
		return scaled(srcW, srcH, math.Min(sx, sy)), nil

	default:
		return Plan{}, fmt.Errorf("unknown fit mode %q", fit)
	}
}

// scaled applies a uniform scale factor, never enlarging.
func scaled(srcW, srcH int, factor float64) Plan {
	if factor > 1 {
		factor = 1
	}
	return Plan{
		ScaledWidth:  scaleDim(srcW, factor),
		ScaledHeight: scaleDim(srcH, factor),
	}
}

func scaleDim(v int, factor float64) int {
	n := int(math.Round(float64(v) * factor))
	if n < 1 {
		return 1
	}
	return n
}
