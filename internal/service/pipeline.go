// Package service contains the core business logic of the image service:
// resolving partial request input into a concrete operation, and driving
// the codec engine through decode → resize → encode.
package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/model"
)

// Pipeline operation names, used for spans, metrics and logs.
const (
	OpResize            = "resize"
	OpCompress          = "compress"
	OpResizeAndCompress = "process"
)

// OperationRecorder is notified once per pipeline run.
type OperationRecorder interface {
	ObserveOperation(op string, format model.Format, err error)
}

// PipelineOptions carries the static processing configuration.
type PipelineOptions struct {
	DefaultFit              model.Fit
	DefaultQuality          int
	ResizeQuality           int
	DefaultCompressionLevel int
}

// DefaultPipelineOptions returns the built-in defaults.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		DefaultFit:              DefaultBoxFit,
		DefaultQuality:          DefaultQuality,
		ResizeQuality:           DefaultResizeQuality,
		DefaultCompressionLevel: DefaultCompressionLevel,
	}
}

// Pipeline orchestrates the three public operations. It holds no
// per-request state, so one instance serves all requests concurrently.
type Pipeline struct {
	engine   codec.Engine
	fits     FitResolver
	opts     PipelineOptions
	recorder OperationRecorder
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewPipeline creates a Pipeline. recorder may be nil.
func NewPipeline(engine codec.Engine, opts PipelineOptions, recorder OperationRecorder, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		engine:   engine,
		fits:     NewFitResolver(opts.DefaultFit),
		opts:     opts,
		recorder: recorder,
		logger:   logger,
		tracer:   otel.Tracer("github.com/fleveque/image-service/internal/service"),
	}
}

// Output is the result of one pipeline run: the encoded bytes plus the
// fully-resolved operation descriptor that produced them.
type Output struct {
	Data     []byte
	Format   model.Format
	Geometry *codec.Geometry // nil when no resize step ran
	Encode   codec.EncodeParams
}

// Parameters reports the resolved values in the response's shape.
func (o *Output) Parameters() model.Parameters {
	params := model.Parameters{
		Format:           o.Format,
		Quality:          o.Encode.Quality,
		CompressionLevel: o.Encode.CompressionLevel,
	}
	if o.Encode.Lossless {
		params.Lossless = model.BoolPtr(true)
	}
	if o.Geometry != nil {
		params.Width = o.Geometry.Width
		params.Height = o.Geometry.Height
		params.Fit = model.FitPtr(o.Geometry.Fit)
	}
	return params
}

// ResizeOnly scales the image and re-encodes it. No encode parameters come
// from the caller, so the re-encode uses the dedicated resize quality.
func (p *Pipeline) ResizeOnly(ctx context.Context, data []byte, req model.ResizeRequest, src SourceFormats) (*Output, error) {
	geometry, ok := p.fits.Resolve(req.Width, req.Height, req.Fit)
	format := ResolveResizeFormat(req, src)
	params := ClampParams(format, model.EncodeRequest{}, ParamDefaults{
		Quality:          p.opts.ResizeQuality,
		CompressionLevel: p.opts.DefaultCompressionLevel,
	})
	return p.run(ctx, OpResize, data, geometryOrNil(geometry, ok), params)
}

// CompressOnly re-encodes the image without touching its dimensions.
func (p *Pipeline) CompressOnly(ctx context.Context, data []byte, req model.EncodeRequest, src SourceFormats) (*Output, error) {
	format := ResolveEncodeFormat(req, src)
	params := ClampParams(format, req, p.defaults())
	return p.run(ctx, OpCompress, data, nil, params)
}

// ResizeAndCompress scales, then encodes with the caller's parameters.
// An encode format outranks a resize format.
func (p *Pipeline) ResizeAndCompress(ctx context.Context, data []byte, resize model.ResizeRequest, encode model.EncodeRequest, src SourceFormats) (*Output, error) {
	geometry, ok := p.fits.Resolve(resize.Width, resize.Height, resize.Fit)
	format := ResolveCombinedFormat(resize, encode, src)
	params := ClampParams(format, encode, p.defaults())
	return p.run(ctx, OpResizeAndCompress, data, geometryOrNil(geometry, ok), params)
}

func (p *Pipeline) defaults() ParamDefaults {
	return ParamDefaults{
		Quality:          p.opts.DefaultQuality,
		CompressionLevel: p.opts.DefaultCompressionLevel,
	}
}

// run drives the engine. The resize step always finishes before encode
// starts: encode parameters apply to the resized pixels.
func (p *Pipeline) run(ctx context.Context, op string, data []byte, geometry *codec.Geometry, params codec.EncodeParams) (out *Output, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+op, trace.WithAttributes(
		attribute.String("image.format", string(params.Format)),
		attribute.Bool("image.resize", geometry != nil),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if p.recorder != nil {
			p.recorder.ObserveOperation(op, params.Format, err)
		}
	}()

	img, err := p.engine.Decode(ctx, data)
	if err != nil {
		return nil, ProcessingFailure("decoding image", err)
	}

	if geometry != nil {
		plan, err := codec.PlanResize(img.Width(), img.Height(), *geometry)
		if err != nil {
			return nil, ProcessingFailure("planning resize", err)
		}
		img, err = p.engine.Resize(ctx, img, plan)
		if err != nil {
			return nil, ProcessingFailure("resizing image", err)
		}
	}

	encoded, err := p.engine.Encode(ctx, img, params)
	if err != nil {
		return nil, ProcessingFailure("encoding image", err)
	}

	p.logger.Debug("pipeline complete",
		zap.String("operation", op),
		zap.String("source_format", img.Format()),
		zap.String("format", string(params.Format)),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", len(encoded)),
	)

	return &Output{
		Data:     encoded,
		Format:   params.Format,
		Geometry: geometry,
		Encode:   codec.EffectiveParams(p.engine.Name(), params),
	}, nil
}

func geometryOrNil(g codec.Geometry, ok bool) *codec.Geometry {
	if !ok {
		return nil
	}
	return &g
}
