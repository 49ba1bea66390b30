package codec

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Step names reported to an Observer.
const (
	StepDecode = "decode"
	StepProbe  = "probe"
	StepResize = "resize"
	StepEncode = "encode"
)

// Observer receives the duration and outcome of every engine call.
type Observer interface {
	ObserveCodecStep(engine, step string, d time.Duration, err error)
}

// Instrument wraps an engine so every call opens a tracing span and is
// reported to obs. obs may be nil, in which case only spans are recorded.
func Instrument(e Engine, obs Observer) Engine {
	return &instrumented{
		next:   e,
		obs:    obs,
		tracer: otel.Tracer("github.com/fleveque/image-service/internal/codec"),
	}
}

type instrumented struct {
	next   Engine
	obs    Observer
	tracer trace.Tracer
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Decode(ctx context.Context, data []byte) (Image, error) {
	ctx, done := i.start(ctx, StepDecode, attribute.Int("image.bytes", len(data)))
	img, err := i.next.Decode(ctx, data)
	done(err)
	return img, err
}

func (i *instrumented) Probe(ctx context.Context, data []byte) (Metadata, error) {
	ctx, done := i.start(ctx, StepProbe, attribute.Int("image.bytes", len(data)))
	meta, err := i.next.Probe(ctx, data)
	done(err)
	return meta, err
}

func (i *instrumented) Resize(ctx context.Context, img Image, plan Plan) (Image, error) {
	w, h := plan.OutputSize()
	ctx, done := i.start(ctx, StepResize,
		attribute.Int("image.target_width", w),
		attribute.Int("image.target_height", h),
	)
	out, err := i.next.Resize(ctx, img, plan)
	done(err)
	return out, err
}

func (i *instrumented) Encode(ctx context.Context, img Image, params EncodeParams) ([]byte, error) {
	ctx, done := i.start(ctx, StepEncode, attribute.String("image.format", string(params.Format)))
	out, err := i.next.Encode(ctx, img, params)
	done(err)
	return out, err
}

func (i *instrumented) start(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := i.tracer.Start(ctx, "codec."+step, trace.WithAttributes(attrs...))
	span.SetAttributes(attribute.String("codec.engine", i.next.Name()))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if i.obs != nil {
			i.obs.ObserveCodecStep(i.next.Name(), step, time.Since(begin), err)
		}
	}
}
