// Package codec is the boundary between the service and the libraries that
// actually touch pixels. The service only sees the small Engine interface,
// which makes the pipeline testable with a fake and lets the process choose
// between libvips (fast, needs a system library) and a pure-Go fallback.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleveque/image-service/internal/model"
)

// Engine names accepted by New.
const (
	EngineVips   = "vips"
	EngineNative = "native"
)

// ErrUnsupportedFormat is returned when an engine cannot encode a format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrForeignImage is returned when an Image produced by one engine is handed
// to another.
var ErrForeignImage = errors.New("image was not decoded by this engine")

// Image is a decoded image owned by the engine that produced it.
type Image interface {
	Width() int
	Height() int
	// Format is the source format reported at decode time ("jpeg", "png", ...).
	Format() string
}

// Metadata is what a probe reports about an encoded buffer.
// Width and Height are zero when the engine could not read them.
type Metadata struct {
	Format string
	Width  int
	Height int
}

// EncodeParams are the concrete, already-clamped encode settings.
// A nil pointer means "leave the engine default in place".
type EncodeParams struct {
	Format           model.Format
	Quality          *int
	CompressionLevel *int
	Lossless         bool
}

// vipsDefaultCompression is the PNG level bimg substitutes for a level of 0.
const vipsDefaultCompression = 6

// EffectiveParams returns the settings the named engine really applies for
// params. They differ from the request only where the engine overrides a
// value: bimg treats a PNG compression level of 0 as "unset" and uses 6.
func EffectiveParams(engine string, params EncodeParams) EncodeParams {
	if engine == EngineVips && params.CompressionLevel != nil && *params.CompressionLevel == 0 {
		level := vipsDefaultCompression
		params.CompressionLevel = &level
	}
	return params
}

// Engine is the capability set the pipeline needs. Keep it small: every
// method here has to be implemented by both engines and the test fake.
type Engine interface {
	Decode(ctx context.Context, data []byte) (Image, error)
	Probe(ctx context.Context, data []byte) (Metadata, error)
	Resize(ctx context.Context, img Image, plan Plan) (Image, error)
	Encode(ctx context.Context, img Image, params EncodeParams) ([]byte, error)
	Name() string
}

// New returns the engine registered under name.
func New(name string) (Engine, error) {
	switch name {
	case EngineVips, "":
		return NewVipsEngine(), nil
	case EngineNative:
		return NewNativeEngine(), nil
	default:
		return nil, fmt.Errorf("unknown codec engine %q (expected %q or %q)", name, EngineVips, EngineNative)
	}
}
