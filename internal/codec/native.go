package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	// Blank imports register extra decoders with the image package, the same
	// way database drivers register with database/sql.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fleveque/image-service/internal/model"
)

// NativeEngine implements Engine in pure Go using disintegration/imaging
// and golang.org/x/image. It needs no system libraries, which makes it the
// engine of choice for tests and minimal containers. It cannot write WebP
// or AVIF.
type NativeEngine struct{}

// NewNativeEngine creates a pure-Go engine.
func NewNativeEngine() *NativeEngine {
	return &NativeEngine{}
}

type rasterImage struct {
	img    image.Image
	format string
}

func (i *rasterImage) Width() int     { return i.img.Bounds().Dx() }
func (i *rasterImage) Height() int    { return i.img.Bounds().Dy() }
func (i *rasterImage) Format() string { return i.format }

// Name implements Engine.
func (e *NativeEngine) Name() string { return EngineNative }

// Decode fully decodes the buffer into memory.
func (e *NativeEngine) Decode(ctx context.Context, data []byte) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return &rasterImage{img: img, format: format}, nil
}

// Probe reads only the header (image.DecodeConfig), not the pixel data.
func (e *NativeEngine) Probe(ctx context.Context, data []byte) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}
	return Metadata{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Resize executes a Plan with Lanczos resampling.
func (e *NativeEngine) Resize(ctx context.Context, img Image, plan Plan) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, ok := img.(*rasterImage)
	if !ok {
		return nil, ErrForeignImage
	}

	out := src.img
	if plan.ScaledWidth != src.Width() || plan.ScaledHeight != src.Height() {
		out = imaging.Resize(out, plan.ScaledWidth, plan.ScaledHeight, imaging.Lanczos)
	}

	switch plan.Canvas {
	case CanvasCrop:
		out = imaging.CropCenter(out, plan.CanvasWidth, plan.CanvasHeight)
	case CanvasEmbed:
		canvas := imaging.New(plan.CanvasWidth, plan.CanvasHeight, color.NRGBA{A: 255})
		out = imaging.PasteCenter(canvas, out)
	}

	return &rasterImage{img: out, format: src.format}, nil
}

// Encode writes the image in the requested format.
func (e *NativeEngine) Encode(ctx context.Context, img Image, params EncodeParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, ok := img.(*rasterImage)
	if !ok {
		return nil, ErrForeignImage
	}

	var (
		format imaging.Format
		opts   []imaging.EncodeOption
	)

	switch params.Format {
	case model.FormatJPEG:
		format = imaging.JPEG
		if params.Quality != nil {
			opts = append(opts, imaging.JPEGQuality(*params.Quality))
		}
	case model.FormatPNG:
		format = imaging.PNG
		if params.CompressionLevel != nil {
			opts = append(opts, imaging.PNGCompressionLevel(pngLevel(*params.CompressionLevel)))
		}
	case model.FormatGIF:
		format = imaging.GIF
	case model.FormatTIFF:
		format = imaging.TIFF
	default:
		return nil, fmt.Errorf("%w: pure-Go engine cannot write %s", ErrUnsupportedFormat, params.Format)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src.img, format, opts...); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", params.Format, err)
	}
	return buf.Bytes(), nil
}

// pngLevel maps zlib-style 0–9 levels onto the four levels image/png offers.
func pngLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
