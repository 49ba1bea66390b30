package codec

import (
	"context"
	"fmt"

	"github.com/h2non/bimg"

	"github.com/fleveque/image-service/internal/model"
)

// VipsEngine implements Engine with bimg (Go bindings for libvips), a C
// library that's extremely fast at image manipulation. The trade-off:
// requires libvips as a system dependency.
type VipsEngine struct{}

// NewVipsEngine creates a libvips-backed engine.
func NewVipsEngine() *VipsEngine {
	return &VipsEngine{}
}

// vipsImage keeps the encoded buffer around: bimg works buffer-to-buffer,
// so "decoded" here means "validated and measured".
type vipsImage struct {
	buf    []byte
	format string
	width  int
	height int
}

func (i *vipsImage) Width() int     { return i.width }
func (i *vipsImage) Height() int    { return i.height }
func (i *vipsImage) Format() string { return i.format }

// bimgTypes maps our formats onto bimg's image types.
var bimgTypes = map[model.Format]bimg.ImageType{
	model.FormatJPEG: bimg.JPEG,
	model.FormatPNG:  bimg.PNG,
	model.FormatWebP: bimg.WEBP,
	model.FormatAVIF: bimg.AVIF,
	model.FormatTIFF: bimg.TIFF,
	model.FormatGIF:  bimg.GIF,
}

// Name implements Engine.
func (e *VipsEngine) Name() string { return EngineVips }

// Decode checks that libvips can read the buffer and records its size.
func (e *VipsEngine) Decode(ctx context.Context, data []byte) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// bimg.NewImage wraps raw bytes, it doesn't copy them, just references them.
	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	return &vipsImage{
		buf:    data,
		format: meta.Type,
		width:  meta.Size.Width,
		height: meta.Size.Height,
	}, nil
}

// Probe reads format and dimensions from the image header.
func (e *VipsEngine) Probe(ctx context.Context, data []byte) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}

	format := meta.Type
	if format == "" {
		format = "unknown"
	}
	return Metadata{Format: format, Width: meta.Size.Width, Height: meta.Size.Height}, nil
}

// Resize executes a Plan. Intermediate buffers are PNG so the scaling step
// never adds a lossy generation before the final encode.
func (e *VipsEngine) Resize(ctx context.Context, img Image, plan Plan) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, ok := img.(*vipsImage)
	if !ok {
		return nil, ErrForeignImage
	}

	buf := src.buf
	width, height := src.width, src.height

	if plan.ScaledWidth != width || plan.ScaledHeight != height {
		// Force: scale to exactly these dimensions. The plan already
		// preserved (or deliberately ignored) the aspect ratio.
		out, err := bimg.NewImage(buf).Process(bimg.Options{
			Width:        plan.ScaledWidth,
			Height:       plan.ScaledHeight,
			Force:        true,
			NoAutoRotate: true,
			Type:         bimg.PNG,
		})
		if err != nil {
			return nil, fmt.Errorf("resizing to %dx%d: %w", plan.ScaledWidth, plan.ScaledHeight, err)
		}
		buf = out
		width, height = plan.ScaledWidth, plan.ScaledHeight
	}

	switch plan.Canvas {
	case CanvasCrop:
		left, top := plan.CropOffset()
		out, err := bimg.NewImage(buf).Extract(top, left, plan.CanvasWidth, plan.CanvasHeight)
		if err != nil {
			return nil, fmt.Errorf("cropping to %dx%d: %w", plan.CanvasWidth, plan.CanvasHeight, err)
		}
		buf = out
	case CanvasEmbed:
		out, err := bimg.NewImage(buf).Process(bimg.Options{
			Width:        plan.CanvasWidth,
			Height:       plan.CanvasHeight,
			Embed:        true,
			Enlarge:      true, // the canvas is larger than the image, not the pixels
			Extend:       bimg.ExtendBackground,
			Background:   bimg.Color{R: 0, G: 0, B: 0},
			NoAutoRotate: true,
			Type:         bimg.PNG,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding in %dx%d: %w", plan.CanvasWidth, plan.CanvasHeight, err)
		}
		buf = out
	}
	if plan.Canvas != CanvasNone {
		width, height = plan.CanvasWidth, plan.CanvasHeight
	}

	return &vipsImage{buf: buf, format: src.format, width: width, height: height}, nil
}

// Encode writes the image in the requested format.
// bimg.Options is a struct with many fields, this is Go's alternative to
// builder patterns or method chaining. You set only the fields you need.
func (e *VipsEngine) Encode(ctx context.Context, img Image, params EncodeParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, ok := img.(*vipsImage)
	if !ok {
		return nil, ErrForeignImage
	}

	imageType, ok := bimgTypes[params.Format]
	if !ok || !bimg.IsTypeSupportedSave(imageType) {
		return nil, fmt.Errorf("%w: libvips cannot write %s", ErrUnsupportedFormat, params.Format)
	}

	opts := bimg.Options{
		Type:         imageType,
		Lossless:     params.Lossless,
		NoAutoRotate: true,
	}
	if params.Quality != nil {
		opts.Quality = *params.Quality
	}
	if params.CompressionLevel != nil {
		opts.Compression = *params.CompressionLevel
	}

	out, err := bimg.NewImage(src.buf).Process(opts)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", params.Format, err)
	}
	return out, nil
}
