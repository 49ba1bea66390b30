// Package model defines the core data types for the image service.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."`
// annotations) tell encoding/json how to map fields in API responses.
package model

import (
	"path/filepath"
	"strings"
)

// Format is an output encoding the service can produce.
// Go doesn't have enums, we use typed string constants and a lookup set.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatTIFF Format = "tiff"
	FormatGIF  Format = "gif"
)

// AllFormats is the closed set of supported formats, in a stable order.
var AllFormats = []Format{FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatTIFF, FormatGIF}

// ParseFormat returns the Format named by s. Matching is exact: callers are
// expected to lower-case user input first. Aliases such as "jpg" are not
// accepted here; see FormatFromFilename for extension handling.
func ParseFormat(s string) (Format, bool) {
	for _, f := range AllFormats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Extension returns the file extension (without dot) used for the format.
// JPEG is the only format whose conventional extension differs from its name.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// MIMEType returns the media type used in data URLs.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// FormatFromFilename infers a format from a filename's extension.
// Matching is case-insensitive; "jpg" maps to jpeg and "tif" to tiff.
// The second return value is false for unknown or missing extensions.
func FormatFromFilename(filename string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "webp":
		return FormatWebP, true
	case "avif":
		return FormatAVIF, true
	case "tif", "tiff":
		return FormatTIFF, true
	case "gif":
		return FormatGIF, true
	default:
		return "", false
	}
}

// Fit controls how an image is mapped onto a width×height box when the
// aspect ratios differ.
type Fit string

const (
	FitCover   Fit = "cover"   // fill the box, crop the overflow
	FitContain Fit = "contain" // fit inside the box, letterbox the rest
	FitFill    Fit = "fill"    // stretch to the box, ignore aspect ratio
	FitInside  Fit = "inside"  // shrink until both sides fit, no canvas
	FitOutside Fit = "outside" // shrink until both sides cover the box, no crop
)

// AllFits is the closed set of fit modes.
var AllFits = []Fit{FitCover, FitContain, FitFill, FitInside, FitOutside}

// ParseFit returns the Fit named by s.
func ParseFit(s string) (Fit, bool) {
	for _, f := range AllFits {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// ResizeRequest holds the caller's (possibly partial) resize input.
// Pointer fields are optional: nil means "not supplied", which is different
// from a supplied zero.
type ResizeRequest struct {
	Width  *int
	Height *int
	Format *Format
	Fit    *Fit
}

// EncodeRequest holds the caller's (possibly partial) encode input.
type EncodeRequest struct {
	Quality          *int
	Format           *Format
	CompressionLevel *int // PNG only
	Lossless         *bool
}

// Operation names recorded in OperationResult.Processing.
const (
	OperationResize   = "resize"
	OperationCompress = "compress"
)

// ImageDescriptor describes one image buffer: the upload or the result.
// Width and Height are omitted when the codec engine could not report them.
type ImageDescriptor struct {
	Filename string `json:"filename"`
	Size     int    `json:"size"`
	Format   string `json:"format"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
}

// EncodedImage is a result descriptor plus the transportable output bytes.
// Embedding the descriptor flattens its fields into the JSON object, the
// same way `{...metadata, base64}` would in a JS object literal.
type EncodedImage struct {
	ImageDescriptor
	Base64 string `json:"base64"`
}

// Parameters records the resolved values that were actually applied.
type Parameters struct {
	Width            *int   `json:"width,omitempty"`
	Height           *int   `json:"height,omitempty"`
	Format           Format `json:"format"`
	Fit              *Fit   `json:"fit,omitempty"`
	Quality          *int   `json:"quality,omitempty"`
	CompressionLevel *int   `json:"compressionLevel,omitempty"`
	Lossless         *bool  `json:"lossless,omitempty"`
}

// Processing lists the logical operations and the parameters used for them.
type Processing struct {
	Operations []string   `json:"operations"`
	Parameters Parameters `json:"parameters"`
}

// OperationResult is the success envelope returned by every image endpoint.
type OperationResult struct {
	Success        bool            `json:"success"`
	OriginalImage  ImageDescriptor `json:"originalImage"`
	ProcessedImage EncodedImage    `json:"processedImage"`
	Processing     Processing      `json:"processing"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// IntPtr returns a pointer to v. Handy for building optional fields.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// FormatPtr returns a pointer to f.
func FormatPtr(f Format) *Format { return &f }

// FitPtr returns a pointer to f.
func FitPtr(f Fit) *Fit { return &f }
