package service

import (
	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/model"
)

// Encode parameter bounds and defaults.
const (
	MinQuality = 1
	MaxQuality = 100

	MinCompressionLevel = 0
	MaxCompressionLevel = 9

	DefaultQuality          = 80
	DefaultResizeQuality    = 90
	DefaultCompressionLevel = 6
)

// ParamDefaults holds the values used when a request leaves a parameter out.
type ParamDefaults struct {
	Quality          int
	CompressionLevel int
}

// ClampQuality saturates q to [MinQuality, MaxQuality].
func ClampQuality(q int) int {
	return clamp(q, MinQuality, MaxQuality)
}

// ClampCompressionLevel saturates level to [MinCompressionLevel, MaxCompressionLevel].
func ClampCompressionLevel(level int) int {
	return clamp(level, MinCompressionLevel, MaxCompressionLevel)
}

// ClampParams turns a partial encode request into concrete per-format
// parameters for the codec engine:
//
//   - jpeg, avif: quality
//   - webp: quality, unless lossless is set, in which case quality is omitted
//   - png: compression level
//   - tiff, gif: nothing; the engine's defaults apply
//
// A PNG level of 0 is passed through as is. libvips encodes it at level 6;
// the pipeline reports that through codec.EffectiveParams.
func ClampParams(format model.Format, req model.EncodeRequest, defaults ParamDefaults) codec.EncodeParams {
	params := codec.EncodeParams{Format: format}

	quality := defaults.Quality
	if req.Quality != nil {
		quality = *req.Quality
	}
	quality = ClampQuality(quality)

	switch format {
	case model.FormatJPEG, model.FormatAVIF:
		params.Quality = &quality
	case model.FormatWebP:
		if req.Lossless != nil && *req.Lossless {
			params.Lossless = true
		} else {
			params.Quality = &quality
		}
	case model.FormatPNG:
		level := defaults.CompressionLevel
		if req.CompressionLevel != nil {
			level = *req.CompressionLevel
		}
		level = ClampCompressionLevel(level)
		params.CompressionLevel = &level
	}

	return params
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
