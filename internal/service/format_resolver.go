package service

import (
	"strings"

	"github.com/fleveque/image-service/internal/model"
)

// DefaultFormat is used when nothing else names a supported format.
const DefaultFormat = model.FormatJPEG

// SourceFormats is what is known about the upload's format before any
// output format is chosen.
type SourceFormats struct {
	// Extension is the format implied by the upload's filename, nil when the
	// extension is missing or unrecognised.
	Extension *model.Format
	// Decoded is the format name the codec engine reported for the bytes.
	// It may be outside the supported set (e.g. "svg", "heif").
	Decoded string
}

// NewSourceFormats builds SourceFormats from an upload filename and the
// format reported by a probe.
func NewSourceFormats(filename, decoded string) SourceFormats {
	src := SourceFormats{Decoded: decoded}
	if f, ok := model.FormatFromFilename(filename); ok {
		src.Extension = &f
	}
	return src
}

// ResolveFormat returns the first candidate that names a supported format,
// falling back to DefaultFormat. Candidates are ordered highest precedence
// first; nil and unsupported values are skipped, so the result is always a
// member of model.AllFormats.
func ResolveFormat(candidates ...*model.Format) model.Format {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if f, ok := model.ParseFormat(strings.ToLower(string(*c))); ok {
			return f
		}
	}
	return DefaultFormat
}

// candidates returns the source-derived part of the cascade:
// filename extension, then the decoded format.
func (s SourceFormats) candidates() []*model.Format {
	decoded := model.Format(s.Decoded)
	return []*model.Format{s.Extension, &decoded}
}

// ResolveResizeFormat is the cascade for resize-only operations:
// resize format > extension > decoded > jpeg.
func ResolveResizeFormat(resize model.ResizeRequest, src SourceFormats) model.Format {
	return ResolveFormat(append([]*model.Format{resize.Format}, src.candidates()...)...)
}

// ResolveEncodeFormat is the cascade for compress-only operations:
// encode format > extension > decoded > jpeg.
func ResolveEncodeFormat(encode model.EncodeRequest, src SourceFormats) model.Format {
	return ResolveFormat(append([]*model.Format{encode.Format}, src.candidates()...)...)
}

// ResolveCombinedFormat is the authoritative cascade for resize-and-compress:
// encode format > resize format > extension > decoded > jpeg.
func ResolveCombinedFormat(resize model.ResizeRequest, encode model.EncodeRequest, src SourceFormats) model.Format {
	return ResolveFormat(append([]*model.Format{encode.Format, resize.Format}, src.candidates()...)...)
}
