package service

import (
	"context"
	"strings"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/model"
)

// MetadataService describes image buffers for API responses.
type MetadataService struct {
	engine codec.Engine
}

// NewMetadataService creates a MetadataService backed by engine's probe.
func NewMetadataService(engine codec.Engine) *MetadataService {
	return &MetadataService{engine: engine}
}

// Describe probes data and builds its descriptor. When override is set (for
// result images) the filename's extension is rewritten to match it, so the
// reported name always agrees with the bytes returned.
func (m *MetadataService) Describe(ctx context.Context, data []byte, filename string, override *model.Format) (model.ImageDescriptor, error) {
	meta, err := m.engine.Probe(ctx, data)
	if err != nil {
		return model.ImageDescriptor{}, ProcessingFailure("reading image metadata", err)
	}

	if override != nil {
		filename = WithExtension(filename, *override)
	}

	desc := model.ImageDescriptor{
		Filename: filename,
		Size:     len(data),
		Format:   meta.Format,
	}
	if meta.Width > 0 {
		desc.Width = model.IntPtr(meta.Width)
	}
	if meta.Height > 0 {
		desc.Height = model.IntPtr(meta.Height)
	}
	return desc, nil
}

// WithExtension replaces filename's extension (if any) with the one for f.
// Only a final ".ext" segment counts as an extension: dots inside
// directory names are left alone.
func WithExtension(filename string, f model.Format) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 && i < len(filename)-1 && !strings.ContainsRune(filename[i:], '/') {
		filename = filename[:i]
	}
	return filename + "." + f.Extension()
}
