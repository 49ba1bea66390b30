package service

import (
	"context"
	"testing"

	"github.com/fleveque/image-service/internal/model"
)

func TestWithExtension(t *testing.T) {
	tests := []struct {
		filename string
		format   model.Format
		want     string
	}{
		{"photo.png", model.FormatJPEG, "photo.jpg"},
		{"photo.jpeg", model.FormatJPEG, "photo.jpg"},
		{"archive.tar.gz", model.FormatWebP, "archive.tar.webp"},
		{"noext", model.FormatPNG, "noext.png"},
		{"dir.v2/noext", model.FormatGIF, "dir.v2/noext.gif"},
		{"trailingdot.", model.FormatTIFF, "trailingdot..tiff"},
		{"resized_cat.PNG", model.FormatAVIF, "resized_cat.avif"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := WithExtension(tt.filename, tt.format); got != tt.want {
				t.Errorf("WithExtension(%q, %s) = %q, want %q", tt.filename, tt.format, got, tt.want)
			}
		})
	}
}

func TestMetadataService_Describe(t *testing.T) {
	engine := &fakeEngine{src: fakeImage{w: 64, h: 32, format: "png"}}
	svc := NewMetadataService(engine)

	desc, err := svc.Describe(context.Background(), []byte("12345"), "photo.png", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Filename != "photo.png" || desc.Size != 5 || desc.Format != "png" {
		t.Errorf("unexpected descriptor %+v", desc)
	}
	if desc.Width == nil || *desc.Width != 64 || desc.Height == nil || *desc.Height != 32 {
		t.Errorf("unexpected dimensions %+v", desc)
	}

	override := model.FormatJPEG
	desc, err = svc.Describe(context.Background(), []byte("1"), "resized_photo.png", &override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Filename != "resized_photo.jpg" {
		t.Errorf("expected rewritten extension, got %q", desc.Filename)
	}
}
