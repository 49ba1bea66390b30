package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("vips: unsupported image format")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"missing file", MissingFile(), KindMissingFile},
		{"too large", FileTooLarge(6<<20, 7<<20), KindFileTooLarge},
		{"processing", ProcessingFailure("decoding image", cause), KindProcessingFailure},
		{"wrapped", fmt.Errorf("handler: %w", MissingFile()), KindMissingFile},
		{"unclassified", cause, KindProcessingFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProcessingFailure_KeepsCause(t *testing.T) {
	cause := errors.New("bad huffman table")
	err := ProcessingFailure("decoding image", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if err.Error() != "decoding image: bad huffman table" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestFileTooLarge_Message(t *testing.T) {
	msg := FileTooLarge(6<<20, 7<<20).Error()
	if !strings.Contains(msg, "6.0 MiB") || !strings.Contains(msg, "7.0 MiB") {
		t.Errorf("expected both sizes in %q", msg)
	}

	msg = FileTooLarge(6<<20, -1).Error()
	if !strings.Contains(msg, "more than 6.0 MiB") {
		t.Errorf("expected unknown size wording in %q", msg)
	}
}
