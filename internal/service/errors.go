package service

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Kind classifies a failure. The HTTP layer maps each kind to a status code
// in one place instead of inspecting error messages.
type Kind int

const (
	KindProcessingFailure Kind = iota
	KindMissingFile
	KindFileTooLarge
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindMissingFile:
		return "missing_file"
	case KindFileTooLarge:
		return "file_too_large"
	case KindNotFound:
		return "not_found"
	default:
		return "processing_failure"
	}
}

// Error is a failure carrying its Kind alongside a client-facing message.
// Err holds the underlying cause (if any) for logging and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap lets errors.Is and errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err. Errors that were never classified are
// processing failures: something unexpected went wrong.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessingFailure
}

// MissingFile is returned when the request carried no image upload.
func MissingFile() error {
	return &Error{Kind: KindMissingFile, Message: "No image file provided"}
}

// FileTooLarge is returned when an upload exceeds the size ceiling.
// received is the upload size, or a negative number when the body was cut
// off before its size was known.
func FileTooLarge(limit, received int64) error {
	got := "more than " + humanize.IBytes(uint64(limit))
	if received >= 0 {
		got = humanize.IBytes(uint64(received))
	}
	return &Error{
		Kind:    KindFileTooLarge,
		Message: fmt.Sprintf("File size too large. Maximum allowed size is %s, received %s", humanize.IBytes(uint64(limit)), got),
	}
}

// ProcessingFailure wraps a codec-engine failure. The engine's diagnostic
// message is kept as the client-facing message.
func ProcessingFailure(op string, err error) error {
	return &Error{
		Kind:    KindProcessingFailure,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}
