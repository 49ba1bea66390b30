package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/image-service/internal/model"
	"github.com/fleveque/image-service/internal/service"
)

// uploadField is the multipart field carrying the image.
const uploadField = "image"

// upload is the image file pulled out of a multipart request.
type upload struct {
	Filename string
	Data     []byte
}

// readUpload extracts the image file, enforcing the size ceiling before any
// bytes reach the codec engine. A file of exactly maxBytes is accepted.
func readUpload(c *gin.Context, maxBytes int64) (*upload, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return nil, classifyFormError(err, maxBytes)
	}

	if fh.Size > maxBytes {
		return nil, service.FileTooLarge(maxBytes, fh.Size)
	}

	data, err := readFileHeader(fh)
	if err != nil {
		return nil, classifyFormError(err, maxBytes)
	}

	return &upload{Filename: fh.Filename, Data: data}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	// defer runs when the enclosing function returns, like Ruby's ensure or
	// a finally block. Great for cleanup.
	defer f.Close()

	return io.ReadAll(f)
}

// classifyFormError maps multipart parsing errors onto error kinds.
func classifyFormError(err error, maxBytes int64) error {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return service.FileTooLarge(maxBytes, -1)
	case errors.Is(err, http.ErrMissingFile),
		errors.Is(err, http.ErrNotMultipart),
		errors.Is(err, http.ErrMissingBoundary):
		return service.MissingFile()
	default:
		return service.ProcessingFailure("reading upload", err)
	}
}

// Form values are all optional. Anything absent or unparsable becomes nil,
// which is how "not supplied" stays distinct from a supplied boundary value.

func formInt(c *gin.Context, key string) *int {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}

// formDimension is formInt restricted to positive values.
func formDimension(c *gin.Context, key string) *int {
	v := formInt(c, key)
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

func formBool(c *gin.Context, key string) *bool {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}

func formFormat(c *gin.Context, key string) *model.Format {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	f, ok := model.ParseFormat(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return nil
	}
	return &f
}

func formFit(c *gin.Context, key string) *model.Fit {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	f, ok := model.ParseFit(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return nil
	}
	return &f
}

// parseResizeRequest reads width, height, format and fit.
func parseResizeRequest(c *gin.Context) model.ResizeRequest {
	return model.ResizeRequest{
		Width:  formDimension(c, "width"),
		Height: formDimension(c, "height"),
		Format: formFormat(c, "format"),
		Fit:    formFit(c, "fit"),
	}
}

// parseEncodeRequest reads quality, format, compressionLevel and lossless.
func parseEncodeRequest(c *gin.Context) model.EncodeRequest {
	return model.EncodeRequest{
		Quality:          formInt(c, "quality"),
		Format:           formFormat(c, "format"),
		CompressionLevel: formInt(c, "compressionLevel"),
		Lossless:         formBool(c, "lossless"),
	}
}
