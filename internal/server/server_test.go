package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/config"
	"github.com/fleveque/image-service/internal/metrics"
	"github.com/fleveque/image-service/internal/model"
)

// newTestServer builds the full router on the pure-Go engine so the tests
// don't need libvips.
func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *metrics.Metrics) {
	t.Helper()

	cfg := config.Default()
	cfg.Codec.Engine = codec.EngineNative
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	m := metrics.New()
	srv := New(cfg, Deps{Engine: codec.NewNativeEngine(), Metrics: m}, zap.NewNop())
	return srv, m
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartRequest builds a POST with an optional image file and form fields.
func multipartRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		fw, err := w.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) model.OperationResult {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res model.OperationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return res
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) model.ErrorResponse {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("expected %d, got %d: %s", wantStatus, w.Code, w.Body.String())
	}
	var res model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if res.Success {
		t.Error("error response must have success=false")
	}
	return res
}

// payload strips the data URL prefix and returns the raw bytes.
func payload(t *testing.T, dataURL, wantMIME string) []byte {
	t.Helper()
	prefix := "data:" + wantMIME + ";base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("expected data URL with prefix %q, got %.40q", prefix, dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		t.Fatalf("decoding base64: %v", err)
	}
	return raw
}

func TestResize_WidthOnly(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	src := testJPEG(t, 200, 100)

	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/resize", "photo.jpg", src, map[string]string{"width": "100"})))

	if !res.Success {
		t.Error("expected success")
	}
	if res.OriginalImage.Filename != "photo.jpg" || res.OriginalImage.Size != len(src) || res.OriginalImage.Format != "jpeg" {
		t.Errorf("unexpected original descriptor %+v", res.OriginalImage)
	}
	if *res.OriginalImage.Width != 200 || *res.OriginalImage.Height != 100 {
		t.Errorf("unexpected original size %dx%d", *res.OriginalImage.Width, *res.OriginalImage.Height)
	}

	p := res.ProcessedImage
	if p.Filename != "resized_photo.jpg" || p.Format != "jpeg" {
		t.Errorf("unexpected processed descriptor %+v", p.ImageDescriptor)
	}
	if *p.Width != 100 || *p.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", *p.Width, *p.Height)
	}
	raw := payload(t, p.Base64, "image/jpeg")
	if len(raw) != p.Size {
		t.Errorf("descriptor size %d does not match payload %d", p.Size, len(raw))
	}

	if len(res.Processing.Operations) != 1 || res.Processing.Operations[0] != "resize" {
		t.Errorf("unexpected operations %v", res.Processing.Operations)
	}
	params := res.Processing.Parameters
	if params.Format != model.FormatJPEG || params.Width == nil || *params.Width != 100 || params.Height != nil {
		t.Errorf("unexpected parameters %+v", params)
	}
}

func TestResize_NeverEnlarges(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/resize", "small.png", testPNG(t, 40, 20),
		map[string]string{"width": "400", "height": "400", "fit": "cover"})))

	if *res.ProcessedImage.Width != 40 || *res.ProcessedImage.Height != 20 {
		t.Errorf("expected source size 40x20, got %dx%d", *res.ProcessedImage.Width, *res.ProcessedImage.Height)
	}
	if res.ProcessedImage.Format != "png" {
		t.Errorf("expected png kept from extension, got %q", res.ProcessedImage.Format)
	}
}

func TestResize_InvalidFieldsIgnored(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/resize", "photo.png", testPNG(t, 30, 30),
		map[string]string{"width": "abc", "height": "-4", "format": "bmp", "fit": "zoom"})))

	params := res.Processing.Parameters
	if params.Width != nil || params.Height != nil || params.Fit != nil {
		t.Errorf("expected no geometry, got %+v", params)
	}
	if params.Format != model.FormatPNG {
		t.Errorf("expected png, got %q", params.Format)
	}
}

func TestCompress_PNGLevelClamped(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/compress", "icon.png", testPNG(t, 32, 32),
		map[string]string{"compressionLevel": "12"})))

	params := res.Processing.Parameters
	if params.Format != model.FormatPNG {
		t.Errorf("expected png, got %q", params.Format)
	}
	if params.CompressionLevel == nil || *params.CompressionLevel != 9 {
		t.Errorf("expected compressionLevel 9, got %v", params.CompressionLevel)
	}
	if params.Quality != nil {
		t.Error("png must not report a quality")
	}
	if res.ProcessedImage.Filename != "compressed_icon.png" {
		t.Errorf("unexpected filename %q", res.ProcessedImage.Filename)
	}
	if len(res.Processing.Operations) != 1 || res.Processing.Operations[0] != "compress" {
		t.Errorf("unexpected operations %v", res.Processing.Operations)
	}
}

func TestCompress_FormatConversion(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/compress", "photo.png", testPNG(t, 16, 16),
		map[string]string{"format": "JPEG", "quality": "150"})))

	if res.ProcessedImage.Filename != "compressed_photo.jpg" {
		t.Errorf("expected extension rewritten to .jpg, got %q", res.ProcessedImage.Filename)
	}
	if q := res.Processing.Parameters.Quality; q == nil || *q != 100 {
		t.Errorf("expected quality clamped to 100, got %v", q)
	}
	payload(t, res.ProcessedImage.Base64, "image/jpeg")
}

func TestProcess_ResizeThenCompress(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeResult(t, serve(srv, multipartRequest(t, "/api/process", "photo.jpg", testJPEG(t, 200, 100),
		map[string]string{"width": "50", "height": "50", "fit": "cover", "format": "png", "compressionLevel": "3"})))

	if ops := res.Processing.Operations; len(ops) != 2 || ops[0] != "resize" || ops[1] != "compress" {
		t.Errorf("unexpected operations %v", ops)
	}
	p := res.ProcessedImage
	if p.Format != "png" || *p.Width != 50 || *p.Height != 50 {
		t.Errorf("expected 50x50 png, got %+v", p.ImageDescriptor)
	}
	if p.Filename != "processed_photo.png" {
		t.Errorf("unexpected filename %q", p.Filename)
	}
	params := res.Processing.Parameters
	if params.Fit == nil || *params.Fit != model.FitCover {
		t.Errorf("expected cover fit, got %v", params.Fit)
	}
}

func TestProcess_DefaultFitForTwoDimensions(t *testing.T) {
	for _, tt := range []struct {
		defaultFit   string
		wantW, wantH int
	}{
		{"inside", 100, 50},
		{"cover", 100, 100},
	} {
		t.Run(tt.defaultFit, func(t *testing.T) {
			srv, _ := newTestServer(t, func(c *config.Config) { c.Processing.DefaultFit = tt.defaultFit })
			res := decodeResult(t, serve(srv, multipartRequest(t, "/api/process", "photo.jpg", testJPEG(t, 200, 100),
				map[string]string{"width": "100", "height": "100"})))

			if *res.ProcessedImage.Width != tt.wantW || *res.ProcessedImage.Height != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, *res.ProcessedImage.Width, *res.ProcessedImage.Height)
			}
		})
	}
}

func TestImageEndpoints_MissingFile(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/resize", "/api/compress", "/api/process"} {
		res := decodeError(t, serve(srv, multipartRequest(t, path, "", nil, map[string]string{"width": "10"})), http.StatusBadRequest)
		if res.Error != "No image file provided" {
			t.Errorf("%s: unexpected message %q", path, res.Error)
		}
	}

	// Not multipart at all.
	req := httptest.NewRequest(http.MethodPost, "/api/resize", strings.NewReader(`{"width":10}`))
	req.Header.Set("Content-Type", "application/json")
	decodeError(t, serve(srv, req), http.StatusBadRequest)
}

func TestImageEndpoints_SizeLimit(t *testing.T) {
	src := testPNG(t, 64, 64)

	t.Run("exactly at limit is accepted", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) { c.Upload.MaxBytes = int64(len(src)) })
		decodeResult(t, serve(srv, multipartRequest(t, "/api/compress", "a.png", src, nil)))
	})

	t.Run("one byte over is rejected", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) { c.Upload.MaxBytes = int64(len(src)) - 1 })
		res := decodeError(t, serve(srv, multipartRequest(t, "/api/compress", "a.png", src, nil)), http.StatusRequestEntityTooLarge)
		if !strings.HasPrefix(res.Error, "File size too large") {
			t.Errorf("unexpected message %q", res.Error)
		}
	})

	t.Run("body cut off by the request cap", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) {
			c.Upload.MaxBytes = 400
			c.Upload.FormOverheadBytes = 0
		})
		big := testJPEG(t, 128, 128)
		decodeError(t, serve(srv, multipartRequest(t, "/api/compress", "a.jpg", big, nil)), http.StatusRequestEntityTooLarge)
	})
}

// With the stock 6 MiB ceiling, a file of exactly 6 MiB passes the size
// check (and then fails to decode), one more byte is rejected up front.
func TestImageEndpoints_DefaultCeiling(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	limit := 6 * 1024 * 1024

	w := serve(srv, multipartRequest(t, "/api/compress", "big.jpg", make([]byte, limit), nil))
	if w.Code == http.StatusRequestEntityTooLarge {
		t.Errorf("a file of exactly %d bytes must pass the size check", limit)
	}
	decodeError(t, w, http.StatusInternalServerError)

	decodeError(t, serve(srv, multipartRequest(t, "/api/compress", "big.jpg", make([]byte, limit+1), nil)), http.StatusRequestEntityTooLarge)
}

func TestImageEndpoints_UndecodableUpload(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := decodeError(t, serve(srv, multipartRequest(t, "/api/resize", "notes.txt", []byte("hello, not an image"), nil)), http.StatusInternalServerError)
	if res.Error == "" {
		t.Error("expected a diagnostic message")
	}
}

func TestRootAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "POST /api/resize") {
		t.Errorf("unexpected root response %d %q", w.Code, w.Body.String())
	}

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health model.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Timestamp == "" {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestNotFoundAndPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	if w.Code != http.StatusNotFound || w.Body.String() != "Not Found" {
		t.Errorf("expected plain 404, got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on 404")
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/resize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = serve(srv, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
}

func TestRateLimit_AppliesToImageEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 1
	})

	first := serve(srv, multipartRequest(t, "/api/compress", "a.png", testPNG(t, 8, 8), nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", first.Code)
	}
	second := serve(srv, multipartRequest(t, "/api/compress", "a.png", testPNG(t, 8, 8), nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected 429, got %d", second.Code)
	}

	// Health stays reachable.
	if w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimit_ForwardedForOnlyFromTrustedProxies(t *testing.T) {
	limited := func(trusted []string) *Server {
		srv, _ := newTestServer(t, func(c *config.Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerSecond = 0.001
			c.RateLimit.Burst = 1
			c.Server.TrustedProxies = trusted
		})
		return srv
	}
	from := func(forwardedFor string) *http.Request {
		// httptest requests come from 192.0.2.1.
		req := multipartRequest(t, "/api/compress", "a.png", testPNG(t, 8, 8), nil)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		return req
	}

	// No trusted proxies: rotating the header does not buy a new bucket.
	srv := limited(nil)
	if w := serve(srv, from("198.51.100.1")); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	for i := 2; i <= 10; i++ {
		if w := serve(srv, from(fmt.Sprintf("198.51.100.%d", i))); w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d with a new X-Forwarded-For: expected 429, got %d", i, w.Code)
		}
	}

	// Behind a trusted proxy the forwarded address is the client.
	srv = limited([]string{"192.0.2.1"})
	if w := serve(srv, from("198.51.100.1")); w.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", w.Code)
	}
	if w := serve(srv, from("198.51.100.2")); w.Code != http.StatusOK {
		t.Errorf("second client behind proxy: expected 200, got %d", w.Code)
	}
	if w := serve(srv, from("198.51.100.1")); w.Code != http.StatusTooManyRequests {
		t.Errorf("first client again: expected 429, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	decodeResult(t, serve(srv, multipartRequest(t, "/api/compress", "a.png", testPNG(t, 8, 8), nil)))

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`image_service_operations_total{format="png",operation="compress",outcome="ok"} 1`,
		`image_service_codec_duration_seconds_count{engine="native",outcome="ok",step="encode"} 1`,
		`image_service_upload_bytes_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := serve(srv, req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request ID echoed, got %q", got)
	}
}
