package web

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/filerift/internal/coerce"
	"github.com/JonMunkholm/filerift/internal/config"
	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/metrics"
	"github.com/JonMunkholm/filerift/internal/reader"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Reader: config.ReaderConfig{Quote: '"', HasHeader: true, SampleSize: 20},
		Server: config.ServerConfig{
			Port:           8080,
			MaxUploadSize:  1 << 20,
			PreviewRows:    2,
			RequestTimeout: 5 * time.Second,
		},
	}
	reg := prometheus.NewRegistry()
	return NewServer(cfg, metrics.New(reg), reg)
}

func uploadRequest(t *testing.T, path, name string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestHandleDetect(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantDelim string
		wantQuote string
	}{
		{"comma", "a.csv", "id,name\n1,Ann\n2,Bob\n", ",", ""},
		{"pipe quoted", "a.txt", "id|name\n1|\"A|nn\"\n2|Bob\n", "|", `"`},
		{"tab", "a.tsv", "id\tname\n1\tAnn\n", "\t", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t)
			rec := serve(s, uploadRequest(t, "/api/detect", tt.file, []byte(tt.content), nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			resp := decode[DetectResponse](t, rec)
			if resp.Dialect.Delimiter != tt.wantDelim || resp.Dialect.Quote != tt.wantQuote {
				t.Errorf("dialect = %+v, want %q/%q", resp.Dialect, tt.wantDelim, tt.wantQuote)
			}
			if resp.File != tt.file {
				t.Errorf("file = %q", resp.File)
			}
		})
	}
}

func TestHandleDetect_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("a;b\n1;2\n"))
	gz.Close()

	s := testServer(t)
	rec := serve(s, uploadRequest(t, "/api/detect", "a.csv.gz", buf.Bytes(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if resp := decode[DetectResponse](t, rec); resp.Dialect.Delimiter != ";" {
		t.Errorf("delimiter = %q, want ;", resp.Dialect.Delimiter)
	}
}

func TestHandleDetect_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"undetermined", "a.csv", "a,b;c\n1,2\n3;4\n", http.StatusUnprocessableEntity, "DIA001"},
		{"empty", "a.csv", "", http.StatusUnprocessableEntity, "DIA001"},
		{"no file", "", "", http.StatusBadRequest, "FILE002"},
		{"bad gzip", "a.csv.gz", "not gzip", http.StatusBadRequest, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t)
			rec := serve(s, uploadRequest(t, "/api/detect", tt.fileName, []byte(tt.content), nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleDetect_TooLarge(t *testing.T) {
	s := testServer(t)
	s.cfg.MaxUploadSize = 64

	content := strings.Repeat("a,b\n", 100)
	rec := serve(s, uploadRequest(t, "/api/detect", "big.csv", []byte(content), nil))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413, body = %s", rec.Code, rec.Body)
	}
}

func TestHandlePreview(t *testing.T) {
	content := "id,name\n1,Ann\n2,\n3,Cy\n"

	t.Run("detected and truncated", func(t *testing.T) {
		s := testServer(t)
		rec := serve(s, uploadRequest(t, "/api/preview", "a.csv", []byte(content), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}

		resp := decode[PreviewResponse](t, rec)
		if !resp.Detected || resp.Dialect.Delimiter != "," {
			t.Errorf("detected = %v, dialect = %+v", resp.Detected, resp.Dialect)
		}
		if strings.Join(resp.Headers, "|") != "id|name" {
			t.Errorf("headers = %q", resp.Headers)
		}
		if len(resp.Rows) != 2 || !resp.Truncated {
			t.Fatalf("rows = %d, truncated = %v", len(resp.Rows), resp.Truncated)
		}
		if got := *resp.Rows[0][1]; got != "Ann" {
			t.Errorf("rows[0][1] = %q", got)
		}
	})

	t.Run("explicit options", func(t *testing.T) {
		s := testServer(t)
		fields := map[string]string{
			"delimiter":     "comma",
			"quote":         "none",
			"header":        "false",
			"blank_to_null": "true",
			"rows":          "10",
		}
		rec := serve(s, uploadRequest(t, "/api/preview", "a.csv", []byte(content), fields))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}

		resp := decode[PreviewResponse](t, rec)
		if resp.Detected || resp.Dialect.Quote != "" {
			t.Errorf("detected = %v, dialect = %+v", resp.Detected, resp.Dialect)
		}
		if resp.Headers != nil {
			t.Errorf("headers = %q, want none", resp.Headers)
		}
		if len(resp.Rows) != 4 || resp.Truncated {
			t.Fatalf("rows = %d, truncated = %v", len(resp.Rows), resp.Truncated)
		}
		if resp.Rows[2][1] != nil {
			t.Errorf("blank cell = %q, want null", *resp.Rows[2][1])
		}
	})

	t.Run("fixed width", func(t *testing.T) {
		s := testServer(t)
		fixed := "01Ann  \n02Bob  \n"
		fields := map[string]string{"widths": "2,5", "header": "false", "trim": "true"}
		rec := serve(s, uploadRequest(t, "/api/preview", "a.dat", []byte(fixed), fields))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}

		resp := decode[PreviewResponse](t, rec)
		if resp.Dialect != nil || len(resp.Widths) != 2 {
			t.Errorf("dialect = %+v, widths = %v", resp.Dialect, resp.Widths)
		}
		if got := *resp.Rows[1][1]; got != "Bob" {
			t.Errorf("rows[1][1] = %q, want Bob", got)
		}
	})

	t.Run("html", func(t *testing.T) {
		s := testServer(t)
		req := uploadRequest(t, "/api/preview", "a.csv", []byte(content), nil)
		req.Header.Set("Accept", "text/html")
		rec := serve(s, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "<td>Ann</td>") {
			t.Errorf("body = %s", rec.Body)
		}
	})
}

func TestHandlePreview_BadParams(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		wantCode string
	}{
		{"rows", map[string]string{"rows": "-1"}, "VAL003"},
		{"widths", map[string]string{"widths": "2,x"}, "VAL003"},
		{"header", map[string]string{"header": "maybe"}, "VAL003"},
		{"delimiter", map[string]string{"delimiter": "ab"}, "DIA002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t)
			rec := serve(s, uploadRequest(t, "/api/preview", "a.csv", []byte("a,b\n"), tt.fields))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if resp := decode[ErrorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandlePreview_HTMXError(t *testing.T) {
	s := testServer(t)
	req := uploadRequest(t, "/api/preview", "a.csv", []byte("a,b;c\n1,2\n3;4\n"), nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Code: DIA001") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	serve(s, uploadRequest(t, "/api/detect", "a.csv", []byte("a,b\n1,2\n"), nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `filerift_dialect_detections_total{outcome="ok"} 1`) {
		t.Errorf("metrics body missing detection count:\n%s", rec.Body)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"undetermined", fmt.Errorf("detect: %w", dialect.ErrUndetermined), "DIA001"},
		{"max bytes", &http.MaxBytesError{Limit: 1}, "FILE001"},
		{"missing file", http.ErrMissingFile, "FILE002"},
		{"not multipart", http.ErrNotMultipart, "FILE002"},
		{"no headers", reader.ErrNoHeaders, "FILE004"},
		{"column", fmt.Errorf("x: %w", reader.ErrColumnNotFound), "VAL002"},
		{"conversion", &coerce.Error{Kind: coerce.KindInt, Value: "x", Err: errors.New("bad")}, "VAL001"},
		{"bad param", badParam("rows", errors.New("neg")), "VAL003"},
		{"gzip", errors.New("create gzip reader: gzip: invalid header"), "FILE003"},
		{"unknown", errors.New("boom"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.want {
				t.Errorf("MapError() code = %q, want %q", got, tt.want)
			}
		})
	}

	if MapError(nil).Code != "" {
		t.Error("MapError(nil) should be empty")
	}
	if IsUserFacing(errors.New("boom")) || !IsUserFacing(http.ErrMissingFile) {
		t.Error("IsUserFacing mismatch")
	}
}
