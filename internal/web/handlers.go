package web

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/logging"
	"github.com/JonMunkholm/filerift/internal/reader"
	"github.com/JonMunkholm/filerift/internal/source"
	"github.com/JonMunkholm/filerift/internal/web/templates"
)

// maxPreviewRows caps the rows parameter.
const maxPreviewRows = 1000

// DialectResponse is a dialect in JSON form. Quote is empty when quoting is
// disabled.
type DialectResponse struct {
	Delimiter string `json:"delimiter"`
	Quote     string `json:"quote,omitempty"`
}

func dialectResponse(d dialect.Dialect) *DialectResponse {
	resp := &DialectResponse{Delimiter: string(d.Delimiter)}
	if d.HasQuote() {
		resp.Quote = string(d.Quote)
	}
	return resp
}

// DetectResponse is the body of POST /api/detect.
type DetectResponse struct {
	File        string           `json:"file"`
	Dialect     *DialectResponse `json:"dialect"`
	SampleLines int              `json:"sample_lines"`
}

// PreviewResponse is the body of POST /api/preview.
type PreviewResponse struct {
	File      string           `json:"file"`
	Dialect   *DialectResponse `json:"dialect,omitempty"`
	Widths    []int            `json:"widths,omitempty"`
	Detected  bool             `json:"detected"`
	Headers   []string         `json:"headers,omitempty"`
	Rows      [][]*string      `json:"rows"`
	Truncated bool             `json:"truncated"`

	used dialect.Dialect
}

// upload is the "file" part of a multipart request. The part is seekable so
// it can be sampled for detection and then read again from the start.
type upload struct {
	file multipart.File
	name string
}

// readUpload parses the multipart body within MaxUploadSize.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &upload{file: f, name: hdr.Filename}, nil
}

func (u *upload) open() (*source.Input, error) {
	if _, err := u.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	return source.Wrap(u.file, source.CompressionFromPath(u.name))
}

func (u *upload) Close() error { return u.file.Close() }

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// detect samples the upload and infers its dialect.
func (s *Server) detect(u *upload) (dialect.Dialect, int, error) {
	in, err := u.open()
	if err != nil {
		return dialect.Dialect{}, 0, err
	}
	defer in.Close()

	rows, err := dialect.Sample(in, s.reader.SampleSize)
	if err != nil {
		return dialect.Dialect{}, 0, err
	}
	d, err := s.reader.Detector().Detect(rows)
	s.metrics.ObserveDetection(err)
	if err != nil {
		return dialect.Dialect{}, len(rows), fmt.Errorf("detect %s: %w", u.name, err)
	}
	return d, len(rows), nil
}

// handleDetect reports the dialect of an uploaded file.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)

	u, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer u.Close()

	d, n, err := s.detect(u)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "file", u.name).Info("detected dialect", "dialect", d, "sample_lines", n)
	writeJSON(w, r, DetectResponse{File: u.name, Dialect: dialectResponse(d), SampleLines: n})
}

// previewOptions are the parsed form parameters of a preview request.
type previewOptions struct {
	dialect    dialect.Dialect
	hasDialect bool
	widths     []int
	rows       int
	reader     reader.Options
}

func (s *Server) parsePreviewOptions(r *http.Request) (previewOptions, error) {
	opts := previewOptions{
		rows:   s.cfg.PreviewRows,
		reader: s.reader.ReaderOptions(),
	}

	if v := r.FormValue("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, badParam("rows", fmt.Errorf("%q is not a positive integer", v))
		}
		opts.rows = min(n, maxPreviewRows)
	}

	if v := r.FormValue("widths"); v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n <= 0 {
				return opts, badParam("widths", fmt.Errorf("%q is not a positive width", part))
			}
			opts.widths = append(opts.widths, n)
		}
	}

	delim, err := dialect.ParseRune(r.FormValue("delimiter"))
	if err != nil {
		return opts, fmt.Errorf("delimiter: %w", err)
	}
	quote := s.reader.Quote
	if _, ok := r.Form["quote"]; ok {
		if quote, err = dialect.ParseRune(r.FormValue("quote")); err != nil {
			return opts, fmt.Errorf("quote: %w", err)
		}
	}
	if delim == 0 {
		if d, ok := s.reader.Dialect(); ok {
			delim = d.Delimiter
		}
	}
	if delim != 0 {
		opts.dialect = dialect.Dialect{Delimiter: delim, Quote: quote}
		opts.hasDialect = true
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"header", &opts.reader.HasHeader},
		{"trim", &opts.reader.Trim},
		{"blank_to_null", &opts.reader.BlankToNull},
	}
	for _, f := range flags {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, badParam(f.name, err)
		}
		*f.dst = b
	}

	return opts, nil
}

// handlePreview returns the first rows of an uploaded file, as JSON or as
// an HTML table for browsers.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)

	u, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer u.Close()

	opts, err := s.parsePreviewOptions(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := s.preview(u, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "file", u.name).Info("previewed file",
		"rows", len(resp.Rows), "truncated", resp.Truncated, "detected", resp.Detected)

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Preview(previewData(resp)).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render preview", "error", err)
		}
		return
	}
	writeJSON(w, r, resp)
}

func (s *Server) preview(u *upload, opts previewOptions) (*PreviewResponse, error) {
	resp := &PreviewResponse{File: u.name, Rows: [][]*string{}}
	mode := "delimited"

	if len(opts.widths) == 0 && !opts.hasDialect {
		d, _, err := s.detect(u)
		if err != nil {
			return nil, err
		}
		opts.dialect = d
		resp.Detected = true
	}
	resp.used = opts.dialect

	in, err := u.open()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var rd *reader.Reader
	if len(opts.widths) > 0 {
		mode = "fixed_width"
		resp.Widths = opts.widths
		rd, err = reader.NewFixedWidthLengths(in, opts.widths, opts.reader)
	} else {
		resp.Dialect = dialectResponse(opts.dialect)
		rd, err = reader.NewDelimited(in, opts.dialect, opts.reader)
	}
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	resp.Headers = rd.Headers()
	for len(resp.Rows) < opts.rows && rd.Read() {
		resp.Rows = append(resp.Rows, rd.Values())
	}
	if len(resp.Rows) == opts.rows {
		resp.Truncated = rd.Read()
	}

	s.metrics.RowsRead.WithLabelValues(mode).Add(float64(rd.RowNumber()))
	s.metrics.BytesRead.Add(float64(in.BytesRead()))
	s.metrics.ReadSeconds.Observe(time.Since(start).Seconds())

	if err := rd.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func previewData(resp *PreviewResponse) templates.PreviewData {
	desc := resp.used.String()
	if len(resp.Widths) > 0 {
		parts := make([]string, len(resp.Widths))
		for i, n := range resp.Widths {
			parts[i] = strconv.Itoa(n)
		}
		desc = "fixed width " + strings.Join(parts, ",")
	}
	return templates.PreviewData{
		File:      resp.File,
		Dialect:   desc,
		Detected:  resp.Detected,
		Headers:   resp.Headers,
		Rows:      resp.Rows,
		Truncated: resp.Truncated,
	}
}
