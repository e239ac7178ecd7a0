package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lucidpdf/textlayer/ir/semantic"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/overlay"
	"github.com/lucidpdf/textlayer/parser"
)

const (
	uploadField = "file"

	// headroom for multipart framing on top of the file size cap
	multipartOverhead = 1 << 20
)

var pdfMagic = []byte("%PDF-")

type documentResponse struct {
	Success  bool           `json:"success"`
	Filename string         `json:"filename"`
	Size     int            `json:"size_bytes"`
	Report   overlay.Report `json:"report"`
}

// handleDocuments accepts a multipart PDF upload, runs OCR and embedding,
// and replies with the searchable document or, on ?report=1, the embed
// report as JSON.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ProcessTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartOverhead)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(w, http.StatusRequestEntityTooLarge, "too_large", s.sizeLimitMessage())
			return
		}
		s.reject(w, http.StatusBadRequest, "bad_request", `multipart upload with a "file" field is required`)
		return
	}
	defer file.Close()

	document, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxFileSize+1))
	if err != nil {
		s.reject(w, http.StatusBadRequest, "bad_request", "could not read upload")
		return
	}
	if int64(len(document)) > s.cfg.MaxFileSize {
		s.reject(w, http.StatusRequestEntityTooLarge, "too_large", s.sizeLimitMessage())
		return
	}
	if !bytes.HasPrefix(document, pdfMagic) {
		s.reject(w, http.StatusBadRequest, "not_a_pdf", "upload does not start with a PDF header")
		return
	}

	pages, err := countPages(ctx, document)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "invalid_pdf", "document cannot be parsed")
		return
	}
	if pages == 0 {
		s.reject(w, http.StatusBadRequest, "invalid_pdf", "document has no pages")
		return
	}
	if pages > s.cfg.MaxPages {
		s.reject(w, http.StatusBadRequest, "page_limit",
			fmt.Sprintf("document has %d pages, the limit is %d", pages, s.cfg.MaxPages))
		return
	}

	requestID := requestIDFrom(r.Context())
	filename := safeFilename(header.Filename)

	extracted, err := s.provider.Extract(ctx, filename, document)
	if err != nil {
		s.metrics.documents.WithLabelValues("provider_error").Inc()
		s.log.Warn("ocr extraction failed",
			observability.String("request_id", requestID),
			observability.Error("error", err),
		)
		switch {
		case errors.Is(err, ocr.ErrUnauthorized):
			writeErr(w, http.StatusBadGateway, "provider_auth", "OCR provider rejected the configured credentials")
		case errors.Is(err, ocr.ErrRateLimited):
			w.Header().Set("Retry-After", "30")
			writeErr(w, http.StatusServiceUnavailable, "provider_rate_limited", "OCR provider is rate limiting, retry later")
		case errors.Is(err, context.DeadlineExceeded):
			writeErr(w, http.StatusGatewayTimeout, "timeout", "processing timed out")
		default:
			writeErr(w, http.StatusBadGateway, "ocr_failed", "OCR extraction failed")
		}
		return
	}

	result, err := s.engine.Process(ctx, document, extracted.Pages)
	if err != nil {
		s.metrics.documents.WithLabelValues("engine_error").Inc()
		s.log.Warn("embedding failed",
			observability.String("request_id", requestID),
			observability.Error("error", err),
		)
		switch {
		case errors.Is(err, overlay.ErrMalformedInput), errors.Is(err, overlay.ErrEmptyDocument):
			writeErr(w, http.StatusBadRequest, "invalid_pdf", "document cannot be processed")
		case errors.Is(err, overlay.ErrInvalidPageMetadata), errors.Is(err, overlay.ErrUnsupportedPageStructure):
			writeErr(w, http.StatusUnprocessableEntity, "unprocessable", err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeErr(w, http.StatusGatewayTimeout, "timeout", "processing timed out")
		default:
			writeErr(w, http.StatusInternalServerError, "embed_failed", "text layer embedding failed")
		}
		return
	}

	s.metrics.documents.WithLabelValues("ok").Inc()
	s.metrics.processedPages.Add(float64(pages))
	s.metrics.embeddedWords.Add(float64(result.Report.EmbeddedWords))
	s.metrics.skippedWords.Add(float64(result.Report.SkippedWords))

	outName := outputName(filename)
	s.log.Info("document processed",
		observability.String("request_id", requestID),
		observability.String("filename", filename),
		observability.Int("pages", pages),
		observability.Int("embedded_words", result.Report.EmbeddedWords),
		observability.Int("skipped_words", result.Report.SkippedWords),
		observability.Int64("output_bytes", int64(len(result.Output))),
	)

	if wantReport(r) {
		writeJSON(w, http.StatusOK, documentResponse{
			Success:  true,
			Filename: outName,
			Size:     len(result.Output),
			Report:   result.Report,
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Output)))
	if _, err := w.Write(result.Output); err != nil {
		s.log.Warn("write response",
			observability.String("request_id", requestID),
			observability.Error("error", err),
		)
	}
}

// reject writes a client error and counts the document as rejected.
func (s *Server) reject(w http.ResponseWriter, status int, code, message string) {
	s.metrics.documents.WithLabelValues("rejected").Inc()
	writeErr(w, status, code, message)
}

func (s *Server) sizeLimitMessage() string {
	return fmt.Sprintf("file exceeds the %d MB limit", s.cfg.MaxFileSize>>20)
}

func wantReport(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("report"))
	return err == nil && v
}

// countPages parses just enough of the document to count pages, so the
// page cap applies before any OCR credits are spent.
func countPages(ctx context.Context, document []byte) (int, error) {
	rawDoc, err := parser.NewDocumentParser(parser.Config{}).Parse(ctx, bytes.NewReader(document))
	if err != nil {
		return 0, err
	}
	doc, err := semantic.NewBuilder(semantic.BuilderConfig{}).Build(ctx, rawDoc)
	if err != nil {
		return 0, err
	}
	return len(doc.Pages), nil
}

func safeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r == '/' {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.pdf"
	}
	return base
}

// outputName mirrors the CLI convention of prefixing the input stem.
func outputName(original string) string {
	stem := strings.TrimSuffix(original, filepath.Ext(original))
	if stem == "" {
		stem = "document"
	}
	return "searchable_" + stem + ".pdf"
}
