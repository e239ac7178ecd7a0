package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lucidpdf/textlayer/observability"
)

const (
	// DefaultBaseURL points at the hosted extraction API.
	DefaultBaseURL = "https://extraction-api.nanonets.com"

	extractPath    = "/api/v1/extract/sync"
	defaultTimeout = 60 * time.Second

	// nominalGrid is the synthetic raster size assumed for normalized
	// word boxes when the provider omits page dimensions.
	nominalGrid = 1000

	maxErrorBody = 64 << 10
)

var (
	// ErrUnauthorized indicates the API rejected the configured key.
	ErrUnauthorized = errors.New("ocr: invalid or missing API key")

	// ErrRateLimited indicates the API throttled the request.
	ErrRateLimited = errors.New("ocr: provider rate limit exceeded")
)

// Client talks to a Docstrange-compatible extraction endpoint and turns
// its word-level bounding boxes into the engine's page-word model.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	log     observability.Logger
}

var _ Provider = (*Client)(nil)

// ClientOption adjusts a Client during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the extraction endpoint, e.g. for a self-hosted
// deployment. Trailing slashes are trimmed.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpc = h }
}

// WithRateLimit paces outgoing requests to rps with the given burst.
// Zero or negative rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(log observability.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient builds a Client for the hosted extraction API. The key may
// be empty when the endpoint does not enforce authentication.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: defaultTimeout},
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract uploads the document and returns its markdown rendering plus
// per-page word boxes. The document travels as-is; the provider handles
// rasterization.
func (c *Client) Extract(ctx context.Context, filename string, document []byte) (*ExtractResult, error) {
	if len(document) == 0 {
		return nil, errors.New("ocr: empty document")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, contentType, err := buildExtractForm(filename, document)
	if err != nil {
		return nil, fmt.Errorf("ocr: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, body)
	if err != nil {
		return nil, fmt.Errorf("ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	c.log.Debug("ocr extract request",
		observability.String("request_id", requestID),
		observability.String("filename", filename),
		observability.Int("bytes", len(document)))

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ocr: read response: %w", err)
	}
	var payload extractResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}
	if !payload.Success || payload.Status == "failed" {
		msg := payload.Message
		if msg == "" {
			msg = "provider reported failure"
		}
		return nil, fmt.Errorf("ocr: extraction failed: %s", msg)
	}
	boxes := payload.Result.Markdown.Metadata.BoundingBoxes
	if boxes == nil || !boxes.Success {
		return nil, errors.New("ocr: response carried no word boxes")
	}

	result := &ExtractResult{
		Markdown: payload.Result.Markdown.Content,
		Pages:    pagesFromElements(boxes),
	}

	words := 0
	for _, pw := range result.Pages {
		words += len(pw.Words)
	}
	c.log.Debug("ocr extract response",
		observability.String("request_id", requestID),
		observability.Int("pages", len(result.Pages)),
		observability.Int("words", words),
		observability.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return result, nil
}

func (c *Client) statusError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	detail := strings.TrimSpace(string(excerpt))
	var decoded struct {
		Detail string `json:"detail"`
	}
	if err := sonic.Unmarshal(excerpt, &decoded); err == nil && decoded.Detail != "" {
		detail = decoded.Detail
	}
	return fmt.Errorf("ocr: api error: status %d: %s", resp.StatusCode, detail)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildExtractForm(filename string, document []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if filename == "" {
		filename = "document.pdf"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(document); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("output_format", "markdown"); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("include_metadata", "bounding_boxes_word"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type extractResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		Markdown struct {
			Content  string `json:"content"`
			Metadata struct {
				BoundingBoxes *boundingBoxPayload `json:"bounding_boxes"`
			} `json:"metadata"`
		} `json:"markdown"`
	} `json:"result"`
}

type boundingBoxPayload struct {
	Success        bool          `json:"success"`
	Elements       []wordElement `json:"elements"`
	PageDimensions struct {
		Pages []pageDimension `json:"pages"`
	} `json:"page_dimensions"`
}

type wordElement struct {
	Content      string      `json:"content"`
	Page         int         `json:"page"`
	BoundingBox  *elementBox `json:"bounding_box"`
	MarkdownLine int         `json:"markdown_line"`
	WordOffset   int         `json:"word_offset"`
}

type elementBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Page   int     `json:"page"`
	// Normalized defaults to true when the provider omits it.
	Normalized *bool `json:"normalized"`
}

func (b *elementBox) normalized() bool {
	return b.Normalized == nil || *b.Normalized
}

type pageDimension struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type orderedWord struct {
	text       string
	box        elementBox
	line       int
	offset     int
	normalized bool
}

// pagesFromElements regroups the provider's flat element list into
// per-page word sets in reading order. Word boxes end up in pixel
// coordinates: normalized boxes are scaled by the page's raster
// dimensions, falling back to a nominal grid when the provider omitted
// them. Pages keyed by zero-based index.
func pagesFromElements(boxes *boundingBoxPayload) map[int]PageWords {
	dims := make(map[int]pageDimension, len(boxes.PageDimensions.Pages))
	for _, d := range boxes.PageDimensions.Pages {
		dims[d.Page] = d
	}

	grouped := make(map[int][]orderedWord)
	for _, el := range boxes.Elements {
		if el.BoundingBox == nil || strings.TrimSpace(el.Content) == "" {
			continue
		}
		page := el.Page
		if page == 0 {
			page = el.BoundingBox.Page
		}
		if page < 1 {
			continue
		}
		grouped[page] = append(grouped[page], orderedWord{
			text:       el.Content,
			box:        *el.BoundingBox,
			line:       el.MarkdownLine,
			offset:     el.WordOffset,
			normalized: el.BoundingBox.normalized(),
		})
	}

	pages := make(map[int]PageWords, len(grouped))
	for page, entries := range grouped {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].line != entries[j].line {
				return entries[i].line < entries[j].line
			}
			return entries[i].offset < entries[j].offset
		})

		meta := PageImageMeta{}
		if d, ok := dims[page]; ok && d.Width > 0 && d.Height > 0 {
			meta = PageImageMeta{
				Width:  int(math.Round(d.Width)),
				Height: int(math.Round(d.Height)),
			}
		}

		words := make([]RecognizedWord, 0, len(entries))
		for _, entry := range entries {
			box := Region{X: entry.box.X, Y: entry.box.Y, Width: entry.box.Width, Height: entry.box.Height}
			if entry.normalized {
				if !meta.Valid() {
					meta = PageImageMeta{Width: nominalGrid, Height: nominalGrid}
				}
				box = Region{
					X:      box.X * float64(meta.Width),
					Y:      box.Y * float64(meta.Height),
					Width:  box.Width * float64(meta.Width),
					Height: box.Height * float64(meta.Height),
				}
			}
			words = append(words, RecognizedWord{Text: entry.text, Box: box, Page: page - 1})
		}
		pages[page-1] = PageWords{Meta: meta, Words: words}
	}
	return pages
}
