// Package extract pulls plain text out of PDF documents and YouTube caption
// tracks so it can be discussed in class.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ErrExtraction is wrapped by every failure to produce text from a source.
var ErrExtraction = errors.New("extraction failed")

const maxPDFBytes = 50 << 20

// PDFExtractor downloads PDFs and extracts their text.
type PDFExtractor struct {
	client *http.Client
	logger *zap.Logger
}

func NewPDFExtractor(timeout time.Duration) *PDFExtractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return NewPDFExtractorWithClient(&http.Client{Timeout: timeout})
}

func NewPDFExtractorWithClient(client *http.Client) *PDFExtractor {
	return &PDFExtractor{client: client, logger: zap.L().Named("extract")}
}

// TextFromURL downloads the PDF at url and returns the text of every page,
// each followed by a blank line.
func (e *PDFExtractor) TextFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %w", ErrExtraction, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: downloading pdf: %w", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: downloading pdf: status %d", ErrExtraction, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf: %w", ErrExtraction, err)
	}
	if len(body) > maxPDFBytes {
		return "", fmt.Errorf("%w: pdf larger than %d bytes", ErrExtraction, maxPDFBytes)
	}

	pages, err := PagesFromReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}
	text := JoinPages(pages)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: pdf contains no extractable text", ErrExtraction)
	}
	e.logger.Debug("pdf extracted", zap.String("url", url), zap.Int("pages", len(pages)), zap.Int("chars", len(text)))
	return text, nil
}

// PagesFromReader returns the plain text of each page in order. Pages that
// fail to decode yield an empty string.
func PagesFromReader(r io.ReaderAt, size int64) (pages []string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("%w: malformed pdf: %v", ErrExtraction, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pdf: %w", ErrExtraction, err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func PagesFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return PagesFromReader(f, info.Size())
}

func JoinPages(pages []string) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
