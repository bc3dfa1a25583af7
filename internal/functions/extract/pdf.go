package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// maxBrochureBytes caps how much of a remote brochure we download.
const maxBrochureBytes = 10 << 20

// maxBrochureChars caps how much extracted text ends up in a prompt.
const maxBrochureChars = 4000

// Extractor pulls plain text out of a document so it can be folded into a
// generation prompt. Implementations are best effort: any failure yields
// empty text, never an error the caller has to handle.
type Extractor interface {
	ExtractText(source string) string
}

// PDFExtractor fetches a brochure PDF over HTTP and extracts its text.
type PDFExtractor struct {
	httpClient *http.Client
}

// NewPDFExtractor creates a new PDFExtractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// ExtractText downloads the PDF at source and returns its plain text,
// truncated to a prompt-friendly size. Returns "" on any failure.
func (e *PDFExtractor) ExtractText(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}

	data, err := e.fetch(source)
	if err != nil {
		return ""
	}

	text, err := extractPDFText(data)
	if err != nil {
		return ""
	}

	text = strings.TrimSpace(text)
	if len(text) > maxBrochureChars {
		text = text[:maxBrochureChars]
	}
	return text
}

func (e *PDFExtractor) fetch(source string) ([]byte, error) {
	resp, err := e.httpClient.Get(source)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBrochureBytes))
}

func extractPDFText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
