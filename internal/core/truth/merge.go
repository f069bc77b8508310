package truth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/truthlab/content-radar/internal/core/extract"
	"github.com/truthlab/content-radar/internal/platform/observability"
)

// ErrNoAnalyzableInput is returned when text, URLs, and images all yield
// nothing to analyze.
var ErrNoAnalyzableInput = errors.New("no analyzable input")

const partSeparator = "\n\n---\n\n"

// URLExtractor reduces a URL to readable article text.
type URLExtractor interface {
	Extract(ctx context.Context, rawURL string) (*extract.Article, error)
}

// Merger assembles pasted text, extracted pages, and OCR output into one
// tagged document for the analyzer.
type Merger struct {
	extractor      URLExtractor
	ocr            extract.OCR
	maxChars       int
	maxCharsPerURL int
	perURLTimeout  time.Duration
	logger         *zerolog.Logger
}

// MergerConfig bounds the merged document.
type MergerConfig struct {
	MaxChars       int
	MaxCharsPerURL int
	PerURLTimeout  time.Duration
}

func NewMerger(extractor URLExtractor, ocr extract.OCR, cfg MergerConfig, logger *zerolog.Logger) *Merger {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 80000
	}

	if cfg.MaxCharsPerURL <= 0 {
		cfg.MaxCharsPerURL = 40000
	}

	if cfg.PerURLTimeout <= 0 {
		cfg.PerURLTimeout = 10 * time.Second
	}

	return &Merger{
		extractor:      extractor,
		ocr:            ocr,
		maxChars:       cfg.MaxChars,
		maxCharsPerURL: cfg.MaxCharsPerURL,
		perURLTimeout:  cfg.PerURLTimeout,
		logger:         logger,
	}
}

// Merge builds the analyzable document. Parts that fail to extract are
// skipped rather than failing the whole merge; only an entirely empty
// result is an error.
func (m *Merger) Merge(ctx context.Context, text string, urls, images []string) (string, error) {
	parts := []string{}

	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}

	for _, u := range urls {
		if part := m.urlPart(ctx, u); part != "" {
			parts = append(parts, part)
		}
	}

	for _, img := range images {
		if part := m.imagePart(ctx, img); part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) == 0 {
		return "", ErrNoAnalyzableInput
	}

	return truncateRunes(strings.Join(parts, partSeparator), m.maxChars), nil
}

func (m *Merger) urlPart(ctx context.Context, rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.perURLTimeout)
	defer cancel()

	article, err := m.extractor.Extract(fetchCtx, rawURL)
	if err != nil {
		observability.URLExtractionsTotal.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Str("url", rawURL).Msg("url extraction failed, skipping")

		return ""
	}

	observability.URLExtractionsTotal.WithLabelValues("success").Inc()

	return fmt.Sprintf("[URL: %s]\n%s", rawURL, truncateRunes(article.Text, m.maxCharsPerURL))
}

func (m *Merger) imagePart(ctx context.Context, imageURL string) string {
	if strings.TrimSpace(imageURL) == "" {
		return ""
	}

	text, err := m.ocr.ExtractText(ctx, imageURL)
	if err != nil {
		m.logger.Warn().Err(err).Str("image", imageURL).Msg("ocr failed, skipping")

		return ""
	}

	if strings.TrimSpace(text) == "" {
		return ""
	}

	return fmt.Sprintf("[IMAGE: %s]\n%s", imageURL, text)
}

// FoldSnippets appends pre-captured text snippets to free text as tagged
// blocks, so bundle submissions carry their capture context through the
// merge as ordinary text.
func FoldSnippets(text string, snippets []string) string {
	parts := []string{}

	if t := strings.TrimSpace(text); t != "" {
		parts = append(parts, t)
	}

	for _, s := range snippets {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, "[CAPTURE]\n"+s)
		}
	}

	return strings.Join(parts, partSeparator)
}

// MergeCaptures builds the analyzable document for a capture group: each
// capture becomes a tagged block in position order.
func (m *Merger) MergeCaptures(captures []CaptureInput) (string, error) {
	parts := []string{}

	for _, c := range captures {
		block := captureBlock(c)
		if block == "" {
			continue
		}

		parts = append(parts, "[CAPTURE]\n"+block)
	}

	if len(parts) == 0 {
		return "", ErrNoAnalyzableInput
	}

	return truncateRunes(strings.Join(parts, partSeparator), m.maxChars), nil
}

// CaptureInput is the analyzable slice of a stored capture.
type CaptureInput struct {
	Title   string
	URL     string
	Text    string
	OCRText string
}

// captureBlock renders a capture tolerant of missing fields: only the lines
// that have content appear.
func captureBlock(c CaptureInput) string {
	lines := []string{}

	if t := strings.TrimSpace(c.Title); t != "" {
		lines = append(lines, "TITLE: "+t)
	}

	if u := strings.TrimSpace(c.URL); u != "" {
		lines = append(lines, "URL: "+u)
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		text = strings.TrimSpace(c.OCRText)
	}

	if text != "" {
		lines = append(lines, "TEXT: "+text)
	}

	return strings.Join(lines, "\n")
}
