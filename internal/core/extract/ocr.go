package extract

import "context"

// OCR extracts text from an image URL. Implementations may call a vision
// model or an external OCR service.
type OCR interface {
	ExtractText(ctx context.Context, imageURL string) (string, error)
}

// NoopOCR returns empty text for every image. Used when no OCR provider is
// configured; images then contribute nothing to the merged input.
type NoopOCR struct{}

func (NoopOCR) ExtractText(_ context.Context, _ string) (string, error) {
	return "", nil
}
