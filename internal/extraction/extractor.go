package extraction

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a stored document for extraction dispatch. It is decided
// once, from the file extension, before any extraction work starts.
type Kind int

const (
	// KindImage is a bitmap photo or scan; text comes from OCR.
	KindImage Kind = iota
	// KindPaginated is a page-structured document with a text layer (PDF).
	KindPaginated
)

// DetectKind classifies a document by its extension. Anything that is not
// a paginated format is treated as an image; the validator has already
// restricted what can reach this point.
func DetectKind(path string) Kind {
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		return KindPaginated
	}
	return KindImage
}

// ErrNoText means extraction ran but produced no text at all.
var ErrNoText = errors.New("no text found in document")

// Error is an extraction failure carrying the underlying cause.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return "extracting text: " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Backend performs optical character recognition on a single image file.
type Backend interface {
	// RecognizeImage returns the raw text read from the image at path
	RecognizeImage(ctx context.Context, path string) (string, error)
	// Close releases backend resources
	Close() error
}

// TextExtractor turns a stored document into raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
	Close() error
}

// DefaultTimeout bounds a single extraction. OCR backends call out to an
// external binary or API that can hang.
const DefaultTimeout = 60 * time.Second

// Extractor implements TextExtractor by dispatching on document kind:
// paginated documents are read through their text layer, images go to the
// configured OCR backend.
type Extractor struct {
	backend Backend
	timeout time.Duration
}

// NewExtractor creates an Extractor around an OCR backend. A timeout of
// zero or less falls back to DefaultTimeout.
func NewExtractor(backend Backend, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{backend: backend, timeout: timeout}
}

// ExtractText extracts raw text from the document at path. All failures
// come back as *Error; a document that yields no text at all fails with
// ErrNoText as the cause.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var text string
	var err error
	switch DetectKind(path) {
	case KindPaginated:
		text, err = extractPages(ctx, path)
	case KindImage:
		imgPath := path
		if isHEICExt(filepath.Ext(path)) {
			converted, cleanup, convErr := heicToPNG(path)
			if convErr != nil {
				return "", &Error{Cause: convErr}
			}
			defer cleanup()
			imgPath = converted
		}
		text, err = e.backend.RecognizeImage(ctx, imgPath)
	}
	if err != nil {
		return "", &Error{Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Cause: ErrNoText}
	}
	return text, nil
}

// Close closes the OCR backend
func (e *Extractor) Close() error {
	return e.backend.Close()
}
