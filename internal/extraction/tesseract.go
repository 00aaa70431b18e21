package extraction

import (
	"context"
	"fmt"
)

// DefaultTesseractLang recognizes Latin and Cyrillic script together;
// payment receipts in the wild mix both.
const DefaultTesseractLang = "rus+eng"

// Tesseract is an OCR backend that shells out to the tesseract binary.
type Tesseract struct {
	bin         string
	lang        string
	tessdataDir string
	runner      Runner
}

// NewTesseract creates a Tesseract backend. Empty bin or lang fall back to
// "tesseract" and DefaultTesseractLang.
func NewTesseract(bin, lang, tessdataDir string) *Tesseract {
	return newTesseractWithRunner(bin, lang, tessdataDir, execRunner{})
}

func newTesseractWithRunner(bin, lang, tessdataDir string, runner Runner) *Tesseract {
	if bin == "" {
		bin = "tesseract"
	}
	if lang == "" {
		lang = DefaultTesseractLang
	}
	return &Tesseract{bin: bin, lang: lang, tessdataDir: tessdataDir, runner: runner}
}

// RecognizeImage runs tesseract over the image and returns its stdout.
func (t *Tesseract) RecognizeImage(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", t.lang}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}

	out, _, err := t.runner.Run(ctx, t.bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

// Close is a no-op for the external-binary backend
func (t *Tesseract) Close() error {
	return nil
}
