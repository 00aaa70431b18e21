package extraction

import (
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/gen2brain/heic"
)

// isHEICExt reports whether the extension names an HEIC/HEIF image
// (common on iPhones). Neither tesseract nor the vision APIs accept the
// format directly, so these are decoded and re-encoded as PNG first.
func isHEICExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".heic", ".heif":
		return true
	}
	return false
}

// heicToPNG decodes an HEIC/HEIF file and writes it to a temporary PNG.
// The caller must invoke cleanup to remove the temp file.
func heicToPNG(path string) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening HEIC file: %w", err)
	}
	defer f.Close()

	img, err := heic.Decode(f)
	if err != nil {
		return "", nil, fmt.Errorf("decoding HEIC image: %w", err)
	}

	tmp, err := os.CreateTemp("", "receipt-heic-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp PNG: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("encoding PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp PNG: %w", err)
	}
	return tmp.Name(), cleanup, nil
}
