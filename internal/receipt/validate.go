package receipt

import "strings"

// DefaultMaxFileSize is the upload size ceiling in bytes.
const DefaultMaxFileSize = 20_000_000

// defaultAllowedTypes is the media allow-list. HEIC/HEIF are included
// because phone cameras produce them and the extraction layer can decode
// them; everything else is rejected before any bytes are inspected.
var defaultAllowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// Validator checks declared upload metadata against policy. It never looks
// at file content.
type Validator struct {
	allowed map[string]bool
	maxSize int64
}

// NewValidator creates a Validator with the default allow-list. A maxSize
// of zero or less falls back to DefaultMaxFileSize.
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{
		allowed: defaultAllowedTypes,
		maxSize: maxSize,
	}
}

// Validate checks the declared media type and size. It returns
// ErrUnsupportedType or ErrTooLarge, or nil when the upload is acceptable.
func (v *Validator) Validate(mimeType string, size int64) error {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	// Strip parameters like "; charset=binary"
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !v.allowed[mimeType] {
		return ErrUnsupportedType
	}
	if size > v.maxSize {
		return ErrTooLarge
	}
	return nil
}

// MaxSize returns the configured size ceiling.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}
