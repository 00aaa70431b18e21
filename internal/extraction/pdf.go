package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// extractPages reads the text layer of a paginated document page by page
// and concatenates the pages with a newline, preserving page order. A page
// that fails to render is skipped; the document as a whole only fails when
// it cannot be opened at all.
func extractPages(ctx context.Context, path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("opening document: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		txt, err := doc.Text(i)
		if err != nil {
			// Skip the bad page; remaining pages may still carry the fields
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}
