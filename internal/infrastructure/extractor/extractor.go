// Package extractor routes stored documents to a format-specific text
// extractor by file extension.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/core/ports"
)

type Dispatcher struct {
	byExtension map[string]ports.TextExtractor
	fallback    ports.TextExtractor
}

// NewDispatcher builds a dispatcher with the given fallback for unknown
// extensions.
func NewDispatcher(fallback ports.TextExtractor) *Dispatcher {
	return &Dispatcher{
		byExtension: make(map[string]ports.TextExtractor),
		fallback:    fallback,
	}
}

// Register binds extensions like ".pdf" to an extractor. Extensions are
// matched case-insensitively.
func (d *Dispatcher) Register(ext ports.TextExtractor, extensions ...string) {
	for _, extension := range extensions {
		d.byExtension[strings.ToLower(extension)] = ext
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	extension := strings.ToLower(filepath.Ext(doc.Filename))
	if ext, ok := d.byExtension[extension]; ok {
		return ext.Extract(ctx, doc)
	}
	return d.fallback.Extract(ctx, doc)
}
