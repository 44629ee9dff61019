package ports

import (
	"context"
	"io"

	"github.com/searchstack/hybridd/internal/core/domain"
)

// HybridSearcher is the inbound contract for one hybrid retrieval pass.
// The feature store carries the method selectors, fusion parameters and
// per-branch query features for exactly one incoming query.
type HybridSearcher interface {
	Search(ctx context.Context, features FeatureStore) (*domain.HitList, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
