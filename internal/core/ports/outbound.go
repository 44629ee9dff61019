package ports

import (
	"context"
	"io"

	"github.com/searchstack/hybridd/internal/core/domain"
)

// FeatureStore is read-only typed access to query-scoped parameters and
// named tensor features. Typed getters fall back when a key is absent or
// not parsable into the requested type.
type FeatureStore interface {
	GetString(key, fallback string) string
	GetInt(key string, fallback int) int
	GetFloat(key string, fallback float64) float64
	GetBool(key string, fallback bool) bool

	// GetTensor fails with domain.ErrFeatureNotFound when the named
	// tensor is absent. There is no silent fallback.
	GetTensor(key string) (domain.Tensor, error)
}

// BackendExecutor runs one sub-query against the retrieval backend and
// blocks until completion or ctx expiry. Implementations map a lapsed
// deadline to domain.ErrTimeout, caller abandonment to domain.ErrCancelled
// and backend faults to domain.ErrExecutionFailure.
type BackendExecutor interface {
	Search(ctx context.Context, sub domain.SubQuery) (*domain.HitList, error)
}

// DocumentIndexer feeds processed chunks into the retrieval backend.
type DocumentIndexer interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	RemoveDocument(ctx context.Context, documentID string) error
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes indexing events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
