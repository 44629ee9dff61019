package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/searchstack/hybridd/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc         *domain.Document
	getErr      error
	statusErr   error
	chunkErr    error
	statusCalls []statusCall
	chunkCount  int
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SetChunkCount(_ context.Context, _ string, chunkCount int) error {
	if f.chunkErr != nil {
		return f.chunkErr
	}
	f.chunkCount = chunkCount
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type embedderFake struct {
	vectors [][]float32
	err     error
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

type indexerFake struct {
	indexed bool
	err     error
}

func (f *indexerFake) IndexChunks(context.Context, *domain.Document, []string, [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = true
	return nil
}

func (f *indexerFake) RemoveDocument(context.Context, string) error { return nil }

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	indexer := &indexerFake{}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a", "b"}},
		&embedderFake{vectors: [][]float32{{1}, {2}}},
		indexer,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID error = %v", err)
	}

	if !indexer.indexed {
		t.Fatalf("chunks were not indexed")
	}
	if repo.chunkCount != 2 {
		t.Fatalf("chunk count = %d, want 2", repo.chunkCount)
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusReady {
		t.Fatalf("final status = %s, want ready", last.status)
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{err: errors.New("corrupt file")},
		&chunkerFake{chunks: []string{"a"}},
		&embedderFake{vectors: [][]float32{{1}}},
		&indexerFake{},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected extract failure")
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("final status = %s, want failed", last.status)
	}
	if last.errMsg == "" {
		t.Fatalf("failed status should carry the error message")
	}
}

func TestProcessByIDVectorMismatchFails(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a", "b"}},
		&embedderFake{vectors: [][]float32{{1}}},
		&indexerFake{},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected vectors/chunks mismatch failure")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessByIDIndexFailureMarksFailed(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: []string{"a"}},
		&embedderFake{vectors: [][]float32{{1}}},
		&indexerFake{err: errors.New("backend unavailable")},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected index failure")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("final status = %s, want failed", last.status)
	}
}
