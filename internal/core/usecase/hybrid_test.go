package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/searchstack/hybridd/internal/core/domain"
)

type backendFake struct {
	mu        sync.Mutex
	dispatches []domain.SubQuery

	// byRetrieval maps retrieval method to the hits to return.
	byRetrieval map[domain.RetrievalMethod]*domain.HitList
	errByMethod map[domain.RetrievalMethod]error

	// delayByMethod makes a branch block until ctx is done.
	delayByMethod map[domain.RetrievalMethod]time.Duration
}

func (f *backendFake) Search(ctx context.Context, sub domain.SubQuery) (*domain.HitList, error) {
	f.mu.Lock()
	f.dispatches = append(f.dispatches, sub)
	f.mu.Unlock()

	if delay, ok := f.delayByMethod[sub.Retrieval]; ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.WrapError(domain.ErrTimeout, "backend search", ctx.Err())
			}
			return nil, domain.WrapError(domain.ErrCancelled, "backend search", ctx.Err())
		}
	}
	if err := f.errByMethod[sub.Retrieval]; err != nil {
		return nil, err
	}
	return f.byRetrieval[sub.Retrieval], nil
}

func (f *backendFake) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatches)
}

func disjunctionStoreFake() *featureStoreFake {
	store := lexicalStoreFake()
	store.strings["hybrid.retrievalMethod"] = "disjunction"
	store.strings["hybrid.rankingMethod"] = "rrf"
	store.strings["retrieval.tensor"] = "select * from docs where nearestNeighbor(embedding, embedding_query)"
	store.strings["ranking.tensor"] = "embedding_similarity"
	store.tensors["fields_to_search_tensor"] = domain.NewMappedTensor(map[string]float64{"embedding": 1})
	return store
}

func TestSearchPassthroughReturnsBackendHitsVerbatim(t *testing.T) {
	store := lexicalStoreFake()
	store.strings["hybrid.retrievalMethod"] = "lexical"
	store.strings["hybrid.rankingMethod"] = "lexical"

	backendHits := domain.NewHitList()
	backendHits.Add(&domain.Hit{ID: "doc-1", Relevance: 12.5})
	backendHits.Add(&domain.Hit{ID: "doc-2", Relevance: 3.25})
	backend := &backendFake{
		byRetrieval: map[domain.RetrievalMethod]*domain.HitList{domain.RetrievalLexical: backendHits},
	}

	uc := NewHybridSearchUseCase(backend, nil)
	hits, err := uc.Search(context.Background(), store)
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}

	if hits != backendHits {
		t.Fatalf("passthrough must return the backend hit list unmodified")
	}
	if hits.Get("doc-1").Relevance != 12.5 {
		t.Fatalf("passthrough must not rescore hits, got %v", hits.Get("doc-1").Relevance)
	}
	if backend.dispatchCount() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", backend.dispatchCount())
	}
}

func TestSearchDisjunctionFusesBothBranches(t *testing.T) {
	store := disjunctionStoreFake()

	tensorHits := domain.NewHitList()
	tensorHits.Add(&domain.Hit{ID: "A", Relevance: 0.9})
	tensorHits.Add(&domain.Hit{ID: "B", Relevance: 0.8})
	lexicalHits := domain.NewHitList()
	lexicalHits.Add(&domain.Hit{ID: "B", Relevance: 7.0})
	lexicalHits.Add(&domain.Hit{ID: "C", Relevance: 6.0})

	backend := &backendFake{
		byRetrieval: map[domain.RetrievalMethod]*domain.HitList{
			domain.RetrievalTensor:  tensorHits,
			domain.RetrievalLexical: lexicalHits,
		},
	}

	uc := NewHybridSearchUseCase(backend, nil)
	hits, err := uc.Search(context.Background(), store)
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}

	if backend.dispatchCount() != 2 {
		t.Fatalf("expected two dispatches, got %d", backend.dispatchCount())
	}
	if hits.Len() != 2 {
		t.Fatalf("expected max(2,2)=2 fused hits, got %d", hits.Len())
	}
	if hits.Hits()[0].ID != "B" {
		t.Fatalf("expected overlapping hit B ranked first, got %s", hits.Hits()[0].ID)
	}
}

func TestSearchDisjunctionRejectsNonRRFBeforeDispatch(t *testing.T) {
	store := disjunctionStoreFake()
	store.strings["hybrid.rankingMethod"] = "lexical"
	backend := &backendFake{}

	uc := NewHybridSearchUseCase(backend, nil)
	_, err := uc.Search(context.Background(), store)
	if err == nil {
		t.Fatalf("disjunction with lexical ranking should fail")
	}
	if !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if backend.dispatchCount() != 0 {
		t.Fatalf("validation must fail before any backend dispatch, saw %d", backend.dispatchCount())
	}
}

func TestSearchStandardMethodRejectsRRF(t *testing.T) {
	store := lexicalStoreFake()
	store.strings["hybrid.retrievalMethod"] = "lexical"
	store.strings["hybrid.rankingMethod"] = "rrf"

	uc := NewHybridSearchUseCase(&backendFake{}, nil)
	_, err := uc.Search(context.Background(), store)
	if !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestSearchUnknownRetrievalMethodFails(t *testing.T) {
	store := lexicalStoreFake()
	store.strings["hybrid.retrievalMethod"] = "semantic"
	store.strings["hybrid.rankingMethod"] = "rrf"

	uc := NewHybridSearchUseCase(&backendFake{}, nil)
	_, err := uc.Search(context.Background(), store)
	if !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestSearchDisjunctionTimeoutFailsWholeQuery(t *testing.T) {
	store := disjunctionStoreFake()
	store.ints = map[string]int{"hybrid.timeoutMs": 20}

	lexicalHits := domain.NewHitList()
	lexicalHits.Add(&domain.Hit{ID: "B"})
	backend := &backendFake{
		byRetrieval:   map[domain.RetrievalMethod]*domain.HitList{domain.RetrievalLexical: lexicalHits},
		delayByMethod: map[domain.RetrievalMethod]time.Duration{domain.RetrievalTensor: time.Second},
	}

	uc := NewHybridSearchUseCase(backend, nil)
	_, err := uc.Search(context.Background(), store)
	if err == nil {
		t.Fatalf("expected timeout failure")
	}
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSearchDisjunctionBranchFailureCancelsSibling(t *testing.T) {
	store := disjunctionStoreFake()

	backend := &backendFake{
		errByMethod: map[domain.RetrievalMethod]error{
			domain.RetrievalLexical: domain.WrapError(domain.ErrExecutionFailure, "backend search", errors.New("shard down")),
		},
		// The tensor branch blocks until the shared context is cancelled.
		delayByMethod: map[domain.RetrievalMethod]time.Duration{domain.RetrievalTensor: 5 * time.Second},
	}

	uc := NewHybridSearchUseCase(backend, nil)
	start := time.Now()
	_, err := uc.Search(context.Background(), store)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !domain.IsKind(err, domain.ErrExecutionFailure) {
		t.Fatalf("expected the triggering ErrExecutionFailure, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sibling dispatch was not cancelled promptly, took %v", elapsed)
	}
}

func TestSearchDisjunctionDispatchesConcurrently(t *testing.T) {
	store := disjunctionStoreFake()
	store.ints = map[string]int{"hybrid.timeoutMs": 2000}

	var inFlight, maxInFlight atomic.Int32
	hits := domain.NewHitList()
	hits.Add(&domain.Hit{ID: "A"})

	backend := &concurrencyProbeBackend{
		inFlight:    &inFlight,
		maxInFlight: &maxInFlight,
		hits:        hits,
	}

	uc := NewHybridSearchUseCase(backend, nil)
	if _, err := uc.Search(context.Background(), store); err != nil {
		t.Fatalf("Search error = %v", err)
	}
	if maxInFlight.Load() < 2 {
		t.Fatalf("expected both dispatches in flight at once, max was %d", maxInFlight.Load())
	}
}

type concurrencyProbeBackend struct {
	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
	hits        *domain.HitList
}

func (b *concurrencyProbeBackend) Search(ctx context.Context, sub domain.SubQuery) (*domain.HitList, error) {
	current := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		observed := b.maxInFlight.Load()
		if current <= observed || b.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}

	// Give the sibling a chance to arrive.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return nil, domain.WrapError(domain.ErrCancelled, "backend search", ctx.Err())
	}
	return b.hits, nil
}
