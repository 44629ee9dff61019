package vespa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1.0,
		BreakerEnabled:      false,
	})
}

func testSubQuery() domain.SubQuery {
	sub := domain.NewSubQuery(domain.RetrievalLexical, domain.RankingLexical)
	sub.Expression = "select * from chunks where userQuery()"
	sub.RankProfile = "bm25"
	sub.Hits = 10
	return sub
}

func TestSearchSendsInputFeaturesAndParsesHits(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search/" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"root":{"children":[
			{"id":"id:ns:chunks::a-0","relevance":0.9,"fields":{"doc_id":"a","chunk_index":0,"text":"first"}},
			{"id":"group:root","relevance":0,"fields":{}},
			{"id":"id:ns:chunks::b-1","relevance":0.4,"fields":{"doc_id":"b","chunk_index":1,"text":"second"}}
		]}}`))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	sub := testSubQuery()
	sub.ScalarFeatures["bm25_weight"] = 1.5
	sub.TensorFeatures["fields_to_search_lexical"] = domain.NewMappedTensor(map[string]float64{"title": 1, "body": 1})

	hits, err := client.Search(context.Background(), sub)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits.Len() != 3 {
		t.Fatalf("expected 3 hits, got %d", hits.Len())
	}
	if got := hits.Hits()[0].ID; got != "a-0" {
		t.Fatalf("expected joined hit id a-0, got %q", got)
	}
	if !hits.Hits()[1].Auxiliary {
		t.Fatalf("expected group hit to be auxiliary")
	}

	if captured["yql"] != sub.Expression {
		t.Fatalf("expected yql %q, got %v", sub.Expression, captured["yql"])
	}
	input, ok := captured["input"].(map[string]any)
	if !ok {
		t.Fatalf("expected input block, got %v", captured["input"])
	}
	if input["query(bm25_weight)"] != 1.5 {
		t.Fatalf("expected scalar feature forwarded, got %v", input["query(bm25_weight)"])
	}
	weights, ok := input["query(fields_to_search_lexical)"].(map[string]any)
	if !ok || weights["title"] != 1.0 || weights["body"] != 1.0 {
		t.Fatalf("expected mapped tensor cells, got %v", input["query(fields_to_search_lexical)"])
	}
}

func TestSearchMapsEngineErrorsToExecutionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"root":{"errors":[{"code":8,"summary":"Error in search reply","message":"rank profile missing"}]}}`))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	_, err := client.Search(context.Background(), testSubQuery())
	if !domain.IsKind(err, domain.ErrExecutionFailure) {
		t.Fatalf("expected ErrExecutionFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "rank profile missing") {
		t.Fatalf("expected engine message in error, got %v", err)
	}
}

func TestSearchMapsDeadlineToTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Search(ctx, testSubQuery())
	if !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSearchMapsCancellationToCancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	_, err := client.Search(ctx, testSubQuery())
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestIndexChunksFeedsOneDocumentPerChunk(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.IndexChunks(context.Background(), doc, []string{"a", "b"}, [][]float32{{0.1}, {0.2}})
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 feed requests, got %d", len(paths))
	}
	if paths[0] != "/document/v1/ns/chunks/docid/doc-1-0" {
		t.Fatalf("unexpected feed path %q", paths[0])
	}
}

func TestIndexChunksRetriesRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.IndexChunks(context.Background(), doc, []string{"a"}, [][]float32{{0.1}})
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected retry after 503, got %d calls", got)
	}
}

func TestRemoveDocumentDeletesBySelection(t *testing.T) {
	var selection string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.NotFound(w, r)
			return
		}
		selection = r.URL.Query().Get("selection")
		_, _ = w.Write([]byte(`{"documentCount":3}`))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, "ns", "chunks", testExecutor())
	if err := client.RemoveDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
	if selection != "chunks.doc_id=='doc-1'" {
		t.Fatalf("unexpected selection %q", selection)
	}
}
