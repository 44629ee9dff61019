package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/infrastructure/resilience"
)

// Client talks to a Vespa-style engine over its query and document APIs.
// Query traffic is never retried here; the orchestrator owns the deadline
// for an in-flight search. Feed traffic goes through the resilience
// executor because indexing is asynchronous and safe to repeat.
type Client struct {
	queryURL    string
	documentURL string
	namespace   string
	docType     string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(queryURL, documentURL, namespace, docType string, executor *resilience.Executor) *Client {
	return &Client{
		queryURL:    strings.TrimRight(queryURL, "/"),
		documentURL: strings.TrimRight(documentURL, "/"),
		namespace:   namespace,
		docType:     docType,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		executor:    executor,
	}
}

type searchRequest struct {
	YQL     string         `json:"yql"`
	Hits    int            `json:"hits,omitempty"`
	Ranking string         `json:"ranking,omitempty"`
	Timeout string         `json:"timeout,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
}

type searchResponse struct {
	Root struct {
		Errors []struct {
			Code    int    `json:"code"`
			Summary string `json:"summary"`
			Message string `json:"message"`
		} `json:"errors"`
		Children []struct {
			ID        string         `json:"id"`
			Relevance float64        `json:"relevance"`
			Fields    map[string]any `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

func (c *Client) Search(ctx context.Context, sub domain.SubQuery) (*domain.HitList, error) {
	payload := searchRequest{
		YQL:     sub.Expression,
		Hits:    sub.Hits,
		Ranking: sub.RankProfile,
		Input:   queryInput(sub),
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			payload.Timeout = fmt.Sprintf("%dms", remaining.Milliseconds())
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExecutionFailure, "search",
			fmt.Errorf("marshal search body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL+"/search/", bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExecutionFailure, "search",
			fmt.Errorf("create search request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifySearchError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrExecutionFailure, "search",
			formatStatusError("search", resp))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.WrapError(domain.ErrExecutionFailure, "search",
			fmt.Errorf("decode search response: %w", err))
	}
	if len(decoded.Root.Errors) > 0 {
		first := decoded.Root.Errors[0]
		return nil, domain.WrapError(domain.ErrExecutionFailure, "search",
			fmt.Errorf("engine error %d (%s): %s", first.Code, first.Summary, first.Message))
	}

	out := domain.NewHitList()
	for _, child := range decoded.Root.Children {
		out.Add(&domain.Hit{
			ID:        hitID(child.ID, child.Fields),
			Relevance: child.Relevance,
			Auxiliary: isAuxiliaryID(child.ID),
			Fields:    child.Fields,
		})
	}
	return out, nil
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	for i := range chunks {
		fields := map[string]any{
			"doc_id":      doc.ID,
			"filename":    doc.Filename,
			"chunk_index": i,
			"text":        chunks[i],
			"embedding":   map[string]any{"values": vectors[i]},
		}
		docID := fmt.Sprintf("%s-%d", doc.ID, i)
		if err := c.feedDocument(ctx, docID, fields); err != nil {
			return fmt.Errorf("feed chunk %d: %w", i, err)
		}
	}
	return nil
}

func (c *Client) RemoveDocument(ctx context.Context, documentID string) error {
	selection := fmt.Sprintf("%s.doc_id=='%s'", c.docType, documentID)
	target := fmt.Sprintf("%s/document/v1/%s/%s/docid?selection=%s&cluster=content",
		c.documentURL, c.namespace, c.docType, url.QueryEscape(selection))

	operation := "document remove"
	return c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
		if err != nil {
			return fmt.Errorf("create remove request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("vespa remove request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return formatStatusError(operation, resp)
		}
		return nil
	}, classifyVespaError)
}

func (c *Client) feedDocument(ctx context.Context, docID string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("marshal feed body: %w", err)
	}

	target := fmt.Sprintf("%s/document/v1/%s/%s/docid/%s",
		c.documentURL, c.namespace, c.docType, url.PathEscape(docID))

	operation := "document feed"
	return c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create feed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("vespa feed request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return formatStatusError(operation, resp)
		}
		return nil
	}, classifyVespaError)
}

func queryInput(sub domain.SubQuery) map[string]any {
	if len(sub.ScalarFeatures) == 0 && len(sub.TensorFeatures) == 0 {
		return nil
	}
	input := make(map[string]any, len(sub.ScalarFeatures)+len(sub.TensorFeatures))
	for name, v := range sub.ScalarFeatures {
		input["query("+name+")"] = v
	}
	for name, t := range sub.TensorFeatures {
		input["query("+name+")"] = tensorValue(t)
	}
	return input
}

func tensorValue(t domain.Tensor) any {
	if t.IsDense() {
		return t.Values
	}
	cells := make(map[string]float64, len(t.Cells))
	for _, cell := range t.Cells {
		cells[cell.Label] = cell.Value
	}
	return cells
}

func classifySearchError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.WrapError(domain.ErrTimeout, "search", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return domain.WrapError(domain.ErrCancelled, "search", err)
	default:
		return domain.WrapError(domain.ErrExecutionFailure, "search",
			fmt.Errorf("vespa search request: %w", err))
	}
}

// hitID prefers the doc_id field over the engine-internal document path,
// so hits for the same chunk join across retrieval branches.
func hitID(id string, fields map[string]any) string {
	if fields != nil {
		if v, ok := fields["doc_id"].(string); ok && v != "" {
			if idx, ok := fields["chunk_index"].(float64); ok {
				return fmt.Sprintf("%s-%d", v, int(idx))
			}
			return v
		}
	}
	return id
}

func isAuxiliaryID(id string) bool {
	return strings.HasPrefix(id, "group:") || strings.HasPrefix(id, "meta:")
}

func formatStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
