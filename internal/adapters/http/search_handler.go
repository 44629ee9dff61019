package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/infrastructure/featurestore"
)

type searchRequest struct {
	Query           string   `json:"query"`
	Profile         string   `json:"profile,omitempty"`
	RetrievalMethod string   `json:"retrieval_method,omitempty"`
	RankingMethod   string   `json:"ranking_method,omitempty"`
	RRFK            *int     `json:"rrf_k,omitempty"`
	Alpha           *float64 `json:"alpha,omitempty"`
	Hits            *int     `json:"hits,omitempty"`
	TimeoutMs       *int     `json:"timeout_ms,omitempty"`
	Verbose         bool     `json:"verbose,omitempty"`
}

type searchResponse struct {
	Hits  []*domain.Hit `json:"hits"`
	Count int           `json:"count"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	profile, err := rt.profiles.Resolve(req.Profile)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	retrieval := req.RetrievalMethod
	if retrieval == "" {
		retrieval = rt.cfg.HybridRetrievalMethod
	}
	ranking := req.RankingMethod
	if ranking == "" {
		ranking = rt.cfg.HybridRankingMethod
	}

	start := time.Now()
	features, err := rt.assembleFeatures(r, req, profile, retrieval, ranking)
	if err != nil {
		rt.recordSearch(retrieval, ranking, "error", 0, time.Since(start))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	hits, err := rt.searchUC.Search(r.Context(), features)
	if err != nil {
		rt.recordSearch(retrieval, ranking, "error", 0, time.Since(start))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordSearch(retrieval, ranking, "ok", hits.Len(), time.Since(start))
	writeJSON(w, http.StatusOK, searchResponse{
		Hits:  hits.Hits(),
		Count: hits.Len(),
	})
}

// assembleFeatures translates one search request plus its resolved profile
// into the flat feature store the search use case consumes.
func (rt *Router) assembleFeatures(
	r *http.Request,
	req searchRequest,
	profile config.SearchProfile,
	retrieval, ranking string,
) (*featurestore.Params, error) {
	opts := featurestore.QueryOptions{
		Query:     req.Query,
		Retrieval: retrieval,
		Ranking:   ranking,
		RRFK:      orDefaultInt(req.RRFK, rt.cfg.HybridRRFK),
		Alpha:     orDefaultFloat(req.Alpha, rt.cfg.HybridAlpha),
		Hits:      orDefaultInt(req.Hits, rt.cfg.HybridHits),
		TimeoutMs: orDefaultInt(req.TimeoutMs, rt.cfg.HybridTimeoutMs),
		Verbose:   req.Verbose,
	}

	// Lexical-only requests skip the embedder round trip entirely.
	if featurestore.NeedsEmbedding(retrieval) {
		vector, err := rt.embedder.EmbedQuery(r.Context(), req.Query)
		if err != nil {
			return nil, err
		}
		opts.Embedding = make([]float64, len(vector))
		for i, v := range vector {
			opts.Embedding[i] = float64(v)
		}
	}

	return featurestore.FromProfile(profile, opts), nil
}

func (rt *Router) recordSearch(retrieval, ranking, status string, hitCount int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearch(serviceName, retrieval, ranking, status, hitCount, duration)
}

func orDefaultInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func orDefaultFloat(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
