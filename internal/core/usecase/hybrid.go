package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/core/ports"
)

const (
	defaultRRFK    = 60
	defaultAlpha   = 0.5
	defaultTimeout = time.Second
)

// HybridSearchUseCase runs one hybrid retrieval pass per incoming query:
// it reads the method selectors off the query's feature store, derives one
// or two sub-queries, dispatches them to the retrieval backend and either
// passes a single branch's hits through unmodified or fuses two branches
// with weighted reciprocal rank fusion. Both branches must succeed for
// fusion; there is no partial result.
type HybridSearchUseCase struct {
	backend ports.BackendExecutor
	logger  *slog.Logger
}

func NewHybridSearchUseCase(backend ports.BackendExecutor, logger *slog.Logger) *HybridSearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearchUseCase{
		backend: backend,
		logger:  logger,
	}
}

func (uc *HybridSearchUseCase) Search(ctx context.Context, features ports.FeatureStore) (*domain.HitList, error) {
	retrieval, err := domain.ParseRetrievalMethod(features.GetString("hybrid.retrievalMethod", ""))
	if err != nil {
		return nil, err
	}
	ranking, err := domain.ParseRankingMethod(features.GetString("hybrid.rankingMethod", ""))
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateMethodPair(retrieval, ranking); err != nil {
		return nil, err
	}

	params := domain.FusionParams{
		K:     features.GetInt("hybrid.rrf_k", defaultRRFK),
		Alpha: features.GetFloat("hybrid.alpha", defaultAlpha),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	timeout := time.Duration(features.GetInt("hybrid.timeoutMs", int(defaultTimeout.Milliseconds()))) * time.Millisecond
	level := traceLevel(features.GetBool("hybrid.verbose", false))

	uc.logger.Log(ctx, level, "hybrid_search_start",
		"retrieval_method", retrieval,
		"ranking_method", ranking,
		"rrf_k", params.K,
		"alpha", params.Alpha,
		"timeout_ms", timeout.Milliseconds(),
	)

	builder := NewSubQueryBuilder(features)

	if retrieval == domain.RetrievalDisjunction {
		return uc.searchDisjunction(ctx, builder, params, timeout, level)
	}
	return uc.searchSingle(ctx, builder, retrieval, ranking, timeout, level)
}

// searchSingle dispatches one branch and returns the backend's hits
// unmodified.
func (uc *HybridSearchUseCase) searchSingle(
	ctx context.Context,
	builder *SubQueryBuilder,
	retrieval domain.RetrievalMethod,
	ranking domain.RankingMethod,
	timeout time.Duration,
	level slog.Level,
) (*domain.HitList, error) {
	sub, err := builder.Build(retrieval, ranking)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hits, err := uc.backend.Search(searchCtx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s branch: %w", retrieval, err)
	}

	uc.logger.Log(ctx, level, "hybrid_search_passthrough",
		"retrieval_method", retrieval,
		"hits", hits.Len(),
	)
	return hits, nil
}

// searchDisjunction builds both branches up front, dispatches them
// concurrently under one shared deadline and fuses the completed lists.
// The first failure cancels the sibling dispatch.
func (uc *HybridSearchUseCase) searchDisjunction(
	ctx context.Context,
	builder *SubQueryBuilder,
	params domain.FusionParams,
	timeout time.Duration,
	level slog.Level,
) (*domain.HitList, error) {
	lexicalSub, err := builder.Build(domain.RetrievalLexical, domain.RankingLexical)
	if err != nil {
		return nil, err
	}
	tensorSub, err := builder.Build(domain.RetrievalTensor, domain.RankingTensor)
	if err != nil {
		return nil, err
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan dispatchResult, 2)
	uc.dispatch(dispatchCtx, "lexical", lexicalSub, results)
	uc.dispatch(dispatchCtx, "tensor", tensorSub, results)

	branchHits := make(map[string]*domain.HitList, 2)
	var dispatchErr error
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			wrapped := fmt.Errorf("%s branch: %w", res.branch, res.err)
			switch {
			case dispatchErr == nil:
				dispatchErr = wrapped
				cancel()
			case domain.IsKind(dispatchErr, domain.ErrCancelled) && !domain.IsKind(res.err, domain.ErrCancelled):
				// Prefer the triggering cause over the sibling's
				// cancellation.
				dispatchErr = wrapped
			}
			continue
		}
		branchHits[res.branch] = res.hits
	}
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	fused, err := fuseReciprocalRank(branchHits["tensor"], branchHits["lexical"], params)
	if err != nil {
		return nil, err
	}

	uc.logger.Log(ctx, level, "hybrid_search_fused",
		"tensor_hits", branchHits["tensor"].Len(),
		"lexical_hits", branchHits["lexical"].Len(),
		"fused_hits", fused.Len(),
	)
	return fused, nil
}

type dispatchResult struct {
	branch string
	hits   *domain.HitList
	err    error
}

// dispatch initiates a backend search without blocking the caller; the
// outcome is delivered on results exactly once.
func (uc *HybridSearchUseCase) dispatch(ctx context.Context, branch string, sub domain.SubQuery, results chan<- dispatchResult) {
	go func() {
		hits, err := uc.backend.Search(ctx, sub)
		results <- dispatchResult{branch: branch, hits: hits, err: err}
	}()
}

func traceLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
