package featurestore

import (
	"github.com/searchstack/hybridd/internal/config"
	"github.com/searchstack/hybridd/internal/core/domain"
)

// QueryOptions are the per-request values already resolved against the
// service defaults by the calling adapter.
type QueryOptions struct {
	Query     string
	Retrieval string
	Ranking   string
	RRFK      int
	Alpha     float64
	Hits      int
	TimeoutMs int
	Verbose   bool

	// Embedding is set when the request carries a tensor branch.
	Embedding []float64
}

// FromProfile flattens one search profile plus request options into the
// feature store the search use case consumes.
func FromProfile(profile config.SearchProfile, opts QueryOptions) *Params {
	features := New()
	features.Set("hybrid.retrievalMethod", opts.Retrieval)
	features.Set("hybrid.rankingMethod", opts.Ranking)
	features.Set("hybrid.rrf_k", opts.RRFK)
	features.Set("hybrid.alpha", opts.Alpha)
	features.Set("hybrid.hits", opts.Hits)
	features.Set("hybrid.timeoutMs", opts.TimeoutMs)
	features.Set("hybrid.verbose", opts.Verbose)

	features.Set("retrieval.lexical", profile.Lexical.ExpressionFor(opts.Query))
	features.Set("retrieval.tensor", profile.Tensor.ExpressionFor(opts.Query))
	features.Set("ranking.lexical", profile.Lexical.RankProfile)
	features.Set("ranking.tensor", profile.Tensor.RankProfile)
	features.SetTensor("fields_to_search_lexical", domain.NewMappedTensor(profile.Lexical.Fields))
	features.SetTensor("fields_to_search_tensor", domain.NewMappedTensor(profile.Tensor.Fields))

	if !profile.ScoreModifiers.Empty() {
		features.Set("hybrid.lexicalScoreModifiersPresent", true)
		features.Set("hybrid.tensorScoreModifiersPresent", true)
		features.Set("ranking.lexicalScoreModifiers", profile.ScoreModifiers.LexicalRankProfile)
		features.Set("ranking.tensorScoreModifiers", profile.ScoreModifiers.TensorRankProfile)
		for _, branch := range []string{"lexical", "tensor"} {
			features.SetTensor("add_weights_"+branch, domain.NewMappedTensor(profile.ScoreModifiers.Add))
			features.SetTensor("mult_weights_"+branch, domain.NewMappedTensor(profile.ScoreModifiers.Mult))
		}
	}

	if opts.Embedding != nil {
		features.SetTensor("embedding_query", domain.NewDenseTensor(opts.Embedding))
	}

	return features
}

// NeedsEmbedding reports whether the retrieval method involves the tensor
// branch and therefore needs a query embedding.
func NeedsEmbedding(retrieval string) bool {
	return retrieval == string(domain.RetrievalTensor) || retrieval == string(domain.RetrievalDisjunction)
}
