package usecase

import (
	"fmt"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/core/ports"
)

// Feature names consumed from the incoming query's feature store. Branch
// variants carry a _<method> suffix; score-modifier weights are re-injected
// into the sub-query under the unsuffixed base names the rank profiles
// expect.
const (
	featureFieldsToSearch = "fields_to_search"
	featureAddWeights     = "add_weights"
	featureMultWeights    = "mult_weights"
	featureQueryEmbedding = "embedding_query"
)

const defaultHitCount = 10

// SubQueryBuilder derives one retrieval branch's sub-query from the feature
// store of an incoming query. Derivation is pure: building twice from the
// same store yields structurally identical sub-queries.
type SubQueryBuilder struct {
	features ports.FeatureStore
}

func NewSubQueryBuilder(features ports.FeatureStore) *SubQueryBuilder {
	return &SubQueryBuilder{features: features}
}

func (b *SubQueryBuilder) Build(retrieval domain.RetrievalMethod, ranking domain.RankingMethod) (domain.SubQuery, error) {
	sub := domain.NewSubQuery(retrieval, ranking)

	// An absent retrieval expression is forwarded as-is; the backend treats
	// an empty expression as "match nothing new", not as an error here.
	sub.Expression = b.features.GetString("retrieval."+string(retrieval), "")
	sub.Hits = b.features.GetInt("hybrid.hits", defaultHitCount)

	// A sub-query cannot be built without knowing which fields to search.
	fields, err := b.features.GetTensor(featureFieldsToSearch + "_" + string(retrieval))
	if err != nil {
		return domain.SubQuery{}, fmt.Errorf("build %s sub-query: %w", retrieval, err)
	}
	for _, cell := range fields.Cells {
		sub.ScalarFeatures[cell.Label] = cell.Value
	}

	if b.features.GetBool("hybrid."+string(ranking)+"ScoreModifiersPresent", false) {
		sub.RankProfile = b.features.GetString("ranking."+string(ranking)+"ScoreModifiers", "")

		addWeights, err := b.features.GetTensor(featureAddWeights + "_" + string(ranking))
		if err != nil {
			return domain.SubQuery{}, fmt.Errorf("build %s sub-query: %w", retrieval, err)
		}
		multWeights, err := b.features.GetTensor(featureMultWeights + "_" + string(ranking))
		if err != nil {
			return domain.SubQuery{}, fmt.Errorf("build %s sub-query: %w", retrieval, err)
		}
		sub.TensorFeatures[featureAddWeights] = addWeights.Clone()
		sub.TensorFeatures[featureMultWeights] = multWeights.Clone()
	} else {
		sub.RankProfile = b.features.GetString("ranking."+string(ranking), "")
	}

	// The query embedding rides along into tensor retrieval when the caller
	// supplied one; lexical retrieval never needs it.
	if retrieval == domain.RetrievalTensor {
		if embedding, err := b.features.GetTensor(featureQueryEmbedding); err == nil {
			sub.TensorFeatures[featureQueryEmbedding] = embedding.Clone()
		}
	}

	return sub, nil
}
