package domain

import "fmt"

// FusionParams configure weighted reciprocal rank fusion. K dampens the
// reciprocal term; Alpha is the tensor branch weight, 1-Alpha the lexical
// branch weight.
type FusionParams struct {
	K     int
	Alpha float64
}

func (p FusionParams) Validate() error {
	if p.K <= 0 {
		return WrapError(ErrInvalidConfiguration, "validate fusion params",
			fmt.Errorf("rrf k must be positive, got %d", p.K))
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return WrapError(ErrInvalidConfiguration, "validate fusion params",
			fmt.Errorf("alpha must be in [0,1], got %g", p.Alpha))
	}
	return nil
}

// SubQuery is a derived, self-contained query for one retrieval branch.
// It shares no mutable state with the original request once built.
type SubQuery struct {
	Retrieval   RetrievalMethod
	Ranking     RankingMethod
	Expression  string
	RankProfile string
	Hits        int

	ScalarFeatures map[string]float64
	TensorFeatures map[string]Tensor
}

func NewSubQuery(retrieval RetrievalMethod, ranking RankingMethod) SubQuery {
	return SubQuery{
		Retrieval:      retrieval,
		Ranking:        ranking,
		ScalarFeatures: make(map[string]float64),
		TensorFeatures: make(map[string]Tensor),
	}
}
