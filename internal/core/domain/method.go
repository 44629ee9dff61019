package domain

import "fmt"

type RetrievalMethod string

const (
	RetrievalLexical     RetrievalMethod = "lexical"
	RetrievalTensor      RetrievalMethod = "tensor"
	RetrievalDisjunction RetrievalMethod = "disjunction"
)

func ParseRetrievalMethod(s string) (RetrievalMethod, error) {
	switch RetrievalMethod(s) {
	case RetrievalLexical, RetrievalTensor, RetrievalDisjunction:
		return RetrievalMethod(s), nil
	default:
		return "", WrapError(ErrInvalidConfiguration, "parse retrieval method",
			fmt.Errorf("unknown retrieval method %q, want lexical, tensor or disjunction", s))
	}
}

type RankingMethod string

const (
	RankingLexical RankingMethod = "lexical"
	RankingTensor  RankingMethod = "tensor"
	RankingRRF     RankingMethod = "rrf"
)

func ParseRankingMethod(s string) (RankingMethod, error) {
	switch RankingMethod(s) {
	case RankingLexical, RankingTensor, RankingRRF:
		return RankingMethod(s), nil
	default:
		return "", WrapError(ErrInvalidConfiguration, "parse ranking method",
			fmt.Errorf("unknown ranking method %q, want lexical, tensor or rrf", s))
	}
}

// ValidateMethodPair enforces the retrieval/ranking compatibility rules:
// disjunction fuses two branches and requires rrf ranking, while single-branch
// retrieval must rank with a method-native score.
func ValidateMethodPair(retrieval RetrievalMethod, ranking RankingMethod) error {
	switch retrieval {
	case RetrievalDisjunction:
		if ranking != RankingRRF {
			return WrapError(ErrInvalidConfiguration, "validate method pair",
				fmt.Errorf("retrieval method disjunction requires rrf ranking, got %q", ranking))
		}
	case RetrievalLexical, RetrievalTensor:
		if ranking != RankingLexical && ranking != RankingTensor {
			return WrapError(ErrInvalidConfiguration, "validate method pair",
				fmt.Errorf("retrieval method %q allows only lexical or tensor ranking, got %q", retrieval, ranking))
		}
	default:
		return WrapError(ErrInvalidConfiguration, "validate method pair",
			fmt.Errorf("unknown retrieval method %q", retrieval))
	}
	return nil
}
