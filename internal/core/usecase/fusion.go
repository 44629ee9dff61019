package usecase

import (
	"github.com/searchstack/hybridd/internal/core/domain"
)

// fuseReciprocalRank merges a tensor and a lexical hit list into one list
// using alpha-weighted reciprocal rank fusion. Hits present in both branches
// accumulate both weighted reciprocal ranks; a branch is skipped entirely at
// the alpha extremes so alpha=0 yields pure lexical RRF and alpha=1 pure
// tensor RRF. The output is sorted by fused score descending (insertion order
// on ties) and trimmed to the larger branch size.
//
// Input list membership is never changed; the relevance of hits placed into
// the output is overwritten in place.
func fuseReciprocalRank(tensorHits, lexicalHits *domain.HitList, params domain.FusionParams) (*domain.HitList, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	k := float64(params.K)
	alpha := params.Alpha

	scores := make(map[string]float64, tensorHits.Len()+lexicalHits.Len())
	out := domain.NewHitList()

	if alpha > 0 {
		rank := 1
		for _, hit := range tensorHits.Hits() {
			if hit.Auxiliary {
				continue
			}
			score := alpha / (float64(rank) + k)
			scores[hit.ID] = score
			hit.Relevance = score
			out.Add(hit)
			rank++
		}
	}

	if alpha < 1 {
		rank := 1
		for _, hit := range lexicalHits.Hits() {
			if hit.Auxiliary {
				continue
			}
			score := (1 - alpha) / (float64(rank) + k)
			rank++

			if existing, seen := scores[hit.ID]; seen {
				// Same document surfaced by both branches: accumulate
				// onto the already-appended hit, never append twice.
				total := existing + score
				scores[hit.ID] = total
				if fused := out.Get(hit.ID); fused != nil {
					fused.Relevance = total
				}
				continue
			}

			scores[hit.ID] = score
			hit.Relevance = score
			out.Add(hit)
		}
	}

	out.Sort()

	limit := tensorHits.Len()
	if lexicalHits.Len() > limit {
		limit = lexicalHits.Len()
	}
	out.Trim(limit)

	return out, nil
}
