package usecase

import (
	"math"
	"testing"

	"github.com/searchstack/hybridd/internal/core/domain"
)

func hitList(ids ...string) *domain.HitList {
	list := domain.NewHitList()
	for i, id := range ids {
		list.Add(&domain.Hit{ID: id, Relevance: 1.0 - float64(i)*0.1})
	}
	return list
}

func fusedIDs(t *testing.T, list *domain.HitList) []string {
	t.Helper()
	ids := make([]string, 0, list.Len())
	for _, h := range list.Hits() {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestFuseOverlappingBranches(t *testing.T) {
	// Tensor [A@1, B@2], lexical [B@1, C@2], k=60, alpha=0.5.
	tensor := hitList("A", "B")
	lexical := hitList("B", "C")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 0.5})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}

	if fused.Len() != 2 {
		t.Fatalf("expected trim to max(2,2)=2 hits, got %d", fused.Len())
	}
	ids := fusedIDs(t, fused)
	if ids[0] != "B" || ids[1] != "A" {
		t.Fatalf("expected order [B A], got %v", ids)
	}

	wantB := 0.5/62.0 + 0.5/61.0
	if got := fused.Get("B").Relevance; math.Abs(got-wantB) > 1e-12 {
		t.Fatalf("B score = %.9f, want %.9f", got, wantB)
	}
	wantA := 0.5 / 61.0
	if got := fused.Get("A").Relevance; math.Abs(got-wantA) > 1e-12 {
		t.Fatalf("A score = %.9f, want %.9f", got, wantA)
	}
}

func TestFuseAlphaOneIsPureTensorRRF(t *testing.T) {
	tensor := hitList("A", "B", "C")
	lexical := hitList("X", "Y")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 1})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}

	ids := fusedIDs(t, fused)
	want := []string{"A", "B", "C"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d hits, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected pure tensor order %v, got %v", want, ids)
		}
	}
	for rank, h := range fused.Hits() {
		wantScore := 1.0 / float64(rank+1+60)
		if math.Abs(h.Relevance-wantScore) > 1e-12 {
			t.Fatalf("hit %s score = %.9f, want 1/(rank+k) = %.9f", h.ID, h.Relevance, wantScore)
		}
	}
}

func TestFuseAlphaZeroIsPureLexicalRRF(t *testing.T) {
	tensor := hitList("A", "B")
	lexical := hitList("X", "Y", "Z")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 0})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}

	ids := fusedIDs(t, fused)
	want := []string{"X", "Y", "Z"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d hits, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected pure lexical order %v, got %v", want, ids)
		}
	}
	// No phantom zero-weighted tensor entries.
	if fused.Get("A") != nil || fused.Get("B") != nil {
		t.Fatalf("tensor hits must not leak into alpha=0 fusion output")
	}
}

func TestFuseNeverExceedsLargerBranch(t *testing.T) {
	tensor := hitList("A", "B", "C", "D")
	lexical := hitList("E", "F", "G")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 10, Alpha: 0.5})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}
	if fused.Len() != 4 {
		t.Fatalf("expected max(4,3)=4 hits, got %d", fused.Len())
	}
}

func TestFuseTieBreakIsInsertionOrder(t *testing.T) {
	// Disjoint branches, symmetric alpha: rank-equal hits tie exactly and
	// tensor hits keep precedence because they were appended first.
	tensor := hitList("T1", "T2")
	lexical := hitList("L1", "L2")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 0.5})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}

	ids := fusedIDs(t, fused)
	want := []string{"T1", "L1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected insertion-order tie-break %v, got %v", want, ids)
		}
	}
}

func TestFuseSkipsAuxiliaryHits(t *testing.T) {
	tensor := domain.NewHitList()
	tensor.Add(&domain.Hit{ID: "meta:group", Auxiliary: true})
	tensor.Add(&domain.Hit{ID: "A", Relevance: 0.9})
	lexical := hitList("A")

	fused, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 0.5})
	if err != nil {
		t.Fatalf("fuse error = %v", err)
	}
	if fused.Get("meta:group") != nil {
		t.Fatalf("auxiliary hit must not be scored or emitted")
	}
	// A is rank 1 in both branches once the auxiliary entry is skipped.
	wantA := 0.5/61.0 + 0.5/61.0
	if got := fused.Get("A").Relevance; math.Abs(got-wantA) > 1e-12 {
		t.Fatalf("A score = %.9f, want %.9f", got, wantA)
	}
}

func TestFuseRejectsInvalidParams(t *testing.T) {
	tensor := hitList("A")
	lexical := hitList("B")

	if _, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 0, Alpha: 0.5}); err == nil {
		t.Fatalf("k=0 should fail")
	}
	_, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 2})
	if err == nil {
		t.Fatalf("alpha=2 should fail")
	}
	if !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestFuseLeavesInputMembershipUntouched(t *testing.T) {
	tensor := hitList("A", "B")
	lexical := hitList("B", "C")

	if _, err := fuseReciprocalRank(tensor, lexical, domain.FusionParams{K: 60, Alpha: 0.5}); err != nil {
		t.Fatalf("fuse error = %v", err)
	}
	if tensor.Len() != 2 || lexical.Len() != 2 {
		t.Fatalf("input list membership changed: tensor=%d lexical=%d", tensor.Len(), lexical.Len())
	}
}
