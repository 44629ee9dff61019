package metrics

import (
	"context"
	"time"

	"github.com/searchstack/hybridd/internal/core/domain"
	"github.com/searchstack/hybridd/internal/core/ports"
)

// instrumentedBackend records per-branch dispatch metrics around an inner
// BackendExecutor without changing its behavior.
type instrumentedBackend struct {
	next    ports.BackendExecutor
	metrics *HTTPServerMetrics
	service string
}

func InstrumentBackend(next ports.BackendExecutor, m *HTTPServerMetrics, service string) ports.BackendExecutor {
	if m == nil {
		return next
	}
	return &instrumentedBackend{
		next:    next,
		metrics: m,
		service: service,
	}
}

func (b *instrumentedBackend) Search(ctx context.Context, sub domain.SubQuery) (*domain.HitList, error) {
	start := time.Now()
	hits, err := b.next.Search(ctx, sub)
	b.metrics.RecordBranchDispatch(b.service, string(sub.Retrieval), time.Since(start), errorKindLabel(err))
	return hits, err
}

func errorKindLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsKind(err, domain.ErrTimeout):
		return "timeout"
	case domain.IsKind(err, domain.ErrCancelled):
		return "cancelled"
	case domain.IsKind(err, domain.ErrExecutionFailure):
		return "execution_failure"
	default:
		return "other"
	}
}
