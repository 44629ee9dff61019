package featurestore

import (
	"fmt"
	"strconv"

	"github.com/searchstack/hybridd/internal/core/domain"
)

// Params is the map-backed feature store for one incoming query. It is
// assembled once by the caller and treated as read-only while the query
// is being processed.
type Params struct {
	values  map[string]any
	tensors map[string]domain.Tensor
}

func New() *Params {
	return &Params{
		values:  make(map[string]any),
		tensors: make(map[string]domain.Tensor),
	}
}

func (p *Params) Set(key string, value any) {
	p.values[key] = value
}

func (p *Params) SetTensor(key string, tensor domain.Tensor) {
	p.tensors[key] = tensor
}

func (p *Params) GetString(key, fallback string) string {
	switch v := p.values[key].(type) {
	case string:
		return v
	default:
		return fallback
	}
}

func (p *Params) GetInt(key string, fallback int) int {
	switch v := p.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		// JSON numbers decode as float64; accept exact integers only.
		if v == float64(int(v)) {
			return int(v)
		}
		return fallback
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return fallback
	default:
		return fallback
	}
}

func (p *Params) GetFloat(key string, fallback float64) float64 {
	switch v := p.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return fallback
	default:
		return fallback
	}
}

func (p *Params) GetBool(key string, fallback bool) bool {
	switch v := p.values[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return fallback
	default:
		return fallback
	}
}

func (p *Params) GetTensor(key string) (domain.Tensor, error) {
	tensor, ok := p.tensors[key]
	if !ok {
		return domain.Tensor{}, domain.WrapError(domain.ErrFeatureNotFound, "get tensor feature",
			fmt.Errorf("tensor feature %q not set on query", key))
	}
	return tensor, nil
}
