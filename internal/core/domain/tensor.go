package domain

import "sort"

// TensorCell is one labeled cell of a mapped tensor.
type TensorCell struct {
	Label string
	Value float64
}

// Tensor is a named query feature. Mapped tensors carry labeled cells
// (field weights, score-modifier weights); dense tensors carry a plain
// vector (query embeddings). Exactly one form is populated.
type Tensor struct {
	Cells  []TensorCell
	Values []float64
}

// NewMappedTensor builds a mapped tensor with cells in label order, so
// derivations from the same weights are structurally identical.
func NewMappedTensor(weights map[string]float64) Tensor {
	labels := make([]string, 0, len(weights))
	for label := range weights {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cells := make([]TensorCell, 0, len(labels))
	for _, label := range labels {
		cells = append(cells, TensorCell{Label: label, Value: weights[label]})
	}
	return Tensor{Cells: cells}
}

func NewDenseTensor(values []float64) Tensor {
	return Tensor{Values: values}
}

func (t Tensor) IsDense() bool {
	return t.Values != nil
}

func (t Tensor) IsEmpty() bool {
	return len(t.Cells) == 0 && len(t.Values) == 0
}

// Clone returns an independent copy so a derived sub-query never aliases
// the feature store's backing storage.
func (t Tensor) Clone() Tensor {
	out := Tensor{}
	if t.Cells != nil {
		out.Cells = make([]TensorCell, len(t.Cells))
		copy(out.Cells, t.Cells)
	}
	if t.Values != nil {
		out.Values = make([]float64, len(t.Values))
		copy(out.Values, t.Values)
	}
	return out
}
