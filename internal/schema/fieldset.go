package schema

import (
	"encoding/json"
	"fmt"

	"github.com/thirdweb-dev/archive-exporter/internal/common"
)

// FieldSet holds one accumulator per requested field, in request order.
type FieldSet struct {
	dataset      common.Dataset
	accumulators []Accumulator
}

func NewFieldSet(dataset common.Dataset, fields []string) (*FieldSet, error) {
	fs := &FieldSet{dataset: dataset, accumulators: make([]Accumulator, 0, len(fields))}
	for _, name := range fields {
		acc, err := EmptyAccumulator(dataset, name)
		if err != nil {
			return nil, fmt.Errorf("failed to build field set: %w", err)
		}
		fs.accumulators = append(fs.accumulators, acc)
	}
	return fs, nil
}

func (fs *FieldSet) Accumulators() []Accumulator { return fs.accumulators }

// Rows is the number of rows appended so far.
func (fs *FieldSet) Rows() int {
	if len(fs.accumulators) == 0 {
		return 0
	}
	return fs.accumulators[0].Len()
}

// AppendRow adds one row. For Blocks item is nil and every field is read
// off the header. For nested datasets header-sourced fields read the
// enclosing block header and the rest read the item.
func (fs *FieldSet) AppendRow(header, item map[string]json.RawMessage) error {
	for _, acc := range fs.accumulators {
		f := acc.Field()
		source := item
		if !fs.dataset.Nested() || f.FromHeader {
			source = header
		}
		if err := acc.Append(source[f.Key()]); err != nil {
			return err
		}
	}
	return nil
}
