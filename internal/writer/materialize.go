package writer

import (
	"fmt"

	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

// Materialize converts a chunk of raw block records into a table with one
// column per requested field. Blocks yield one row per record; Transactions
// and Logs yield one row per nested entry.
func Materialize(dataset common.Dataset, fields []string, chunk common.Chunk) (*table.Table, error) {
	fs, err := schema.NewFieldSet(dataset, fields)
	if err != nil {
		return nil, err
	}

	for i, raw := range chunk {
		record, err := common.DecodeBlockRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if !dataset.Nested() {
			if err := fs.AppendRow(record.Header, nil); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			continue
		}
		for j, item := range record.Items(dataset) {
			if err := fs.AppendRow(record.Header, item); err != nil {
				return nil, fmt.Errorf("record %d %s %d: %w", i, dataset.ItemsKey(), j, err)
			}
		}
	}

	return table.FromFieldSet(fs)
}
