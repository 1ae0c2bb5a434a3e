package query

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thirdweb-dev/archive-exporter/internal/common"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
)

var (
	ErrNotImplemented     = errors.New("not implemented")
	ErrUnsupportedDataset = errors.New("unsupported dataset")
)

// Selector activates record keys in a fields section.
type Selector map[string]bool

type Fields struct {
	Block       Selector `json:"block"`
	Transaction Selector `json:"transaction,omitempty"`
	Log         Selector `json:"log,omitempty"`
}

// Query is the request body posted to an archive worker.
type Query struct {
	Transactions     []common.FilterOptions `json:"transactions,omitempty"`
	Logs             []common.FilterOptions `json:"logs,omitempty"`
	Fields           Fields                 `json:"fields"`
	FromBlock        uint64                 `json:"fromBlock"`
	IncludeAllBlocks bool                   `json:"includeAllBlocks"`
}

// Build creates the query for one page starting at fromBlock. Fields must
// already be validated; an unknown field is still rejected here.
func Build(dataset common.Dataset, fromBlock uint64, fields []string, options common.FilterOptions) (*Query, error) {
	q := &Query{
		Fields:           Fields{Block: Selector{}},
		FromBlock:        fromBlock,
		IncludeAllBlocks: true,
	}

	switch dataset {
	case common.DatasetBlocks:
		for _, name := range fields {
			f, err := schema.Lookup(dataset, name)
			if err != nil {
				return nil, err
			}
			q.Fields.Block[f.Key()] = true
		}
		return q, nil

	case common.DatasetTransactions:
		q.Fields.Transaction = Selector{}
		for _, name := range fields {
			f, err := schema.Lookup(dataset, name)
			if err != nil {
				return nil, err
			}
			if f.FromHeader {
				q.Fields.Block[f.Key()] = true
			} else {
				q.Fields.Transaction[f.Key()] = true
			}
		}
		if options == nil {
			options = common.FilterOptions{}
		}
		q.Transactions = []common.FilterOptions{options}
		return q, nil

	case common.DatasetLogs:
		return nil, fmt.Errorf("%w: query for dataset %s", ErrNotImplemented, dataset)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDataset, dataset)
	}
}

func (q *Query) Marshal() ([]byte, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}
	return body, nil
}
