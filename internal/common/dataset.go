package common

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDataset = errors.New("invalid dataset")

type Dataset string

const (
	DatasetBlocks       Dataset = "blocks"
	DatasetTransactions Dataset = "transactions"
	DatasetLogs         Dataset = "logs"
)

var Datasets = []Dataset{DatasetBlocks, DatasetTransactions, DatasetLogs}

func (d Dataset) String() string {
	return string(d)
}

// Nested reports whether rows of the dataset live in a sub-list of each
// block record rather than in its header.
func (d Dataset) Nested() bool {
	return d == DatasetTransactions || d == DatasetLogs
}

// ItemsKey is the name of the nested list in a block record, and of the
// field selector section in a query.
func (d Dataset) ItemsKey() string {
	switch d {
	case DatasetTransactions:
		return "transactions"
	case DatasetLogs:
		return "logs"
	default:
		return ""
	}
}

func ParseDataset(value string) (Dataset, error) {
	switch d := Dataset(strings.ToLower(strings.TrimSpace(value))); d {
	case DatasetBlocks, DatasetTransactions, DatasetLogs:
		return d, nil
	case "":
		return "", fmt.Errorf("%w: no dataset specified", ErrInvalidDataset)
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDataset, value)
	}
}
