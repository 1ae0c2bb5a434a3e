package common

import (
	"errors"
	"fmt"
	"strings"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/schema"
)

var ErrInvalidOption = errors.New("invalid option")

// FilterOptions maps an option key to the values it may match.
type FilterOptions map[string][]string

// TransactionFilter is the typed view of transaction filter options.
type TransactionFilter struct {
	From    []string `schema:"from"`
	To      []string `schema:"to"`
	Sighash []string `schema:"sighash"`
}

// LogFilter is the typed view of log filter options.
type LogFilter struct {
	Address []string `schema:"address"`
	Topic0  []string `schema:"topic0"`
	Topic1  []string `schema:"topic1"`
	Topic2  []string `schema:"topic2"`
	Topic3  []string `schema:"topic3"`
}

var optionKeys = map[Dataset][]string{
	DatasetBlocks:       {},
	DatasetTransactions: {"from", "to", "sighash"},
	DatasetLogs:         {"address", "topic0", "topic1", "topic2", "topic3"},
}

// OptionKeys returns the filter option keys accepted for a dataset.
func OptionKeys(dataset Dataset) []string {
	keys := optionKeys[dataset]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ParseOptions turns "key:value" pairs into FilterOptions. Repeated keys
// accumulate values. Blocks takes no filters, so options passed for it are
// dropped.
func ParseOptions(dataset Dataset, pairs []string) (FilterOptions, error) {
	options := FilterOptions{}
	if dataset == DatasetBlocks || len(pairs) == 0 {
		return options, nil
	}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !found || key == "" || value == "" {
			return nil, fmt.Errorf("%w: expected key:value, got %q", ErrInvalidOption, pair)
		}
		options[key] = append(options[key], value)
	}
	return ValidateOptions(dataset, options)
}

// ValidateOptions checks keys and values against the dataset and returns a
// normalized copy with lowercase hex values.
func ValidateOptions(dataset Dataset, options FilterOptions) (FilterOptions, error) {
	if len(options) == 0 {
		return FilterOptions{}, nil
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	switch dataset {
	case DatasetTransactions:
		var filter TransactionFilter
		if err := decoder.Decode(&filter, options); err != nil {
			return nil, unknownKeyError(dataset, err)
		}
		return filter.normalize()
	case DatasetLogs:
		var filter LogFilter
		if err := decoder.Decode(&filter, options); err != nil {
			return nil, unknownKeyError(dataset, err)
		}
		return filter.normalize()
	default:
		return nil, fmt.Errorf("%w: dataset %s takes no options", ErrInvalidOption, dataset)
	}
}

func unknownKeyError(dataset Dataset, err error) error {
	return fmt.Errorf("%w: %v (valid keys for %s: %s)", ErrInvalidOption, err, dataset, strings.Join(optionKeys[dataset], ", "))
}

func (f TransactionFilter) normalize() (FilterOptions, error) {
	out := FilterOptions{}
	if err := addValues(out, "from", f.From, normalizeAddress); err != nil {
		return nil, err
	}
	if err := addValues(out, "to", f.To, normalizeAddress); err != nil {
		return nil, err
	}
	if err := addValues(out, "sighash", f.Sighash, fixedBytes(4)); err != nil {
		return nil, err
	}
	return out, nil
}

func (f LogFilter) normalize() (FilterOptions, error) {
	out := FilterOptions{}
	if err := addValues(out, "address", f.Address, normalizeAddress); err != nil {
		return nil, err
	}
	topics := [][]string{f.Topic0, f.Topic1, f.Topic2, f.Topic3}
	for i, values := range topics {
		if err := addValues(out, fmt.Sprintf("topic%d", i), values, fixedBytes(32)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func addValues(out FilterOptions, key string, values []string, normalize func(string) (string, error)) error {
	for _, v := range values {
		n, err := normalize(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOption, key, err)
		}
		out[key] = append(out[key], n)
	}
	return nil
}

func normalizeAddress(value string) (string, error) {
	if !gethCommon.IsHexAddress(value) {
		return "", fmt.Errorf("%q is not a hex address", value)
	}
	return strings.ToLower(gethCommon.HexToAddress(value).Hex()), nil
}

func fixedBytes(size int) func(string) (string, error) {
	return func(value string) (string, error) {
		b, err := hexutil.Decode(value)
		if err != nil {
			return "", fmt.Errorf("%q: %v", value, err)
		}
		if len(b) != size {
			return "", fmt.Errorf("%q is %d bytes, expected %d", value, len(b), size)
		}
		return hexutil.Encode(b), nil
	}
}
