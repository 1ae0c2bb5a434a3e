package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thirdweb-dev/archive-exporter/internal/common"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrDuplicateField = errors.New("duplicate field")
)

// Kind is the scalar type of a column.
type Kind int

const (
	KindString Kind = iota
	KindUint64
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUint64:
		return "uint64"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Field describes one legal (dataset, field) pair.
type Field struct {
	Dataset common.Dataset
	Name    string
	Kind    Kind
	// Required fields fail when absent or not coercible; the rest fall back to the zero value.
	Required bool
	// WireKey is the key the value is read from when it differs from Name.
	WireKey string
	// FromHeader fields of nested datasets are read off the enclosing block header.
	FromHeader bool
}

// Key returns the record key holding the field's value.
func (f Field) Key() string {
	if f.WireKey != "" {
		return f.WireKey
	}
	return f.Name
}

func (f Field) String() string {
	return string(f.Dataset) + "." + f.Name
}

func str(name string, required bool) Field { return Field{Name: name, Kind: KindString, Required: required} }
func num(name string, required bool) Field { return Field{Name: name, Kind: KindUint64, Required: required} }

var catalogs = buildCatalogs(map[common.Dataset][]Field{
	common.DatasetBlocks: {
		str("hash", true),
		num("number", true),
		str("parentHash", true),
		num("timestamp", true),
		str("miner", true),
		str("stateRoot", true),
		str("transactionsRoot", true),
		str("receiptsRoot", true),
		num("gasUsed", true),
		str("extraData", true),
		num("baseFeePerGas", false),
		str("logsBloom", true),
		num("totalDifficulty", true),
		num("size", true),
	},
	common.DatasetTransactions: {
		str("id", true),
		num("transactionIndex", true),
		str("from", true),
		str("to", false),
		str("hash", true),
		num("gas", true),
		num("gasPrice", true),
		num("maxFeePerGas", false),
		num("maxPriorityFeePerGas", false),
		str("input", true),
		num("nonce", true),
		num("value", true),
		num("v", false),
		str("r", false),
		str("s", false),
		num("yParity", false),
		num("chainId", false),
		num("gasUsed", false),
		num("cumulativeGasUsed", false),
		num("effectiveGasPrice", false),
		str("contractAddress", false),
		num("type", false),
		num("status", false),
		str("sighash", true),
		{Name: "blockHash", Kind: KindString, Required: true, WireKey: "hash", FromHeader: true},
		{Name: "blockNumber", Kind: KindUint64, Required: true, WireKey: "number", FromHeader: true},
		{Name: "timestamp", Kind: KindUint64, Required: true, FromHeader: true},
	},
	common.DatasetLogs: {
		{Name: "hash", Kind: KindString, Required: true, WireKey: "transactionHash"},
		num("logIndex", true),
		num("transactionIndex", true),
		str("address", true),
		str("data", true),
	},
})

var defaultFields = map[common.Dataset][]string{
	common.DatasetBlocks:       {"hash", "number", "timestamp", "miner", "parentHash"},
	common.DatasetTransactions: {"hash", "from", "to", "input", "value"},
	common.DatasetLogs:         {"hash", "logIndex", "transactionIndex", "address", "data"},
}

type catalog struct {
	fields []Field
	byName map[string]Field
}

func buildCatalogs(in map[common.Dataset][]Field) map[common.Dataset]catalog {
	out := make(map[common.Dataset]catalog, len(in))
	for dataset, fields := range in {
		c := catalog{byName: make(map[string]Field, len(fields))}
		for _, f := range fields {
			f.Dataset = dataset
			c.fields = append(c.fields, f)
			c.byName[f.Name] = f
		}
		out[dataset] = c
	}
	return out
}

// Lookup returns the declared field or ErrUnknownField.
func Lookup(dataset common.Dataset, name string) (Field, error) {
	c, ok := catalogs[dataset]
	if !ok {
		return Field{}, fmt.Errorf("%w: dataset %q", common.ErrInvalidDataset, dataset)
	}
	f, ok := c.byName[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q for dataset %s", ErrUnknownField, name, dataset)
	}
	return f, nil
}

// Catalog returns every field of the dataset in declaration order.
func Catalog(dataset common.Dataset) []Field {
	fields := catalogs[dataset].fields
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

func FieldNames(dataset common.Dataset) []string {
	fields := catalogs[dataset].fields
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func DefaultFields(dataset common.Dataset) []string {
	d := defaultFields[dataset]
	out := make([]string, len(d))
	copy(out, d)
	return out
}

// ValidateFields checks a requested field list and returns it unchanged, or
// the dataset defaults when the list is empty.
func ValidateFields(dataset common.Dataset, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return DefaultFields(dataset), nil
	}
	seen := common.NewSet[string]()
	for _, name := range fields {
		if _, err := Lookup(dataset, name); err != nil {
			return nil, fmt.Errorf("%w. Valid fields are: %s", err, strings.Join(FieldNames(dataset), ", "))
		}
		if !seen.Add(name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, name)
		}
	}
	return fields, nil
}
