package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
)

func TestUint64Coercion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    uint64
		wantErr bool
	}{
		{name: "json integer", raw: `21000`, want: 21000},
		{name: "json float is truncated", raw: `1438269988.75`, want: 1438269988},
		{name: "hex quantity", raw: `"0x1a"`, want: 26},
		{name: "hex zero", raw: `"0x0"`, want: 0},
		{name: "hex leading zeros", raw: `"0x000f"`, want: 15},
		{name: "decimal string", raw: `"1000000000"`, want: 1000000000},
		{name: "max uint64", raw: `"0xffffffffffffffff"`, want: 18446744073709551615},
		{name: "overflow hex", raw: `"0x10000000000000000"`, wantErr: true},
		{name: "overflow number", raw: `18446744073709551616`, wantErr: true},
		{name: "negative number", raw: `-1`, wantErr: true},
		{name: "bare prefix", raw: `"0x"`, wantErr: true},
		{name: "garbage string", raw: `"abc"`, wantErr: true},
		{name: "boolean", raw: `true`, wantErr: true},
		{name: "object", raw: `{"a":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := EmptyAccumulator(common.DatasetBlocks, "gasUsed")
			require.NoError(t, err)

			err = acc.Append(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCoerce)
				assert.Equal(t, 0, acc.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []uint64{tt.want}, acc.Values())
		})
	}
}

func TestStringCoercion(t *testing.T) {
	acc, err := EmptyAccumulator(common.DatasetBlocks, "hash")
	require.NoError(t, err)

	require.NoError(t, acc.Append(json.RawMessage(`"0xabc"`)))
	assert.ErrorIs(t, acc.Append(json.RawMessage(`12`)), ErrCoerce)
	assert.Equal(t, []string{"0xabc"}, acc.Values())
}

func TestMissingValues(t *testing.T) {
	tests := []struct {
		name    string
		dataset common.Dataset
		field   string
		raw     json.RawMessage
		want    any
		wantErr bool
	}{
		{name: "optional string absent", dataset: common.DatasetTransactions, field: "to", raw: nil, want: []string{""}},
		{name: "optional string null", dataset: common.DatasetTransactions, field: "contractAddress", raw: json.RawMessage(`null`), want: []string{""}},
		{name: "optional number absent", dataset: common.DatasetTransactions, field: "maxFeePerGas", raw: nil, want: []uint64{0}},
		{name: "optional block base fee", dataset: common.DatasetBlocks, field: "baseFeePerGas", raw: json.RawMessage(`null`), want: []uint64{0}},
		{name: "required block number absent", dataset: common.DatasetBlocks, field: "gasUsed", raw: nil, wantErr: true},
		{name: "required transaction string null", dataset: common.DatasetTransactions, field: "from", raw: json.RawMessage(`null`), wantErr: true},
		{name: "required log field absent", dataset: common.DatasetLogs, field: "data", raw: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := EmptyAccumulator(tt.dataset, tt.field)
			require.NoError(t, err)
			err = acc.Append(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCoerce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, acc.Values())
		})
	}
}

func TestOptionalFieldFallsBackOnBadValue(t *testing.T) {
	tests := []struct {
		name    string
		dataset common.Dataset
		field   string
		raw     string
		want    any
		wantErr bool
	}{
		{name: "optional string holding bool", dataset: common.DatasetTransactions, field: "contractAddress", raw: `false`, want: []string{""}},
		{name: "optional number holding text", dataset: common.DatasetTransactions, field: "status", raw: `"ok"`, want: []uint64{0}},
		{name: "optional number overflowing", dataset: common.DatasetTransactions, field: "maxFeePerGas", raw: `"0x10000000000000000"`, want: []uint64{0}},
		{name: "optional block base fee holding object", dataset: common.DatasetBlocks, field: "baseFeePerGas", raw: `{}`, want: []uint64{0}},
		{name: "required string holding bool", dataset: common.DatasetTransactions, field: "hash", raw: `false`, wantErr: true},
		{name: "required number holding text", dataset: common.DatasetTransactions, field: "nonce", raw: `"ok"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := EmptyAccumulator(tt.dataset, tt.field)
			require.NoError(t, err)
			err = acc.Append(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCoerce)
				assert.Equal(t, 0, acc.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, acc.Values())
		})
	}
}

func TestFieldSetBlocks(t *testing.T) {
	fs, err := NewFieldSet(common.DatasetBlocks, []string{"number", "hash", "baseFeePerGas"})
	require.NoError(t, err)

	header := map[string]json.RawMessage{
		"number": json.RawMessage(`7`),
		"hash":   json.RawMessage(`"0x07"`),
	}
	require.NoError(t, fs.AppendRow(header, nil))
	assert.Equal(t, 1, fs.Rows())

	accs := fs.Accumulators()
	require.Len(t, accs, 3)
	assert.Equal(t, []uint64{7}, accs[0].Values())
	assert.Equal(t, []string{"0x07"}, accs[1].Values())
	assert.Equal(t, []uint64{0}, accs[2].Values())
}

func TestFieldSetTransactionsReadsHeaderContext(t *testing.T) {
	fs, err := NewFieldSet(common.DatasetTransactions, []string{"hash", "blockHash", "blockNumber", "timestamp"})
	require.NoError(t, err)

	header := map[string]json.RawMessage{
		"hash":      json.RawMessage(`"0xblock"`),
		"number":    json.RawMessage(`42`),
		"timestamp": json.RawMessage(`1700000000`),
	}
	item := map[string]json.RawMessage{"hash": json.RawMessage(`"0xtx"`)}
	require.NoError(t, fs.AppendRow(header, item))

	accs := fs.Accumulators()
	assert.Equal(t, []string{"0xtx"}, accs[0].Values())
	assert.Equal(t, []string{"0xblock"}, accs[1].Values())
	assert.Equal(t, []uint64{42}, accs[2].Values())
	assert.Equal(t, []uint64{1700000000}, accs[3].Values())
}

func TestFieldSetTransactionsRequiresHeaderContext(t *testing.T) {
	for _, field := range []string{"blockHash", "blockNumber", "timestamp"} {
		t.Run(field, func(t *testing.T) {
			f, err := Lookup(common.DatasetTransactions, field)
			require.NoError(t, err)
			assert.True(t, f.Required)
			assert.True(t, f.FromHeader)

			fs, err := NewFieldSet(common.DatasetTransactions, []string{field})
			require.NoError(t, err)
			item := map[string]json.RawMessage{"hash": json.RawMessage(`"0xtx"`)}
			assert.ErrorIs(t, fs.AppendRow(map[string]json.RawMessage{}, item), ErrCoerce)
		})
	}
}

func TestNewFieldSetUnknownField(t *testing.T) {
	_, err := NewFieldSet(common.DatasetLogs, []string{"hash", "topics"})
	assert.ErrorIs(t, err, ErrUnknownField)
}
