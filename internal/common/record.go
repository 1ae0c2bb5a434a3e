package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMissingHeight = errors.New("record has no header.number")

// RawRecord is one block record exactly as returned by the archive.
type RawRecord = json.RawMessage

// Chunk is a size-bounded batch of records handed from the fetcher to the writer.
type Chunk []RawRecord

// Size is the serialized size of the chunk in bytes.
func (c Chunk) Size() int {
	size := 0
	for _, r := range c {
		size += len(r)
	}
	return size
}

// BlockRecord is the decoded shape of an archive block record. Header and
// nested items stay raw so that only requested keys are ever parsed.
type BlockRecord struct {
	Header       map[string]json.RawMessage   `json:"header"`
	Transactions []map[string]json.RawMessage `json:"transactions"`
	Logs         []map[string]json.RawMessage `json:"logs"`
}

func DecodeBlockRecord(raw RawRecord) (*BlockRecord, error) {
	var record BlockRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode block record: %w", err)
	}
	return &record, nil
}

// Items returns the nested entries the dataset's rows come from.
func (b *BlockRecord) Items(dataset Dataset) []map[string]json.RawMessage {
	switch dataset {
	case DatasetTransactions:
		return b.Transactions
	case DatasetLogs:
		return b.Logs
	default:
		return nil
	}
}

// HeaderNumber reads header.number without decoding the rest of the record.
func HeaderNumber(raw RawRecord) (uint64, error) {
	var probe struct {
		Header struct {
			Number *json.Number `json:"number"`
		} `json:"header"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("failed to decode record header: %w", err)
	}
	if probe.Header.Number == nil {
		return 0, ErrMissingHeight
	}
	n, err := strconv.ParseUint(probe.Header.Number.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid value %q", ErrMissingHeight, probe.Header.Number.String())
	}
	return n, nil
}
