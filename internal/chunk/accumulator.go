package chunk

import (
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
)

const DefaultMaxBytes = 10 * 1024 * 1024

// Accumulator batches records so that no batch exceeds maxSizeBytes, except
// a batch holding a single record that is larger than the budget on its own.
type Accumulator struct {
	data         common.Chunk
	sizeBytes    int
	maxSizeBytes int
}

func NewAccumulator(maxSizeBytes int) *Accumulator {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxBytes
	}
	return &Accumulator{maxSizeBytes: maxSizeBytes}
}

// Add appends a record. When the record does not fit, the current batch is
// closed and returned first; otherwise the result is nil.
func (a *Accumulator) Add(record common.RawRecord) common.Chunk {
	var closed common.Chunk
	if len(a.data) > 0 && a.sizeBytes+len(record) > a.maxSizeBytes {
		closed = a.Flush()
	}
	a.data = append(a.data, record)
	a.sizeBytes += len(record)
	return closed
}

// Flush returns the pending batch and resets the accumulator. It returns nil
// when nothing is pending.
func (a *Accumulator) Flush() common.Chunk {
	if len(a.data) == 0 {
		return nil
	}
	data := a.data
	a.data = nil
	a.sizeBytes = 0

	log.Debug().
		Int("record_count", len(data)).
		Int("max_size_bytes", a.maxSizeBytes).
		Msg("Closing chunk")
	return data
}

// Size returns the pending size in bytes and record count.
func (a *Accumulator) Size() (int, int) {
	return a.sizeBytes, len(a.data)
}

func (a *Accumulator) IsEmpty() bool {
	return len(a.data) == 0
}

// Split partitions records into batches within maxBytes, preserving order,
// and hands each non-empty batch to emit.
func Split(records []common.RawRecord, maxBytes int, emit func(common.Chunk) error) error {
	acc := NewAccumulator(maxBytes)
	for _, record := range records {
		if closed := acc.Add(record); closed != nil {
			if err := emit(closed); err != nil {
				return err
			}
		}
	}
	if rest := acc.Flush(); rest != nil {
		return emit(rest)
	}
	return nil
}
