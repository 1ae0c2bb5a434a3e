package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid range")

// BlockRange is an inclusive range of block heights.
type BlockRange struct {
	Start uint64
	End   uint64
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

func (r BlockRange) Validate() error {
	if r.Start >= r.End {
		return fmt.Errorf("%w: start %d must be below end %d", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// ParseRange parses "start:end". An empty end ("start:") is returned with
// openEnd set so the caller can resolve it against the archive height.
func ParseRange(value string) (r BlockRange, openEnd bool, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return BlockRange{}, false, fmt.Errorf("%w: expected start:end, got %q", ErrInvalidRange, value)
	}
	r.Start, err = strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return BlockRange{}, false, fmt.Errorf("%w: start %q: %v", ErrInvalidRange, parts[0], err)
	}
	end := strings.TrimSpace(parts[1])
	if end == "" {
		return r, true, nil
	}
	r.End, err = strconv.ParseUint(end, 10, 64)
	if err != nil {
		return BlockRange{}, false, fmt.Errorf("%w: end %q: %v", ErrInvalidRange, parts[1], err)
	}
	if err := r.Validate(); err != nil {
		return BlockRange{}, false, err
	}
	return r, false, nil
}
