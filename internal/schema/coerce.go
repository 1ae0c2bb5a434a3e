package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

var ErrCoerce = errors.New("cannot coerce value")

var jsonNull = []byte("null")

// absent reports whether a raw value counts as missing.
func absent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull)
}

func coerceString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a string, got %s", truncate(raw))
	}
	return s, nil
}

// coerceUint64 accepts JSON numbers, hex quantity strings and decimal
// strings. Fractions are truncated. Anything above 2^64-1 is an error.
func coerceUint64(raw json.RawMessage) (uint64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, fmt.Errorf("expected a quantity, got %s", truncate(raw))
		}
		return parseQuantity(s)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, fmt.Errorf("expected a quantity, got %s", truncate(raw))
	}
	text := n.String()
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, err
		}
		if f < 0 || f >= math.MaxUint64 {
			return 0, fmt.Errorf("%s is outside the uint64 range", text)
		}
		return uint64(f), nil
	}
	return parseQuantity(text)
}

func parseQuantity(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		// uint256.FromHex rejects leading zeros
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			if len(s) == 2 {
				return 0, fmt.Errorf("empty hex quantity")
			}
			return 0, nil
		}
		v, err = uint256.FromHex("0x" + digits)
	} else {
		if s == "" || s[0] < '0' || s[0] > '9' {
			return 0, fmt.Errorf("invalid quantity %q", s)
		}
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %v", s, err)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %s overflows uint64", s)
	}
	return v.Uint64(), nil
}

func truncate(raw json.RawMessage) string {
	const max = 64
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
