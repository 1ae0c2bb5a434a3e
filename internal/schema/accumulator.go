package schema

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/common"
)

// Accumulator is a typed, append-only column under construction.
type Accumulator interface {
	Field() Field
	// Append coerces one raw value. A nil or null value is absent.
	Append(raw json.RawMessage) error
	Len() int
	// Values returns []string or []uint64 depending on the field kind.
	Values() any
}

type scalar interface {
	~string | ~uint64
}

// Column is the single implementation behind both column kinds.
type Column[T scalar] struct {
	field  Field
	values []T
	coerce func(json.RawMessage) (T, error)
}

func newColumn[T scalar](field Field, coerce func(json.RawMessage) (T, error)) *Column[T] {
	return &Column[T]{field: field, coerce: coerce}
}

func (c *Column[T]) Field() Field { return c.field }

func (c *Column[T]) Len() int { return len(c.values) }

func (c *Column[T]) Values() any { return c.values }

// Append coerces raw onto the column. Optional fields take the zero value
// when raw is missing or does not coerce; required fields fail.
func (c *Column[T]) Append(raw json.RawMessage) error {
	var zero T
	if absent(raw) {
		if c.field.Required {
			return fmt.Errorf("%w: required field %s is missing", ErrCoerce, c.field)
		}
		c.values = append(c.values, zero)
		return nil
	}
	v, err := c.coerce(raw)
	if err != nil {
		if c.field.Required {
			return fmt.Errorf("%w: %s: %v", ErrCoerce, c.field, err)
		}
		log.Debug().Err(err).Str("field", c.field.String()).Msg("Optional field did not coerce, using zero value")
		v = zero
	}
	c.values = append(c.values, v)
	return nil
}

// EmptyAccumulator returns a new column of the declared kind for the field.
func EmptyAccumulator(dataset common.Dataset, name string) (Accumulator, error) {
	field, err := Lookup(dataset, name)
	if err != nil {
		return nil, err
	}
	return newAccumulator(field), nil
}

func newAccumulator(field Field) Accumulator {
	switch field.Kind {
	case KindUint64:
		return newColumn(field, coerceUint64)
	default:
		return newColumn(field, coerceString)
	}
}
