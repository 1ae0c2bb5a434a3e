package table

import (
	"errors"
	"fmt"

	"github.com/thirdweb-dev/archive-exporter/internal/schema"
)

var ErrInvalidTable = errors.New("invalid table")

// Column is one named, typed column. Only the slice matching Kind is used.
type Column struct {
	Name    string
	Kind    schema.Kind
	Strings []string
	Uint64s []uint64
}

func StringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: schema.KindString, Strings: values}
}

func Uint64Column(name string, values []uint64) Column {
	return Column{Name: name, Kind: schema.KindUint64, Uint64s: values}
}

func (c Column) Len() int {
	if c.Kind == schema.KindUint64 {
		return len(c.Uint64s)
	}
	return len(c.Strings)
}

// Value returns the value at row i as string or uint64.
func (c Column) Value(i int) any {
	if c.Kind == schema.KindUint64 {
		return c.Uint64s[i]
	}
	return c.Strings[i]
}

// Table is a column-major batch of rows with a fixed column order.
type Table struct {
	Columns []Column
}

func New(columns ...Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidTable)
	}
	names := make(map[string]struct{}, len(columns))
	rows := columns[0].Len()
	for _, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrInvalidTable)
		}
		if _, dup := names[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidTable, c.Name)
		}
		names[c.Name] = struct{}{}
		if c.Len() != rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d", ErrInvalidTable, c.Name, c.Len(), rows)
		}
	}
	return &Table{Columns: columns}, nil
}

// FromFieldSet turns accumulated fields into a table, one column per field
// in field set order.
func FromFieldSet(fs *schema.FieldSet) (*Table, error) {
	accs := fs.Accumulators()
	columns := make([]Column, 0, len(accs))
	for _, acc := range accs {
		f := acc.Field()
		switch values := acc.Values().(type) {
		case []string:
			columns = append(columns, StringColumn(f.Name, values))
		case []uint64:
			columns = append(columns, Uint64Column(f.Name, values))
		default:
			return nil, fmt.Errorf("%w: field %s has unsupported values %T", ErrInvalidTable, f, values)
		}
	}
	return New(columns...)
}

func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
