package table

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
)

// ParseCodec maps a compression name to a parquet codec. Empty means snappy.
func ParseCodec(name string) (compress.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

// rowType builds a struct type with one field per column. parquet-go keeps
// struct field order, which a parquet.Group would not.
func (t *Table) rowType() reflect.Type {
	fields := make([]reflect.StructField, len(t.Columns))
	for i, c := range t.Columns {
		typ := reflect.TypeOf("")
		if c.Kind == schema.KindUint64 {
			typ = reflect.TypeOf(uint64(0))
		}
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("Col%d", i),
			Type: typ,
			Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"%s"`, c.Name)),
		}
	}
	return reflect.StructOf(fields)
}

// WriteParquet encodes the table as a single parquet file.
func (t *Table) WriteParquet(w io.Writer, codec compress.Codec) error {
	if codec == nil {
		codec = &parquet.Snappy
	}
	typ := t.rowType()
	row := reflect.New(typ).Elem()
	pw := parquet.NewWriter(w,
		parquet.SchemaOf(row.Interface()),
		parquet.Compression(codec),
		parquet.DataPageStatistics(true),
	)

	for i := 0; i < t.Rows(); i++ {
		for j, c := range t.Columns {
			if c.Kind == schema.KindUint64 {
				row.Field(j).SetUint(c.Uint64s[i])
			} else {
				row.Field(j).SetString(c.Strings[i])
			}
		}
		if err := pw.Write(row.Interface()); err != nil {
			return fmt.Errorf("failed to write parquet row %d: %w", i, err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet loads a file written by WriteParquet back into a table.
func ReadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	file, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}

	fields := file.Schema().Fields()
	columns := make([]Column, len(fields))
	for i, field := range fields {
		switch field.Type().Kind() {
		case parquet.ByteArray:
			columns[i] = Column{Name: field.Name(), Kind: schema.KindString, Strings: []string{}}
		case parquet.Int64:
			columns[i] = Column{Name: field.Name(), Kind: schema.KindUint64, Uint64s: []uint64{}}
		default:
			return nil, fmt.Errorf("%w: column %q has unsupported type %s", ErrInvalidTable, field.Name(), field.Type())
		}
	}

	buf := make([]parquet.Row, 1024)
	for _, rg := range file.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, v := range row {
					c := &columns[v.Column()]
					if c.Kind == schema.KindUint64 {
						c.Uint64s = append(c.Uint64s, v.Uint64())
					} else {
						c.Strings = append(c.Strings, v.String())
					}
				}
			}
			if err != nil && !errors.Is(err, io.EOF) {
				rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
			if n == 0 || err != nil {
				break
			}
		}
		rows.Close()
	}
	return New(columns...)
}
