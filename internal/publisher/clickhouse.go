package publisher

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/archive-exporter/configs"
	"github.com/thirdweb-dev/archive-exporter/internal/schema"
	"github.com/thirdweb-dev/archive-exporter/internal/table"
)

// ClickHousePublisher inserts every materialized table into a ClickHouse
// table named after the dataset, creating it on first use.
type ClickHousePublisher struct {
	conn     driver.Conn
	database string

	mu      sync.Mutex
	created map[string]bool
}

func NewClickHousePublisher(cfg *config.ClickhouseConfig) (*ClickHousePublisher, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is not configured")
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Protocol: clickhouse.Native,
		TLS: func() *tls.Config {
			if cfg.EnableTLS {
				return &tls.Config{}
			}
			return nil
		}(),
		Auth: clickhouse.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	database := cfg.Database
	if database == "" {
		database = "default"
	}
	return &ClickHousePublisher{conn: conn, database: database, created: map[string]bool{}}, nil
}

func (p *ClickHousePublisher) Name() string { return "clickhouse" }

func (p *ClickHousePublisher) Publish(ctx context.Context, file *FileWritten) error {
	if file.Table == nil {
		return fmt.Errorf("no table attached to %s", file.File)
	}
	tableName := file.Dataset.String()
	if err := p.ensureTable(ctx, tableName, file.Table); err != nil {
		return err
	}
	if file.Table.Rows() == 0 {
		return nil
	}

	batch, err := p.conn.PrepareBatch(ctx, insertStatement(p.database, tableName, file.Table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for i, c := range file.Table.Columns {
		var values any = c.Strings
		if c.Kind == schema.KindUint64 {
			values = c.Uint64s
		}
		if err := batch.Column(i).Append(values); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append column %s: %w", c.Name, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Debug().Str("table", tableName).Int("rows", file.Table.Rows()).Msg("Inserted rows into ClickHouse")
	return nil
}

func (p *ClickHousePublisher) ensureTable(ctx context.Context, name string, t *table.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.created[name] {
		return nil
	}
	if err := p.conn.Exec(ctx, createTableStatement(p.database, name, t)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	p.created[name] = true
	return nil
}

func (p *ClickHousePublisher) Close() error {
	return p.conn.Close()
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func columnType(kind schema.Kind) string {
	if kind == schema.KindUint64 {
		return "UInt64"
	}
	return "String"
}

func createTableStatement(database, name string, t *table.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), columnType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s) ENGINE = MergeTree ORDER BY tuple()",
		quoteIdent(database), quoteIdent(name), strings.Join(defs, ", "))
}

func insertStatement(database, name string, t *table.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
	}
	return fmt.Sprintf("INSERT INTO %s.%s (%s)", quoteIdent(database), quoteIdent(name), strings.Join(cols, ", "))
}
