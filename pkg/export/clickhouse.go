package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache"
	"github.com/hyp3rd/histcache/internal/sentinel"
)

// DefaultTable is the table bins are written to when none is configured.
const DefaultTable = "histcache_bins"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    Run        String,
    Snapshot   String,
    CreatedAt  DateTime64(3),
    Identifier LowCardinality(String),
    Object     LowCardinality(String),
    Kind       LowCardinality(String),
    Coords     Array(Int32),
    Center     Array(Float64),
    Entries    UInt64,
    SumW       Float64,
    SumW2      Float64,
    Mean       Float64
) ENGINE = MergeTree()
ORDER BY (Run, Identifier, Object, Coords);
`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config holds the ClickHouse connection settings.
type Config struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Table    string   `yaml:"table"`
}

// Exporter writes snapshot bins to a ClickHouse table.
type Exporter struct {
	conn   driver.Conn
	table  string
	logger *zap.Logger
}

// Open connects to ClickHouse, pings it and makes sure the table exists.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if len(cfg.Addr) == 0 {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "clickhouse addr")
	}

	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	if !tableName.MatchString(table) {
		return nil, ewrap.Newf("invalid clickhouse table name %q", table)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to connect to clickhouse")
	}

	err = conn.Ping(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, ewrap.Wrapf(err, "failed to ping clickhouse %s", strings.Join(cfg.Addr, ","))
	}

	exp, err := NewExporter(conn, table, logger)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	err = exp.EnsureTable(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	return exp, nil
}

// NewExporter wraps an established connection.
func NewExporter(conn driver.Conn, table string, logger *zap.Logger) (*Exporter, error) {
	if conn == nil {
		return nil, sentinel.ErrNilClient
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Exporter{conn: conn, table: table, logger: logger}, nil
}

// EnsureTable creates the bins table when missing.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	err := e.conn.Exec(ctx, fmt.Sprintf(createTableStatement, e.table))
	if err != nil {
		return ewrap.Wrapf(err, "failed to create table %s", e.table)
	}

	return nil
}

// Export writes every populated bin of snap in one batch and returns the
// number of rows sent.
func (e *Exporter) Export(ctx context.Context, run string, snap *histcache.Snapshot) (int, error) {
	if snap == nil {
		return 0, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "snapshot")
	}

	rows, err := Rows(run, snap)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}

	batch, err := e.conn.PrepareBatch(ctx, "INSERT INTO "+e.table)
	if err != nil {
		return 0, ewrap.Wrap(err, "failed to prepare batch")
	}

	for _, row := range rows {
		err = batch.Append(
			row.Run,
			row.Snapshot,
			row.CreatedAt,
			row.Identifier,
			row.Object,
			row.Kind,
			row.Coords,
			row.Center,
			row.Entries,
			row.SumW,
			row.SumW2,
			row.Mean,
		)
		if err != nil {
			_ = batch.Abort()

			return 0, ewrap.Wrapf(err, "failed to append %s:%s to batch", row.Identifier, row.Object)
		}
	}

	err = batch.Send()
	if err != nil {
		return 0, ewrap.Wrap(err, "failed to send batch")
	}

	e.logger.Info("bins exported",
		zap.String("table", e.table),
		zap.String("run", run),
		zap.String("snapshot", snap.ID),
		zap.Int("rows", len(rows)),
	)

	return len(rows), nil
}

// Close closes the connection.
func (e *Exporter) Close() error {
	return e.conn.Close()
}
