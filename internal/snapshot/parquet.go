package snapshot

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/marcboeker/go-duckdb"
)

const parquetTable = "snapshot"

// writeParquetFile loads t into an in-memory DuckDB table through the
// appender and copies it out as Parquet.
func writeParquetFile(ctx context.Context, path string, t *core.Table) error {
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c) + " DOUBLE"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", parquetTable, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}

	if err := appendRows(ctx, connector, t); err != nil {
		return err
	}

	copySQL := fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", parquetTable, quoteLiteral(path))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	return nil
}

// appendRows streams the rows through a raw driver connection. Connections
// from one connector share the same in-memory database.
func appendRows(ctx context.Context, connector *duckdb.Connector, t *core.Table) error {
	conn, err := connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to duckdb: %w", err)
	}
	defer conn.Close()

	appender, err := duckdb.NewAppenderFromConn(conn, "", parquetTable)
	if err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	values := make([]driver.Value, len(t.Columns))
	for n, row := range t.Rows {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				appender.Close()
				return err
			}
		}
		for i, v := range row {
			values[i] = v
		}
		if err := appender.AppendRow(values...); err != nil {
			appender.Close()
			return fmt.Errorf("append row %d: %w", n, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
