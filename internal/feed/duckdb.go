package feed

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// DuckDBSource reads bars from a Parquet or CSV file through an in-process
// DuckDB view. Indicator columns are discovered from the file schema, so
// feeds with different indicator sets need no code changes.
type DuckDBSource struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewDuckDBSource opens an in-memory DuckDB instance.
func NewDuckDBSource(log *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	return &DuckDBSource{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize points the bars view at the given data file. DuckDB infers the
// reader from the file extension.
func (d *DuckDBSource) Initialize(path string) error {
	d.log.Debug("initializing duckdb bar source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	var reader string

	switch {
	case strings.HasSuffix(path, ".csv"):
		reader = fmt.Sprintf("read_csv_auto('%s')", path)
	default:
		reader = fmt.Sprintf("read_parquet('%s')", path)
	}

	query := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s;`, reader)
	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create view over %s", path)
	}

	return nil
}

// Count implements BarSource.
func (d *DuckDBSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("bars")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// ReadAll implements BarSource. The whole row is scanned; columns outside
// the core set land in the bar's indicator map, with SQL NULLs left out so
// they read back as missing.
func (d *DuckDBSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		builder := d.sq.Select("*").From("bars").OrderBy("time ASC")

		if start.IsSome() {
			builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
		}

		if end.IsSome() {
			builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
		}

		query, args, err := builder.ToSql()
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build read query", err))

			return
		}

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read bars", err))

			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read columns", err))

			return
		}

		for rows.Next() {
			bar, err := scanBar(rows, columns)
			if err != nil {
				yield(types.Bar{}, err)

				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "bar iteration failed", err))
		}
	}
}

func scanBar(rows *sql.Rows, columns []string) (types.Bar, error) {
	values := make([]any, len(columns))

	var (
		timestamp time.Time
		symbol    sql.NullString
	)

	indicators := make([]sql.NullFloat64, len(columns))

	for i, column := range columns {
		switch column {
		case "time":
			values[i] = &timestamp
		case "symbol":
			values[i] = &symbol
		default:
			values[i] = &indicators[i]
		}
	}

	if err := rows.Scan(values...); err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
	}

	bar := types.Bar{
		Timestamp:  timestamp,
		Symbol:     symbol.String,
		Indicators: make(map[string]float64),
	}

	for i, column := range columns {
		value := indicators[i]

		switch column {
		case "time", "symbol":
			continue
		case "open":
			bar.Open = value.Float64
		case "high":
			bar.High = value.Float64
		case "low":
			bar.Low = value.Float64
		case "close":
			bar.Close = value.Float64
		case "volume":
			bar.Volume = value.Float64
		default:
			if value.Valid {
				bar.Indicators[column] = value.Float64
			}
		}
	}

	return bar, nil
}

// Close implements BarSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}
