package aggregation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/trahn-analytics/internal/models"
)

// BucketColumns is the column order every rollup query selects and every
// store scans.
const BucketColumns = "symbol_code, asset_type_code, bucket_start, first_open, last_close, " +
	"max_high, min_low, avg_close, total_volume, avg_volume, max_volume, min_volume, " +
	"volatility, record_count"

var (
	ErrEmptySymbols = errors.New("symbol filter is empty")
	ErrInvalidRange = errors.New("range start is after range end")
	ErrNoTable      = errors.New("query has no rollup table")
)

// Dialect carries the per-driver differences in placeholders and time binding.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	BindTime    func(t time.Time) any
}

var (
	PostgresDialect = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		BindTime:    func(t time.Time) any { return t.UTC() },
	}
	// SQLite stores bucket_start as unix seconds.
	SQLiteDialect = Dialect{
		Name:        "sqlite",
		Placeholder: func(int) string { return "?" },
		BindTime:    func(t time.Time) any { return t.UTC().Unix() },
	}
)

type Column string

const (
	ColSymbol      Column = "symbol_code"
	ColBucketStart Column = "bucket_start"
)

type Order struct {
	Column Column
	Desc   bool
}

// Predicate is one WHERE condition. Values are always emitted as bound args.
type Predicate interface {
	apply(b *builder) error
}

type SymbolIn []string

func (p SymbolIn) apply(b *builder) error {
	if len(p) == 0 {
		return ErrEmptySymbols
	}
	phs := make([]string, len(p))
	for i, s := range p {
		phs[i] = b.bind(s)
	}
	b.cond(string(ColSymbol) + " IN (" + strings.Join(phs, ", ") + ")")
	return nil
}

type AssetTypeEq models.AssetType

func (p AssetTypeEq) apply(b *builder) error {
	b.cond("asset_type_code = " + b.bind(string(p)))
	return nil
}

// StartBetween is inclusive on both ends.
type StartBetween struct {
	From time.Time
	To   time.Time
}

func (p StartBetween) apply(b *builder) error {
	if p.From.After(p.To) {
		return ErrInvalidRange
	}
	from := b.bind(b.dialect.BindTime(p.From))
	to := b.bind(b.dialect.BindTime(p.To))
	b.cond(string(ColBucketStart) + " BETWEEN " + from + " AND " + to)
	return nil
}

// Query is a typed rollup read. Offset is only applied together with a
// positive Limit.
type Query struct {
	Period  Period
	Where   []Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

func (q Query) Build(d Dialect) (string, []any, error) {
	if q.Period.Table == "" {
		return "", nil, ErrNoTable
	}
	b := &builder{dialect: d}
	b.sql.WriteString("SELECT " + BucketColumns + " FROM " + q.Period.Table)

	for _, p := range q.Where {
		if err := p.apply(b); err != nil {
			return "", nil, err
		}
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			if o.Column != ColSymbol && o.Column != ColBucketStart {
				return "", nil, fmt.Errorf("unsupported order column %q", o.Column)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = string(o.Column) + " " + dir
		}
		b.sql.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		b.sql.WriteString(" LIMIT " + b.bind(q.Limit))
		if q.Offset > 0 {
			b.sql.WriteString(" OFFSET " + b.bind(q.Offset))
		}
	}

	return b.sql.String(), b.args, nil
}

// --- builder ---

type builder struct {
	dialect Dialect
	sql     strings.Builder
	args    []any
	nconds  int
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) cond(expr string) {
	if b.nconds == 0 {
		b.sql.WriteString(" WHERE ")
	} else {
		b.sql.WriteString(" AND ")
	}
	b.sql.WriteString(expr)
	b.nconds++
}
