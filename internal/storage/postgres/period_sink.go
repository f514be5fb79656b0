package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// PeriodSink stores each endpoint in its own table named after the endpoint
// ID. Rows are loaded with COPY inside one transaction per write.
type PeriodSink struct {
	pool *Pool

	mu     sync.Mutex
	tables map[string][]string
}

// Compile-time interface checks.
var (
	_ storage.PeriodWriter = (*PeriodSink)(nil)
	_ storage.TableReader  = (*PeriodSink)(nil)
)

// NewPeriodSink creates a new PostgreSQL period sink.
func NewPeriodSink(pool *Pool) *PeriodSink {
	return &PeriodSink{pool: pool, tables: make(map[string][]string)}
}

// WritePeriod replaces or appends the rows of (cfg, year).
func (s *PeriodSink) WritePeriod(ctx context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode storage.WriteMode) error {
	if table == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTable(ctx, cfg.ID, table.Columns); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	name := pgx.Identifier{cfg.ID}.Sanitize()
	seq := 0
	if mode == storage.Replace {
		if _, err := tx.Exec(ctx, `DELETE FROM `+name+` WHERE period_year = $1`, year); err != nil {
			return fmt.Errorf("clear period %s/%d: %w", cfg.ID, year, err)
		}
	} else {
		var maxSeq *int
		if err := tx.QueryRow(ctx, `SELECT MAX(row_seq) FROM `+name+` WHERE period_year = $1`, year).Scan(&maxSeq); err != nil {
			return fmt.Errorf("read row_seq: %w", err)
		}
		if maxSeq != nil {
			seq = *maxSeq + 1
		}
	}

	cols := append([]string{"period_year", "row_seq"}, table.Columns...)
	src := make([][]any, len(table.Rows))
	for i, row := range table.Rows {
		vals := make([]any, 0, len(cols))
		vals = append(vals, int32(year), int32(seq+i))
		for _, v := range row {
			vals = append(vals, v)
		}
		src[i] = vals
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{cfg.ID}, cols, pgx.CopyFromRows(src)); err != nil {
		return fmt.Errorf("copy rows into %s: %w", cfg.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadPeriod returns the rows of (cfg, year) in write order.
func (s *PeriodSink) ReadPeriod(ctx context.Context, cfg domain.EndpointConfig, year int) (*domain.Table, error) {
	cols, err := s.columns(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, storage.ErrNotFound
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE period_year = $1 ORDER BY row_seq`,
		strings.Join(quoted, ", "), pgx.Identifier{cfg.ID}.Sanitize()), year)
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}

	table := domain.NewTable(cols...)
	table.Rows, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		vals := make([]*string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := row.Scan(ptrs...); err != nil {
			return nil, err
		}
		out := make([]string, len(cols))
		for i, v := range vals {
			if v != nil {
				out[i] = *v
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, storage.ErrNotFound
	}
	return table, nil
}

// ListPeriods returns the stored years for cfg.
func (s *PeriodSink) ListPeriods(ctx context.Context, cfg domain.EndpointConfig) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT period_year FROM `+pgx.Identifier{cfg.ID}.Sanitize()+` ORDER BY period_year`)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]int, len(years))
	for i, y := range years {
		out[i] = int(y)
	}
	return out, nil
}

func (s *PeriodSink) ensureTable(ctx context.Context, name string, columns []string) error {
	existing, ok := s.tables[name]
	if !ok {
		var err error
		if existing, err = s.columns(ctx, name); err != nil {
			return err
		}
	}

	if len(existing) == 0 {
		defs := []string{"period_year INTEGER NOT NULL", "row_seq INTEGER NOT NULL"}
		for _, c := range columns {
			defs = append(defs, pgx.Identifier{c}.Sanitize()+" TEXT")
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (period_year, row_seq))`,
			pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		existing = append([]string(nil), columns...)
	}

	if strings.Join(existing, "\x00") != strings.Join(columns, "\x00") {
		return fmt.Errorf("table %s: %w", name, storage.ErrColumnMismatch)
	}
	s.tables[name] = existing
	return nil
}

// columns returns the data columns of a table, or nil when it does not exist.
func (s *PeriodSink) columns(ctx context.Context, name string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		  AND column_name NOT IN ('period_year', 'row_seq')
		ORDER BY ordinal_position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", name, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
