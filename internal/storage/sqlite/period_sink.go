package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// PeriodSink stores each endpoint in its own table named after the endpoint
// ID. Every registered column is TEXT; period_year and row_seq keep the
// period and the original row order.
type PeriodSink struct {
	db     *DB
	tables map[string][]string
}

// Compile-time interface checks.
var (
	_ storage.PeriodWriter = (*PeriodSink)(nil)
	_ storage.TableReader  = (*PeriodSink)(nil)
)

// NewPeriodSink creates a period sink on db.
func NewPeriodSink(db *DB) *PeriodSink {
	return &PeriodSink{db: db, tables: make(map[string][]string)}
}

// WritePeriod writes table rows for (cfg, year) in a single transaction.
func (s *PeriodSink) WritePeriod(ctx context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode storage.WriteMode) (err error) {
	if table == nil {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if err := s.ensureTable(ctx, cfg.ID, table.Columns); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	name := quoteIdent(cfg.ID)
	seq := 0
	if mode == storage.Replace {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+name+` WHERE period_year = ?`, year); err != nil {
			return fmt.Errorf("clear period %s/%d: %w", cfg.ID, year, err)
		}
	} else {
		var maxSeq sql.NullInt64
		if err = tx.QueryRowContext(ctx, `SELECT MAX(row_seq) FROM `+name+` WHERE period_year = ?`, year).Scan(&maxSeq); err != nil {
			return fmt.Errorf("read row_seq: %w", err)
		}
		if maxSeq.Valid {
			seq = int(maxSeq.Int64) + 1
		}
	}

	cols := make([]string, 0, len(table.Columns)+2)
	cols = append(cols, "period_year", "row_seq")
	for _, c := range table.Columns {
		cols = append(cols, quoteIdent(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		name, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, row := range table.Rows {
		args[0] = year
		args[1] = seq + i
		for c, v := range row {
			args[c+2] = v
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
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
		quoted[i] = quoteIdent(c)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE period_year = ? ORDER BY row_seq`,
		strings.Join(quoted, ", "), quoteIdent(cfg.ID)), year)
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}
	defer rows.Close()

	table := domain.NewTable(cols...)
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, storage.ErrNotFound
	}
	return table, nil
}

// ListPeriods returns the stored years for cfg.
func (s *PeriodSink) ListPeriods(ctx context.Context, cfg domain.EndpointConfig) ([]int, error) {
	cols, err := s.columns(ctx, cfg.ID)
	if err != nil || len(cols) == 0 {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT period_year FROM `+quoteIdent(cfg.ID)+` ORDER BY period_year`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// ensureTable creates the endpoint table or verifies its column order.
func (s *PeriodSink) ensureTable(ctx context.Context, name string, columns []string) error {
	existing, ok := s.tables[name]
	if !ok {
		var err error
		existing, err = s.columns(ctx, name)
		if err != nil {
			return err
		}
	}

	if len(existing) == 0 {
		defs := []string{"period_year INTEGER NOT NULL", "row_seq INTEGER NOT NULL"}
		for _, c := range columns {
			defs = append(defs, quoteIdent(c)+" TEXT")
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (period_year, row_seq))`,
			quoteIdent(name), strings.Join(defs, ", "))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
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

// columns returns the data columns of a table in declaration order, or nil
// when the table does not exist.
func (s *PeriodSink) columns(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		if c == "period_year" || c == "row_seq" {
			continue
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
