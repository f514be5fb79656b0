package clickhouse

import (
	"context"
	"fmt"
	"sync"

	"aeso-harvester/internal/domain"
	"aeso-harvester/internal/storage"
)

// PeriodSink implements storage.PeriodWriter and storage.TableReader on the
// period_rows table. Each row carries its own column names so endpoints
// share one table.
type PeriodSink struct {
	conn  *Conn
	runID string
	mu    sync.Mutex
}

// Compile-time interface checks.
var (
	_ storage.PeriodWriter = (*PeriodSink)(nil)
	_ storage.TableReader  = (*PeriodSink)(nil)
)

// NewPeriodSink creates a sink tagging rows with runID.
func NewPeriodSink(conn *Conn, runID string) *PeriodSink {
	return &PeriodSink{conn: conn, runID: runID}
}

// WritePeriod replaces or appends the rows of (cfg, year).
func (s *PeriodSink) WritePeriod(ctx context.Context, cfg domain.EndpointConfig, year int, table *domain.Table, mode storage.WriteMode) error {
	if table == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := 0
	if mode == storage.Replace {
		if err := s.conn.Exec(ctx, `DELETE FROM period_rows WHERE endpoint = ? AND period_year = ?`,
			cfg.ID, uint16(year)); err != nil {
			return fmt.Errorf("clear period %s/%d: %w", cfg.ID, year, err)
		}
	} else {
		var count uint64
		var stored []string
		row := s.conn.QueryRow(ctx, `
			SELECT count(), any(column_names)
			FROM period_rows
			WHERE endpoint = ? AND period_year = ?
		`, cfg.ID, uint16(year))
		if err := row.Scan(&count, &stored); err != nil {
			return fmt.Errorf("read period %s/%d: %w", cfg.ID, year, err)
		}
		if count > 0 && !equalColumns(stored, table.Columns) {
			return fmt.Errorf("%s/%d: %w", cfg.ID, year, storage.ErrColumnMismatch)
		}
		seq = int(count)
	}

	if table.Len() == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO period_rows (endpoint, period_year, row_seq, column_names, cells, run_id)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, row := range table.Rows {
		if err := batch.Append(cfg.ID, uint16(year), uint32(seq+i), table.Columns, row, s.runID); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ReadPeriod returns the rows of (cfg, year) ordered by row_seq.
func (s *PeriodSink) ReadPeriod(ctx context.Context, cfg domain.EndpointConfig, year int) (*domain.Table, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT column_names, cells
		FROM period_rows
		WHERE endpoint = ? AND period_year = ?
		ORDER BY row_seq
	`, cfg.ID, uint16(year))
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}
	defer rows.Close()

	var table *domain.Table
	for rows.Next() {
		var cols, cells []string
		if err := rows.Scan(&cols, &cells); err != nil {
			return nil, err
		}
		if table == nil {
			table = domain.NewTable(cols...)
		}
		if err := table.Append(cells); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, storage.ErrNotFound
	}
	return table, nil
}

// ListPeriods returns the stored years for cfg.
func (s *PeriodSink) ListPeriods(ctx context.Context, cfg domain.EndpointConfig) ([]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT period_year
		FROM period_rows
		WHERE endpoint = ?
		ORDER BY period_year
	`, cfg.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y uint16
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, int(y))
	}
	return years, rows.Err()
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
