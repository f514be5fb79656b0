package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"aeso-harvester/internal/config"
	"aeso-harvester/internal/storage"
	chstore "aeso-harvester/internal/storage/clickhouse"
	"aeso-harvester/internal/storage/csvfile"
	"aeso-harvester/internal/storage/migrations"
	pgstore "aeso-harvester/internal/storage/postgres"
	sqlitestore "aeso-harvester/internal/storage/sqlite"
)

// sinks is the output side of a run: the CSV tree that consolidation reads,
// plus the relational sinks every period is mirrored to.
type sinks struct {
	files    *csvfile.Store
	writer   storage.PeriodWriter
	manifest storage.ManifestStore
	failures storage.FailureStore
	closers  []func()
}

func openSinks(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (_ *sinks, err error) {
	s := &sinks{files: csvfile.New(cfg.Output.Root)}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var writers storage.Fanout
	if cfg.Output.CSV {
		writers = append(writers, s.files)
	}
	manifest := &storage.MirroredManifest{Primary: csvfile.NewManifest(cfg.Output.Root)}

	if cfg.Output.SQLite {
		db, err := openSQLite(ctx, cfg.SQLiteFile())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		writers = append(writers, sqlitestore.NewPeriodSink(db))
		manifest.Mirrors = append(manifest.Mirrors, sqlitestore.NewManifestStore(db))
		s.failures = sqlitestore.NewFailureStore(db)
		logger.Info("sqlite output enabled", zap.String("path", cfg.SQLiteFile()))
	}

	switch cfg.Sink.Driver {
	case config.SinkNone:
	case config.SinkSQLite:
		db, err := openSQLite(ctx, cfg.Sink.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		writers = append(writers, sqlitestore.NewPeriodSink(db))
		manifest.Mirrors = append(manifest.Mirrors, sqlitestore.NewManifestStore(db))
		s.failures = sqlitestore.NewFailureStore(db)
	case config.SinkPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Sink.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		writers = append(writers, pgstore.NewPeriodSink(pool))
		manifest.Mirrors = append(manifest.Mirrors, pgstore.NewManifestStore(pool))
		s.failures = pgstore.NewFailureStore(pool)
	case config.SinkClickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Sink.DSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		writers = append(writers, chstore.NewPeriodSink(conn, runID))
		manifest.Mirrors = append(manifest.Mirrors, chstore.NewManifestStore(conn))
	default:
		return nil, fmt.Errorf("unknown sink driver %q", cfg.Sink.Driver)
	}
	if cfg.Sink.Driver != config.SinkNone {
		logger.Info("relational sink enabled", zap.String("driver", cfg.Sink.Driver))
	}

	s.writer = writers
	s.manifest = manifest
	return s, nil
}

func openSQLite(ctx context.Context, path string) (*sqlitestore.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlitestore.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunSQLiteMigrations(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}
	return db, nil
}

// Close releases every sink in reverse order of opening.
func (s *sinks) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
