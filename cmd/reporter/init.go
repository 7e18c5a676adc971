package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vshulcz/zbxreporter/internal/adapters/journal/file"
	"github.com/vshulcz/zbxreporter/internal/adapters/journal/memory"
	pgjournal "github.com/vshulcz/zbxreporter/internal/adapters/journal/postgres"
	"github.com/vshulcz/zbxreporter/internal/adapters/journal/remote"
	"github.com/vshulcz/zbxreporter/internal/config"
	"github.com/vshulcz/zbxreporter/internal/misc"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/journal"
)

// buildJournal attaches every configured cycle sink to one subject. The
// returned reader backs the status API: Postgres when reachable, otherwise
// the in-memory ring.
func buildJournal(ctx context.Context, cfg config.ReporterConfig, logger *zap.Logger) (*journal.Subject, ports.JournalReader, func(), error) {
	mem := memory.New(cfg.JournalSize)
	subject := journal.NewSubject(mem)
	subject.SetErrorHandler(func(err error) {
		logger.Warn("journal notify failed", zap.Error(err))
	})

	var reader ports.JournalReader = mem
	closeFn := func() {}

	if cfg.JournalFile != "" {
		subject.Attach(file.New(cfg.JournalFile))
		logger.Info("journal file attached", zap.String("path", cfg.JournalFile))
	}

	if cfg.JournalURL != "" {
		c, err := remote.New(cfg.JournalURL, &http.Client{Timeout: cfg.SendTimeout}, cfg.Key)
		if err != nil {
			return nil, nil, closeFn, err
		}
		subject.Attach(c)
		logger.Info("journal endpoint attached", zap.String("url", cfg.JournalURL))
	}

	if cfg.DSN != "" {
		if db, err := openJournalDB(ctx, cfg.DSN); err != nil {
			logger.Warn("postgres journal init failed, using memory", zap.Error(err))
		} else {
			pg := pgjournal.New(db)
			subject.Attach(pg)
			reader = pg
			closeFn = func() { _ = db.Close() }
			logger.Info("postgres journal connected & migrated")
		}
	}

	return subject, reader, closeFn, nil
}

func openJournalDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	op := func() error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return pgjournal.Migrate(db)
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, pgjournal.IsRetryable, op); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
