package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/vshulcz/zbxreporter/internal/adapters/collector/runtime"
	"github.com/vshulcz/zbxreporter/internal/adapters/http/ginserver"
	"github.com/vshulcz/zbxreporter/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/zbxreporter/internal/adapters/registry/gometrics"
	"github.com/vshulcz/zbxreporter/internal/adapters/sender/zabbix"
	"github.com/vshulcz/zbxreporter/internal/config"
	"github.com/vshulcz/zbxreporter/internal/ports"
	"github.com/vshulcz/zbxreporter/internal/services/lld"
	"github.com/vshulcz/zbxreporter/internal/services/reporter"
)

const shutdownTimeout = 5 * time.Second

func run(ctx context.Context, cfg config.ReporterConfig, logger *zap.Logger) error {
	reg := metrics.NewRegistry()
	collector := runtime.New(reg)
	if err := collector.Start(ctx, cfg.PollInterval); err != nil {
		return err
	}
	defer collector.Stop()

	sender, err := zabbix.New(cfg.ZabbixAddress, zabbix.WithTimeout(cfg.SendTimeout))
	if err != nil {
		return err
	}

	var discovery ports.DiscoveryGenerator
	if cfg.LLDEnabled {
		discovery = lld.New(cfg.LLDMacro, cfg.LLDRuleKey)
	}

	subject, reader, closeJournal, err := buildJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	rep, err := reporter.New(reporter.Config{
		Host:         cfg.Host,
		Prefix:       cfg.Prefix,
		Suffix:       cfg.Suffix,
		RateUnit:     cfg.RateUnit,
		DurationUnit: cfg.DurationUnit,
		Timestamps:   cfg.Timestamps,
		Discovery:    discovery,
	}, gometrics.New(reg, cfg.Filter), sender,
		reporter.WithLogger(logger),
		reporter.WithJournal(subject),
	)
	if err != nil {
		return err
	}
	defer rep.Close()

	if cfg.StatusAddress != "" {
		var state ports.DiscoveryState
		if cfg.LLDEnabled {
			state = rep
		}
		srv := newStatusServer(cfg, reader, state, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	logger.Info("reporter started",
		zap.String("zabbix", sender.Addr()),
		zap.String("host", cfg.Host),
		zap.Duration("report", cfg.ReportInterval),
		zap.Duration("poll", cfg.PollInterval),
		zap.Bool("lld", cfg.LLDEnabled),
		zap.String("status", cfg.StatusAddress),
	)
	return rep.Run(ctx, cfg.ReportInterval)
}

func newStatusServer(cfg config.ReporterConfig, reader ports.JournalReader, state ports.DiscoveryState, logger *zap.Logger) *http.Server {
	h := ginserver.NewHandler(cfg.Host, reader, state)
	r := ginserver.NewRouter(h,
		middlewares.ZapLogger(logger),
		middlewares.GzipResponse(),
		middlewares.SignResponse(cfg.Key),
	)
	return &http.Server{
		Addr:              cfg.StatusAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
