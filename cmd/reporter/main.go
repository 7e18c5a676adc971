// Command reporter samples runtime and host metrics into a registry and ships
// them to a Zabbix trapper on a fixed interval.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/zbxreporter/internal/config"
	"github.com/vshulcz/zbxreporter/pkg/buildinfo"
)

// Set with -ldflags "-X main.buildVersion=...".
var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	build := buildinfo.New(buildVersion, buildDate, buildCommit)
	build.Print(os.Stdout)

	cfg, err := config.LoadReporterConfig(os.Args[1:], nil)
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.Stringer("build", build))
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reporter stopped", zap.Error(err))
	}
}
