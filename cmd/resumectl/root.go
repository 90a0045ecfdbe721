package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fadilmartias/resume-insight/internal/bootstrap"
	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "resumectl",
		Short:         "Resume analysis from the command line",
		Long:          "resumectl extracts resume text, runs the analysis agents and queries the search backends using the same configuration as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newExtractCmd(opts), newAnalyzeCmd(opts), newSearchCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *zap.Logger {
	return logger.New(o.logLevel, "console")
}

// upstream builds the rate-limited clients shared by analyze and search.
type upstream struct {
	dispatcher *dispatcher.Dispatcher
	policy     dispatcher.RetryPolicy
	search     *service.SearchService
	closeCache func() error
}

func newUpstream(ctx context.Context, log *zap.Logger) *upstream {
	d, policy := bootstrap.NewDispatcher(config.LoadDispatcherConfig(), log)
	cache, closeCache := bootstrap.NewCache(ctx, config.LoadRedisConfig(), log)
	return &upstream{
		dispatcher: d,
		policy:     policy,
		search:     service.NewSearchService(config.LoadSearchConfig(), cache, d, policy, log),
		closeCache: closeCache,
	}
}

func (u *upstream) Close() {
	u.dispatcher.Close()
	_ = u.closeCache()
}

func readResume(ctx context.Context, ex *extract.Extractor, path string) (*extract.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ex.Text(ctx, filepath.Base(path), "", data)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
