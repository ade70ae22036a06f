package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opendatalabcz/emissions-etl/internal/catalog"
	"github.com/opendatalabcz/emissions-etl/internal/config"
	"github.com/opendatalabcz/emissions-etl/internal/dataset"
	"github.com/opendatalabcz/emissions-etl/internal/fetch"
	"github.com/opendatalabcz/emissions-etl/internal/parser"
	"github.com/opendatalabcz/emissions-etl/internal/pipeline"
	"github.com/opendatalabcz/emissions-etl/internal/progress"
	"github.com/opendatalabcz/emissions-etl/internal/storage"
	"github.com/opendatalabcz/emissions-etl/internal/tabular"
)

func init() {
	rootCmd.AddCommand(
		stageCommand("run", "Discover, download, extract, and parse",
			func(ctx context.Context, p *pipeline.Pipeline) error { return p.Run(ctx) }),
		stageCommand("download", "Download discovered datasets into the gz stage",
			func(ctx context.Context, p *pipeline.Pipeline) error {
				datasets, err := p.Discover(ctx)
				if err != nil {
					return err
				}
				return p.Download(ctx, datasets)
			}),
		stageCommand("extract", "Extract staged .gz datasets into raw XML",
			func(ctx context.Context, p *pipeline.Pipeline) error { return p.Extract(ctx) }),
		stageCommand("parse", "Parse staged XML documents into parquet tables",
			func(ctx context.Context, p *pipeline.Pipeline) error { return p.Parse(ctx) }),
	)
}

// stageCommand builds a subcommand running one stage (or the whole run) for
// every selected family in turn.
func stageCommand(use, short string, stage func(context.Context, *pipeline.Pipeline) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flush, err := setupMetrics(cfg)
			if err != nil {
				return err
			}
			defer flush()

			ctx := cmd.Context()
			pipes, cleanup, err := buildPipelines(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, p := range pipes {
				if err := stage(ctx, p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// buildPipelines constructs one pipeline per selected family. Each family
// stages its documents under its own subdirectory of the data dir, since
// dataset names differ per family but share the stage layout.
func buildPipelines(ctx context.Context, cfg config.Config) ([]*pipeline.Pipeline, func(), error) {
	since, err := cfg.SinceDate()
	if err != nil {
		return nil, nil, err
	}
	until, err := cfg.UntilDate()
	if err != nil {
		return nil, nil, err
	}
	opts := pipeline.Options{
		DownloadWorkers: cfg.DownloadWorkers,
		ExtractWorkers:  cfg.ExtractWorkers,
		ParseWorkers:    cfg.ParseWorkers,
		DeleteGz:        cfg.DeleteGz,
		DeleteXML:       cfg.DeleteXML,
		RequireInput:    cfg.RequireInput,
		Since:           since,
		Until:           until,
	}

	prog := progress.New(os.Stdout, cfg.Level())
	prog.Legend()
	cat := catalog.NewClient("", 0)
	dl := fetch.NewClient(fetch.Config{
		MaxAttempts: cfg.MaxAttempts,
		OnRetry:     prog.Attempt,
	})

	var pipes []*pipeline.Pipeline
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, fam := range cfg.Families() {
		family := parser.Family(fam)
		series := catalog.SeriesInspections
		if family == parser.FamilyMeasurements {
			series = catalog.SeriesMeasurements
		}
		layout := dataset.Layout{Root: filepath.Join(cfg.DataDir, fam)}
		writer := tabular.NewWriter(layout.ParquetDir())

		var sink storage.Sink
		if cfg.DBDriver != "" && family == parser.FamilyInspections {
			sink, err = storage.New(ctx, storage.Config{
				Driver:     cfg.DBDriver,
				DSN:        cfg.DBDSN,
				AutoCreate: cfg.DBAutoCreate,
			})
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = sink.Close() })
		}

		p := pipeline.New(family, series, layout, cat, dl, writer, sink, prog, opts)
		if sink != nil && cfg.DBAutoCreate {
			if err := p.EnsureSinkTables(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("cli: ensure sink tables: %w", err)
			}
		}
		pipes = append(pipes, p)
	}
	return pipes, cleanup, nil
}
