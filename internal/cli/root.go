// Package cli wires the stketl command tree. Flags are bound to viper with
// the STKETL_ environment prefix, so every option can come from the command
// line, the environment, or an optional config file; the resolved
// config.Config is handed to the library packages, which never read flags
// themselves.
package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/opendatalabcz/emissions-etl/internal/config"
	"github.com/opendatalabcz/emissions-etl/internal/metrics"
	"github.com/opendatalabcz/emissions-etl/internal/metrics/prompush"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stketl",
	Short: "Batch pipeline for Czech vehicle inspection and emission open data",
	Long: `stketl converts the per-day XML datasets published by the national
open-data portal (vehicle inspection protocols and instrument emission
measurements) into partitioned parquet tables, resumably and in parallel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to a TOML/YAML config file")
	pf.String("data-dir", "data", "root directory for staged and output data")
	pf.String("family", config.FamilyAll, "document family: inspections|measurements|all")
	pf.String("since", config.DefaultSince, "lower discovery bound, DD-MM-YYYY")
	pf.String("until", "", "upper discovery bound, DD-MM-YYYY (empty = unbounded)")
	pf.Int("download-workers", config.DefaultDownloadWorkers, "parallel downloads")
	pf.Int("extract-workers", config.DefaultExtractWorkers, "parallel extractions")
	pf.Int("parse-workers", config.DefaultParseWorkers, "parallel document parsers")
	pf.Int("max-attempts", config.DefaultMaxAttempts, "download attempts per dataset")
	pf.Bool("delete-gz", false, "delete each .gz after successful extraction")
	pf.Bool("delete-xml", false, "delete each .xml after its artifacts are written")
	pf.Bool("require-input", false, "fail with an error when no documents are found")
	pf.Int("verbosity", 1, "console narration: 0 silent, 1 progress, 2 trace")
	pf.String("db-driver", "", "optional relational sink: postgres|sqlite")
	pf.String("db-dsn", "", "sink connection string")
	pf.Bool("db-auto-create", false, "create sink tables on start")
	pf.String("metrics-backend", "", "metrics backend: prompush")
	pf.String("push-url", "", "Prometheus Pushgateway base URL")
	bindFlags(pf)

	viper.SetEnvPrefix("STKETL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// bindFlags registers every flag under its own name in viper.
func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(fmt.Sprintf("cli: bind flag %q: %v", f.Name, err))
		}
	})
}

// loadConfig resolves the effective configuration from file, environment,
// and flags, and validates it.
func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("cli: read config %q: %w", cfgFile, err)
		}
	}
	cfg := config.Config{
		DataDir:         viper.GetString("data-dir"),
		Family:          viper.GetString("family"),
		Since:           viper.GetString("since"),
		Until:           viper.GetString("until"),
		DownloadWorkers: viper.GetInt("download-workers"),
		ExtractWorkers:  viper.GetInt("extract-workers"),
		ParseWorkers:    viper.GetInt("parse-workers"),
		MaxAttempts:     viper.GetInt("max-attempts"),
		DeleteGz:        viper.GetBool("delete-gz"),
		DeleteXML:       viper.GetBool("delete-xml"),
		RequireInput:    viper.GetBool("require-input"),
		Verbosity:       viper.GetInt("verbosity"),
		DBDriver:        viper.GetString("db-driver"),
		DBDSN:           viper.GetString("db-dsn"),
		DBAutoCreate:    viper.GetBool("db-auto-create"),
		MetricsBackend:  viper.GetString("metrics-backend"),
		PushURL:         viper.GetString("push-url"),
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setupMetrics installs the configured metrics backend and returns a flush
// function to call once the run is over.
func setupMetrics(cfg config.Config) (func(), error) {
	if cfg.MetricsBackend != "prompush" {
		return func() {}, nil
	}
	b, err := prompush.NewBackend("stketl", cfg.PushURL)
	if err != nil {
		return nil, err
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("cli: flush metrics: %v", err)
		}
	}, nil
}
