package main

import (
	"context"
	"fmt"
	"iter"

	"github.com/joho/godotenv"
	"github.com/siherrmann/controlrag"
	"github.com/siherrmann/controlrag/config"
	"github.com/siherrmann/controlrag/helper"
	"github.com/siherrmann/controlrag/model"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	cfg        *config.Config
)

// app is the part of controlrag.ControlRag the commands use.
type app interface {
	Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error)
	QueryStream(ctx context.Context, req model.QueryRequest) (iter.Seq2[model.StreamEvent, error], error)
	CheckHealth(ctx context.Context) error
	IngestControls(ctx context.Context, controls []model.Control) (int, error)
	Close() error
}

type appOptions struct {
	embedder  bool
	generator bool
}

// openApp is replaced in tests.
var openApp = func(ctx context.Context, cfg *config.Config, opts appOptions) (app, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}

	c, err := controlrag.NewControlRag(ctx, dbConfig, cfg)
	if err != nil {
		return nil, err
	}
	if opts.embedder {
		if err := c.UseDefaultEmbedder(); err != nil {
			c.Close()
			return nil, err
		}
	}
	if opts.generator {
		if err := c.UseBedrockGenerator(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:   "controlrag",
	Short: "Answer questions about NIST SP 800-53 security controls",
	Long: `controlrag answers questions about security controls with
retrieval-augmented generation over a postgres/pgvector corpus.

The database connection is read from DB_HOST, DB_PORT, DB_DATABASE,
DB_USERNAME, DB_PASSWORD, DB_SCHEMA and DB_SSLMODE. Settings can be
overridden with CONTROLRAG_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading env file: %w", err)
			}
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to an env file to load before reading the environment")
}

func withApp(cmd *cobra.Command, opts appOptions, run func(a app) error) error {
	a, err := openApp(cmd.Context(), cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(a)
}
