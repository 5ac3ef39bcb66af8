// Package main provides the translation worker entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/queue"
	"github.com/traduceo/translation-engine/internal/storage"
)

var (
	// Global flags
	cfgFile string

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "translation-worker",
	Short: "Translation worker for processing PDF translation jobs",
	Long: `Translation worker executes the translation pipeline for queued jobs.

Use this tool to:
- Run a single job to completion with 'run --job <id>'
- Consume jobs from the queue with 'consume'
- Bootstrap the database schema with 'migrate'`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "translation-worker",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConsumeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single translation job to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID == "" {
				return fmt.Errorf("--job is required")
			}

			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, logger, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			logger.Info().Str("job_id", jobID).Msg("Running translation job")
			if err := rt.pipeline.Run(ctx, jobID); err != nil {
				return fmt.Errorf("run job %s: %w", jobID, err)
			}

			job, err := rt.repos.Jobs.GetByID(ctx, jobID)
			if err != nil {
				return fmt.Errorf("load job %s: %w", jobID, err)
			}
			fmt.Printf("Job %s finished with status %s (%d%%)\n", job.ID, job.Status, job.Progress)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "ID of the job to run")
	return cmd
}

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume translation jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Queue.URL == "" {
				return fmt.Errorf("queue URL is not configured")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := buildRuntime(ctx, logger, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			consumer, err := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Queue, rt.pipeline, logger)
			if err != nil {
				return fmt.Errorf("connect queue: %w", err)
			}
			defer consumer.Close()

			logger.Info().Str("queue", cfg.Queue.Queue).Msg("Waiting for translation jobs")
			return consumer.Start(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bootstrap the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := storage.OpenOptions{MaxOpenConns: 1}
			db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN(), opts)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := storage.Bootstrap(ctx, db); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}

			fmt.Printf("Schema ready on %s\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("translation-worker v0.1.0")
		},
	}
}
