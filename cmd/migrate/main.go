package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bucketstream/config"
	"bucketstream/internal/repository"
	"bucketstream/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the relay's postgres schema",
	Long: `migrate creates and inspects the tables the relay stores events in.

It reads DATABASE_URL from the environment or a .env file.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the s3_events and file_contents tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := repository.InitSchema(ctx, pool); err != nil {
				return err
			}
			fmt.Println("Schema is up to date")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database connectivity and table status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			fmt.Println("Database connection: OK")

			tables, err := repository.SchemaStatus(ctx, pool)
			if err != nil {
				return err
			}
			for _, t := range tables {
				if t.Exists {
					fmt.Printf("  %-15s exists (%d rows)\n", t.Name, t.Rows)
				} else {
					fmt.Printf("  %-15s missing\n", t.Name)
				}
			}

			s := database.PoolStats(pool)
			fmt.Printf("Pool: %d/%d connections (%d idle)\n", s.TotalConns, s.MaxConns, s.IdleConns)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all relay tables and recreate them (destroys data)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("reset destroys every stored event; pass --yes to confirm")
		}
		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := repository.DropSchema(ctx, pool); err != nil {
				return err
			}
			if err := repository.InitSchema(ctx, pool); err != nil {
				return err
			}
			fmt.Println("Schema reset")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Overall timeout for the command")
	resetCmd.Flags().Bool("yes", false, "Confirm destructive reset")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout, _ := rootCmd.PersistentFlags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool)
}
