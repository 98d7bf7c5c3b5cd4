package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/config"
)

type initOptions struct {
	name        string
	schoolID    string
	year        string
	template    string
	driver      string
	databaseURL string
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new school ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "school name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.schoolID, "school-id", "", "school identifier (default: derived from name)")
	cmd.Flags().StringVar(&opts.year, "year", "", "active academic year, e.g. 2025-2026 (default: current)")
	cmd.Flags().StringVar(&opts.template, "template", "school", "chart template: school or minimal")
	cmd.Flags().StringVar(&opts.driver, "storage", config.DriverJSON, "storage driver: json, sqlite or postgres")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "postgres connection string")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir string, opts initOptions) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("creating directory logs: %w", err)
	}

	schoolID := opts.schoolID
	if schoolID == "" {
		schoolID = slug(opts.name)
	}
	year := opts.year
	if year == "" {
		year = academicYear(time.Now())
	}

	// Write schoolledger.yaml.
	cfg := config.Default(opts.name, schoolID, year)
	cfg.School.ChartTemplate = opts.template
	cfg.Storage.Driver = opts.driver
	switch opts.driver {
	case config.DriverSQLite:
		cfg.Storage.Path = "ledger.db"
	case config.DriverPostgres:
		cfg.Storage.Path = ""
		cfg.Storage.DatabaseURL = opts.databaseURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write .gitignore.
	gitignore := ".env\nledger.db-wal\nledger.db-shm\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Seed the chart of accounts.
	a, err := openApp(ctx, dir, "init")
	if err != nil {
		return err
	}
	defer a.Close()

	chart := accounts.DefaultChart(opts.template)
	if err := a.ledger.Seed(ctx, chart); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	a.snapshot(out, "init: Initialize "+opts.name)
	fmt.Fprintf(out, "Initialized %s (%s, %s) at %s with %d accounts\n", opts.name, schoolID, year, dir, len(chart))
	return nil
}

// slug lowercases s and joins its letter and digit runs with dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// academicYear names the September-to-August year containing t.
func academicYear(t time.Time) string {
	y := t.Year()
	if t.Month() < time.September {
		y--
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}
