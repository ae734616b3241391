package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"garderie-cloud/internal/audit"
	"garderie-cloud/internal/releve/application"
	releverepo "garderie-cloud/internal/releve/infrastructure/postgres"
	"garderie-cloud/internal/releve/xmlgen"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Set at build time via ldflags.
var version = "dev"

var (
	cfgPath      string
	schoolYearID string
	taxYear      int
	dryRun       bool
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rl24ctl",
		Short: "RL-24 batch transmission control",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the provider YAML config (defaults to RL24_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Report what a batch run would do without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService()
			if err != nil {
				return err
			}
			defer db.Close()
			preview, err := svc.Preview(cmd.Context(), schoolYearID, taxYear)
			if err != nil {
				return err
			}
			return printJSON(preview)
		},
	}
	addRunFlags(previewCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run the annual batch: generate, validate, and record slips",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService()
			if err != nil {
				return err
			}
			defer db.Close()
			opts := application.Options{DryRun: dryRun, Verbose: verbose}
			result, err := svc.ProcessBatch(cmd.Context(), schoolYearID, taxYear, "rl24ctl", opts)
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
	addRunFlags(processCmd)
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without writing files or rows")

	regenerateCmd := &cobra.Command{
		Use:   "regenerate <transmission-id>",
		Short: "Re-serialize an existing transmission's XML artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := buildService()
			if err != nil {
				return err
			}
			defer db.Close()
			result, err := svc.RegenerateXML(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rl24ctl %s (%s)\n", version, runtime.Version())
		},
	}

	rootCmd.AddCommand(previewCmd, processCmd, regenerateCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&schoolYearID, "school-year", "", "school year identifier")
	cmd.Flags().IntVar(&taxYear, "tax-year", 0, "tax year to process")
	_ = cmd.MarkFlagRequired("school-year")
	_ = cmd.MarkFlagRequired("tax-year")
}

func buildService() (*application.BatchService, *sql.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL or PG_DSN is required")
	}

	cfg, err := application.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	logOut := io.Discard
	if verbose {
		logOut = os.Stderr
	}
	logger := log.New(logOut, "", log.LstdFlags)

	transmissionRepo := releverepo.NewTransmissionRepository(db)
	allocator, err := application.NewSequenceAllocator(releverepo.NewSequenceRepository(db), cfg.OutputRoot)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	svc, err := application.NewBatchService(
		cfg,
		transmissionRepo,
		releverepo.NewEligibilityRepository(db),
		allocator,
		xmlgen.NewGenerator(),
		xmlgen.NewValidator(),
		nil,
		audit.NewRecorder(db),
		logger,
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return svc, db, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
