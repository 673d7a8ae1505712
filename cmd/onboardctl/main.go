package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/config"
	"github.com/ad/go-telegram-onboarding/internal/db"
	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/services"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	driver  string
	dbPath  string
	timeout time.Duration
	json    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "onboardctl",
		Short: "Inspect and maintain onboarding progress",
		Long: `onboardctl works against the same store the bot uses.

The store is selected by STORE_DRIVER and its settings (DB_PATH, MONGODB_URL,
REDIS_ADDR, ...) from the environment or a .env file. Flags override them.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "Store driver: sqlite, mongo or redis (default from STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from DB_PATH)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show total and completed users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMachine(cmd, opts, func(ctx context.Context, machine *services.StepMachine) error {
					return runStats(ctx, cmd.OutOrStdout(), machine, opts.json)
				})
			},
		},
		&cobra.Command{
			Use:   "show <user_id>",
			Short: "Show the onboarding progress of one user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseUserID(args[0])
				if err != nil {
					return err
				}
				return withMachine(cmd, opts, func(ctx context.Context, machine *services.StepMachine) error {
					return runShow(ctx, cmd.OutOrStdout(), machine, userID, opts.json)
				})
			},
		},
		&cobra.Command{
			Use:   "reset <user_id>",
			Short: "Send a user back to step 1",
			Long: `Reset clears the completed steps, social handles and wallet address of a
user. Uploaded screenshots are kept.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseUserID(args[0])
				if err != nil {
					return err
				}
				return withMachine(cmd, opts, func(ctx context.Context, machine *services.StepMachine) error {
					return runReset(ctx, cmd.OutOrStdout(), machine, userID)
				})
			},
		},
	)

	return rootCmd
}

// withMachine opens the configured store for the duration of fn.
func withMachine(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *services.StepMachine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.driver != "" {
		cfg.StoreDriver = opts.driver
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	store, closeStore, err := db.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer closeStore()

	machine := services.NewStepMachine(store, nil, nil, services.StepMachineOptions{Channel: cfg.RequiredChannel})
	return fn(ctx, machine)
}

func runStats(ctx context.Context, out io.Writer, machine *services.StepMachine, asJSON bool) error {
	stats, err := machine.Stats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, stats)
	}
	_, err = fmt.Fprintln(out, services.FormatStats(stats))
	return err
}

func runShow(ctx context.Context, out io.Writer, machine *services.StepMachine, userID int64, asJSON bool) error {
	progress, err := machine.Load(ctx, userID)
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("user %d has not started onboarding", userID)
	}
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, progress)
	}
	_, err = fmt.Fprintln(out, services.FormatProgressReport(progress, time.Now()))
	return err
}

func runReset(ctx context.Context, out io.Writer, machine *services.StepMachine, userID int64) error {
	progress, err := machine.Load(ctx, userID)
	if err == nil {
		_, err = machine.HandleButton(ctx, progress, fsm.ActionReset)
	}
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("user %d has not started onboarding", userID)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Progress of user %d has been reset\n", userID)
	return err
}

func parseUserID(arg string) (int64, error) {
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return userID, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
