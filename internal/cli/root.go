// Package cli implements the ledgerctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/fastprodman/casinoledger/internal/app"
	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/infra/logging"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/fastprodman/casinoledger/pkg/envconf"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Ledger is the engine surface the commands drive.
type Ledger interface {
	Snapshot(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error)
	Credit(ctx context.Context, req ledger.Request) (ledger.Result, error)
	Debit(ctx context.Context, req ledger.Request) (ledger.Result, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
	SetBalance(ctx context.Context, req ledger.SetBalanceRequest) (ledger.Result, error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]accounts.Record, error)
	HistoryByGame(ctx context.Context, game string, limit int) ([]accounts.Record, error)
	Leaderboard(ctx context.Context, limit int) ([]accounts.Snapshot, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Opener connects to a ledger. The returned func releases it.
type Opener func(ctx context.Context, opts *RootOptions) (Ledger, int32, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	EnvFile string
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the ledgerctl root command backed by the
// configured store and bus.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromEnv)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and adjust account balances",
		Long: `ledgerctl talks to the ledger store directly, with the same
idempotency, locking and retry rules as the API.

Configuration comes from the environment (LEDGER_STORE, PG_DSN,
SQLITE_PATH, BUS_DRIVER, ...) and an optional dotenv file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall command timeout")

	r := &runner{opts: opts, open: open}

	cmd.AddCommand(newBalanceCommand(r))
	cmd.AddCommand(newMutateCommand(r, "credit"))
	cmd.AddCommand(newMutateCommand(r, "debit"))
	cmd.AddCommand(newSetCommand(r))
	cmd.AddCommand(newTransferCommand(r))
	cmd.AddCommand(newHistoryCommand(r))
	cmd.AddCommand(newTopCommand(r))
	cmd.AddCommand(newPruneCommand(r))

	return cmd
}

// runner opens the ledger around one command.
type runner struct {
	opts *RootOptions
	open Opener
}

func (r *runner) run(cmd *cobra.Command, fn func(ctx context.Context, l Ledger, p *printer) error) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), r.opts.Timeout)
	defer cancel()

	l, decimals, release, err := r.open(ctx, r.opts)
	if err != nil {
		return err
	}
	defer func() {
		cerr := release()
		if err == nil {
			err = cerr
		}
	}()

	return fn(ctx, l, &printer{out: cmd.OutOrStdout(), json: r.opts.Format == "json", decimals: decimals})
}

func openFromEnv(ctx context.Context, opts *RootOptions) (Ledger, int32, func() error, error) {
	cfg := new(config.Config)

	err := envconf.Load(cfg, opts.EnvFile)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("load config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSON(os.Stderr, cfg.LogLevel)

	a, err := app.New(ctx, *cfg, logger, nil)
	if err != nil {
		return nil, 0, nil, err
	}

	release := func() error {
		// ledgerctl never runs the sync loop; push queued events to peers
		// before closing the bus.
		a.Ledger.FlushEvents()
		return a.Close()
	}

	return a.Ledger, cfg.CurrencyDecimals, release, nil
}

// Execute runs the root command and maps errors to an exit code.
func Execute(ctx context.Context, stderr io.Writer) int {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

// exitCode lets scripts tell business refusals from faults.
func exitCode(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindNone:
		return 0
	case ledger.KindInsufficientFunds, ledger.KindIdempotencyMismatch:
		return 3
	case ledger.KindInvalid, ledger.KindNotFound:
		return 2
	default:
		return 1
	}
}
