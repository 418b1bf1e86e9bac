package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinoledger/internal/money"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// txFlags are shared by every mutating command.
type txFlags struct {
	TransactionID string
	Reason        string
	Game          string
	Description   string
}

func (f *txFlags) bind(cmd *cobra.Command, withReason bool) {
	cmd.Flags().StringVar(&f.TransactionID, "tx", "", "idempotency key (generated when empty)")
	cmd.Flags().StringVar(&f.Description, "desc", "", "free-form description")
	if withReason {
		cmd.Flags().StringVar(&f.Reason, "reason", "", "bet|win|refund|jackpot|deposit|withdraw")
		cmd.Flags().StringVar(&f.Game, "game", "", "game tag")
	}
}

func parseAccount(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: account %q: %w", ledger.ErrInvalidRequest, s, err)
	}
	return id, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ledger.ErrInvalidRequest, err)
}

func newBalanceCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account's balance and version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				snap, err := l.Snapshot(ctx, id)
				if err != nil {
					return err
				}
				return p.Snapshot(snap)
			})
		},
	}
}

func newMutateCommand(r *runner, op string) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   op + " <account> <amount>",
		Short: fmt.Sprintf("Apply a %s to an account", op),
		Example: fmt.Sprintf("  ledgerctl %s 5b7c...e1 12.50 --tx round-42 --reason %s --game slots",
			op, map[string]string{"credit": "win", "debit": "bet"}[op]),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			reason, err := accounts.ParseReason(flags.Reason)
			if err != nil {
				return invalid(err)
			}

			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				amount, err := money.ParsePositive(args[1], p.decimals)
				if err != nil {
					return invalid(err)
				}

				req := ledger.Request{
					AccountID:     id,
					Amount:        amount,
					TransactionID: flags.TransactionID,
					Reason:        reason,
					Game:          flags.Game,
					Description:   flags.Description,
				}

				apply := l.Credit
				if op == "debit" {
					apply = l.Debit
				}

				res, err := apply(ctx, req)
				if err != nil {
					return err
				}
				return p.Result(res)
			})
		},
	}

	flags.bind(cmd, true)
	return cmd
}

func newSetCommand(r *runner) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "set <account> <balance>",
		Short: "Overwrite a balance with an administrative adjustment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccount(args[0])
			if err != nil {
				return err
			}

			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				balance, err := money.Parse(args[1], p.decimals)
				if err != nil {
					return invalid(err)
				}

				res, err := l.SetBalance(ctx, ledger.SetBalanceRequest{
					AccountID:     id,
					Balance:       balance,
					TransactionID: flags.TransactionID,
					Description:   flags.Description,
				})
				if err != nil {
					return err
				}
				return p.Result(res)
			})
		},
	}

	flags.bind(cmd, false)
	return cmd
}

func newTransferCommand(r *runner) *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move money between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseAccount(args[0])
			if err != nil {
				return err
			}
			to, err := parseAccount(args[1])
			if err != nil {
				return err
			}
			reason, err := accounts.ParseReason(flags.Reason)
			if err != nil {
				return invalid(err)
			}

			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				amount, err := money.ParsePositive(args[2], p.decimals)
				if err != nil {
					return invalid(err)
				}

				res, err := l.Transfer(ctx, ledger.TransferRequest{
					From:          from,
					To:            to,
					Amount:        amount,
					TransactionID: flags.TransactionID,
					Reason:        reason,
					Game:          flags.Game,
					Description:   flags.Description,
				})
				if err != nil {
					return err
				}
				return p.Transfer(res)
			})
		},
	}

	flags.bind(cmd, true)
	return cmd
}

func newHistoryCommand(r *runner) *cobra.Command {
	var (
		limit int
		game  string
	)

	cmd := &cobra.Command{
		Use:   "history [account]",
		Short: "List transactions of an account or a game, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (game == "") {
				return invalid(errors.New("give either an account or --game"))
			}

			var id uuid.UUID
			if len(args) == 1 {
				var err error
				id, err = parseAccount(args[0])
				if err != nil {
					return err
				}
			}

			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				var (
					recs []accounts.Record
					err  error
				)
				if game != "" {
					recs, err = l.HistoryByGame(ctx, game, limit)
				} else {
					recs, err = l.History(ctx, id, limit)
				}
				if err != nil {
					return err
				}
				return p.Records(recs)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	cmd.Flags().StringVar(&game, "game", "", "list a game's transactions instead")
	return cmd
}

func newTopCommand(r *runner) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the accounts with the highest balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				top, err := l.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				return p.Leaderboard(top)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of accounts")
	return cmd
}

func newPruneCommand(r *runner) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete transaction records older than a cutoff",
		Long: `Delete transaction records older than --older-than.

Pruned transaction ids can no longer be replayed: a retry with the same
id after pruning is applied as a new transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return invalid(errors.New("--older-than must be positive"))
			}

			return r.run(cmd, func(ctx context.Context, l Ledger, p *printer) error {
				cutoff := time.Now().Add(-olderThan)
				n, err := l.PruneBefore(ctx, cutoff)
				if err != nil {
					return err
				}
				return p.Pruned(n, cutoff)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of the records to delete, e.g. 720h")
	return cmd
}
