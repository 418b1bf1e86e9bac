package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fastprodman/casinoledger/internal/money"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
)

type printer struct {
	out      io.Writer
	json     bool
	decimals int32
}

func (p *printer) amount(v int64) string {
	return money.Format(v, p.decimals)
}

func (p *printer) emit(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type snapshotView struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	Version   int64  `json:"version"`
}

func (p *printer) snapshot(s accounts.Snapshot) snapshotView {
	return snapshotView{AccountID: s.AccountID.String(), Balance: p.amount(s.Balance), Version: s.Version}
}

type resultView struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Delta         string `json:"delta"`
	Balance       string `json:"balance"`
	Version       int64  `json:"version"`
	Replayed      bool   `json:"replayed"`
}

func (p *printer) resultView(r ledger.Result) resultView {
	return resultView{
		TransactionID: r.TransactionID,
		AccountID:     r.AccountID.String(),
		Delta:         p.amount(r.Delta),
		Balance:       p.amount(r.Balance),
		Version:       r.Version,
		Replayed:      r.Replayed,
	}
}

func (p *printer) Snapshot(s accounts.Snapshot) error {
	if p.json {
		return p.emit(p.snapshot(s))
	}
	_, err := fmt.Fprintf(p.out, "%s balance=%s version=%d\n", s.AccountID, p.amount(s.Balance), s.Version)
	return err
}

func (p *printer) Result(r ledger.Result) error {
	if p.json {
		return p.emit(p.resultView(r))
	}

	suffix := ""
	if r.Replayed {
		suffix = " (replayed)"
	}
	_, err := fmt.Fprintf(p.out, "%s %s balance=%s version=%d%s\n",
		r.TransactionID, r.AccountID, p.amount(r.Balance), r.Version, suffix)
	return err
}

func (p *printer) Transfer(r ledger.TransferResult) error {
	if p.json {
		return p.emit(struct {
			TransactionID string     `json:"transaction_id"`
			From          resultView `json:"from"`
			To            resultView `json:"to"`
			Replayed      bool       `json:"replayed"`
		}{r.TransactionID, p.resultView(r.From), p.resultView(r.To), r.Replayed})
	}

	suffix := ""
	if r.Replayed {
		suffix = " (replayed)"
	}
	_, err := fmt.Fprintf(p.out, "%s %s -> %s from_balance=%s to_balance=%s%s\n",
		r.TransactionID, r.From.AccountID, r.To.AccountID,
		p.amount(r.From.Balance), p.amount(r.To.Balance), suffix)
	return err
}

func (p *printer) Records(recs []accounts.Record) error {
	if p.json {
		type recordView struct {
			TransactionID string    `json:"transaction_id"`
			AccountID     string    `json:"account_id"`
			Delta         string    `json:"delta"`
			Kind          string    `json:"kind"`
			Reason        string    `json:"reason,omitempty"`
			Game          string    `json:"game,omitempty"`
			BalanceAfter  string    `json:"balance_after"`
			VersionAfter  int64     `json:"version_after"`
			CreatedAt     time.Time `json:"created_at"`
		}
		views := make([]recordView, 0, len(recs))
		for _, r := range recs {
			views = append(views, recordView{
				TransactionID: r.TransactionID,
				AccountID:     r.AccountID.String(),
				Delta:         p.amount(r.Delta),
				Kind:          string(r.Kind),
				Reason:        string(r.Reason),
				Game:          r.Game,
				BalanceAfter:  p.amount(r.BalanceAfter),
				VersionAfter:  r.VersionAfter,
				CreatedAt:     r.CreatedAt,
			})
		}
		return p.emit(views)
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTRANSACTION\tACCOUNT\tKIND\tDELTA\tBALANCE\tVERSION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.CreatedAt.UTC().Format(time.RFC3339), r.TransactionID, r.AccountID,
			r.Kind, p.amount(r.Delta), p.amount(r.BalanceAfter), r.VersionAfter)
	}
	return tw.Flush()
}

func (p *printer) Leaderboard(top []accounts.Snapshot) error {
	if p.json {
		views := make([]snapshotView, 0, len(top))
		for _, s := range top {
			views = append(views, p.snapshot(s))
		}
		return p.emit(views)
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tACCOUNT\tBALANCE")
	for i, s := range top {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, s.AccountID, p.amount(s.Balance))
	}
	return tw.Flush()
}

func (p *printer) Pruned(n int64, cutoff time.Time) error {
	if p.json {
		return p.emit(map[string]any{"pruned": n, "cutoff": cutoff})
	}
	_, err := fmt.Fprintf(p.out, "pruned %d records older than %s\n", n, cutoff.UTC().Format(time.RFC3339))
	return err
}
