package cli

import (
	"context"
	"errors"
	"io"
	"text/tabwriter"

	"leadmarket/internal/money"
	"leadmarket/internal/store"

	"github.com/spf13/cobra"
)

var errDrift = errors.New("balance drift detected")

type driftSource interface {
	Reconcile(ctx context.Context) ([]store.BalanceDrift, error)
}

func printDrift(cmd *cobra.Command, e *env) error {
	return reportDrift(cmd.Context(), cmd.OutOrStdout(), store.NewContractorStore(e.database))
}

// reportDrift prints one row per drifting account and fails when any exist,
// so the command can gate a cron job.
func reportDrift(ctx context.Context, out io.Writer, source driftSource) error {
	all, err := source.Reconcile(ctx)
	if err != nil {
		return err
	}
	rows := make([]store.BalanceDrift, 0, len(all))
	for _, row := range all {
		if row.Difference != 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		printf(out, "all balances match their ledgers\n")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	printf(w, "CONTRACTOR\tSTORED\tLEDGER\tDIFFERENCE\n")
	for _, row := range rows {
		printf(w, "%s\t%s\t%s\t%s\n", row.ContractorID, money.FormatMinor(row.StoredBalance), money.FormatMinor(row.LedgerSum), money.FormatMinor(row.Difference))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return errDrift
}
