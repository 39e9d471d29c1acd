package cli

import (
	"errors"
	"log/slog"

	"leadmarket/internal/money"
	"leadmarket/internal/services"

	"github.com/spf13/cobra"
)

func newRefundCommand(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "refund <purchase-id>",
		Short: "Refund a lead purchase and reopen its job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, logger(cmd))
			if err != nil {
				return err
			}
			defer e.Close()
			_, marketplace, err := e.services()
			if err != nil {
				return err
			}
			result, err := marketplace.RefundLead(ctx, operator, args[0], reason)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "refunded %s to %s for job %s, balance %s\n",
				money.FormatMinor(result.RefundedAmount), result.ContractorID, result.JobID, money.FormatMinor(result.Balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the purchase")
	return cmd
}

func newAdjustCommand(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust <contractor-id> <amount>",
		Short: "Apply a signed manual balance correction, e.g. -2.50",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := money.ParseMinor(args[1])
			if err != nil {
				return err
			}
			if delta == 0 {
				return services.ErrInvalidAmount
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, logger(cmd))
			if err != nil {
				return err
			}
			defer e.Close()
			credits, _, err := e.services()
			if err != nil {
				return err
			}
			balance, err := credits.Adjust(ctx, operator, services.AdjustRequest{
				ContractorID: args[0],
				Delta:        delta,
				Reason:       reason,
			})
			var insufficient *services.InsufficientFundsError
			if errors.As(err, &insufficient) {
				return errors.New("adjustment would take the balance below zero (balance " + money.FormatMinor(insufficient.Balance) + ")")
			}
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "balance of %s is now %s\n", args[0], money.FormatMinor(balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the ledger")
	return cmd
}

func newTopUpCommand(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		reference   string
		description string
	)
	cmd := &cobra.Command{
		Use:   "top-up <contractor-id> <amount>",
		Short: "Credit a contractor, idempotent per --reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.ParseMinor(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, logger(cmd))
			if err != nil {
				return err
			}
			defer e.Close()
			credits, _, err := e.services()
			if err != nil {
				return err
			}
			result, err := credits.TopUp(ctx, operator, services.CreditRequest{
				ContractorID: args[0],
				Amount:       amount,
				ReferenceID:  reference,
				Description:  description,
			})
			if err != nil {
				return err
			}
			if result.Duplicate {
				printf(cmd.OutOrStdout(), "reference %s already credited, balance %s\n", reference, money.FormatMinor(result.Balance))
				return nil
			}
			printf(cmd.OutOrStdout(), "balance of %s is now %s\n", args[0], money.FormatMinor(result.Balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "external reference used for idempotency")
	cmd.Flags().StringVar(&description, "description", "manual top-up", "ledger description")
	return cmd
}

func newReconcileCommand(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List contractors whose stored balance differs from their ledger sum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, logger(cmd))
			if err != nil {
				return err
			}
			defer e.Close()
			return printDrift(cmd, e)
		},
	}
}
