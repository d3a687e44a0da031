package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/marcelsud/jobgate/budget/sqlite"
	"github.com/marcelsud/jobgate/config"
	"github.com/spf13/cobra"
)

func openBudgets() (*sqlite.Repository, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	return sqlite.NewRepository(cfg.BudgetDBPath)
}

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage tenant budgets in the local budget store",
	}
	cmd.AddCommand(budgetShowCmd(), budgetSetCmd(), budgetAddSpendCmd())
	return cmd
}

func budgetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [tenant_id]",
		Short: "Show one tenant's budget, or every budget when no tenant is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repo, err := openBudgets()
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			if len(args) == 1 {
				st, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s\tspend=%.2f\tlimit=%.2f\talert=%.2f\tgrace=%.2f\n",
					st.TenantID, st.Spend, st.Limit, st.AlertThreshold, st.GraceThreshold)
				return nil
			}

			all, err := repo.List(ctx)
			if err != nil {
				return err
			}
			for _, st := range all {
				fmt.Printf("%s\tspend=%.2f\tlimit=%.2f\n", st.TenantID, st.Spend, st.Limit)
			}
			return nil
		},
	}
}

func budgetSetCmd() *cobra.Command {
	var alert, grace float64
	cmd := &cobra.Command{
		Use:   "set [tenant_id] [limit]",
		Short: "Set a tenant's limit and optional thresholds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[1], err)
			}
			if alert > 0 && grace > 0 && alert >= grace {
				return fmt.Errorf("alert threshold must be below grace threshold")
			}

			ctx := context.Background()
			repo, err := openBudgets()
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			return repo.SetLimit(ctx, args[0], limit, alert, grace)
		},
	}
	cmd.Flags().Float64Var(&alert, "alert", 0, "Alert threshold fraction (0 uses the platform policy)")
	cmd.Flags().Float64Var(&grace, "grace", 0, "Grace threshold fraction (0 uses the platform policy)")
	return cmd
}

func budgetAddSpendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-spend [tenant_id] [amount]",
		Short: "Record spend against a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			ctx := context.Background()
			repo, err := openBudgets()
			if err != nil {
				return err
			}
			defer repo.Close(ctx)

			total, err := repo.AddSpend(ctx, args[0], amount)
			if err != nil {
				return err
			}
			fmt.Printf("%s\tspend=%.2f\n", args[0], total)
			return nil
		},
	}
}
