// Package main содержит операторскую утилиту сервиса projectdesk.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmeshcher/projectdesk/internal/config"
	"github.com/mmeshcher/projectdesk/internal/middleware"
	"github.com/mmeshcher/projectdesk/internal/money"
	"github.com/mmeshcher/projectdesk/internal/repository"
	"github.com/mmeshcher/projectdesk/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "projectdesk-admin",
		Short:         "Operator tools for projectdesk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reconcileInvoiceCmd())
	rootCmd.AddCommand(recalcProgressCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openService подключается к базе из окружения. Хранилище в памяти здесь бессмысленно.
func openService() (*service.Service, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURI == "" {
		return nil, errors.New("DATABASE_URI is required")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return service.NewService(repo, logger), nil
}

func reconcileInvoiceCmd() *cobra.Command {
	var ownerID, invoiceID string

	cmd := &cobra.Command{
		Use:   "reconcile-invoice",
		Short: "Recompute paid amount and status of an invoice from its payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			invoice, err := svc.ReconcileInvoice(cmd.Context(), ownerID, invoiceID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "invoice %s: paid %s of %s, status %s\n",
				invoice.Number,
				money.FromMinor(invoice.PaidAmount).StringFixed(money.Scale),
				money.FromMinor(invoice.TotalAmount).StringFixed(money.Scale),
				invoice.Status,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.Flags().StringVar(&invoiceID, "invoice", "", "invoice id")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("invoice")

	return cmd
}

func recalcProgressCmd() *cobra.Command {
	var ownerID, projectID string

	cmd := &cobra.Command{
		Use:   "recalc-progress",
		Short: "Recompute project progress from its tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			progress, err := svc.RecalculateProgress(cmd.Context(), ownerID, projectID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "project %s: progress %d%%\n", projectID, progress)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		ownerID string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an owner token signed with AUTH_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.AuthSecret == "" {
				return errors.New("AUTH_SECRET is required")
			}

			token, err := middleware.NewAuthMiddleware(cfg.AuthSecret).IssueToken(ownerID, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
