package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gorla/domain/core"
	"gorla/domain/verdict"
	"gorla/internal/config"
	"gorla/internal/container"
	"gorla/internal/errors"
	"gorla/ports"
)

type ledgerFlags struct {
	configPath string
	url        string
	driver     string
}

func (f *ledgerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&f.url, "ledger-url", "", "ledger database URL (default LEDGER_DATABASE_URL)")
	cmd.Flags().StringVar(&f.driver, "ledger-driver", "", "ledger driver (postgres, sqlite)")
}

// open builds a container with the ledger attached
func (f *ledgerFlags) open(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.url != "" {
		cfg.Ledger.URL = f.url
	}
	if f.driver != "" {
		cfg.Ledger.Driver = f.driver
	}
	if cfg.Ledger.URL == "" {
		return nil, errors.ConfigInvalid("no ledger configured; use --ledger-url or LEDGER_DATABASE_URL")
	}

	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newHistoryCmd() *cobra.Command {
	var lf ledgerFlags
	var runID, status string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List audit rounds recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := lf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			records, err := queryHistory(cmd.Context(), c.Ledger, runID, status, limit, offset)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&runID, "run", "", "show every round of one run")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (validated, not_validated)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func queryHistory(ctx context.Context, ledger ports.LedgerReaderPort, runID, status string, limit, offset int) ([]verdict.AuditRecord, error) {
	if runID != "" {
		id, err := core.ParseRunID(runID)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		records, err := ledger.GetRun(ctx, id)
		if err != nil {
			return nil, errors.DatabaseError("failed to read run", err)
		}
		return records, nil
	}

	filters := ports.AuditFilters{Limit: limit, Offset: offset}
	if status != "" {
		s := verdict.VerdictStatus(status)
		if s != verdict.StatusValidated && s != verdict.StatusNotValidated {
			return nil, errors.InvalidInput(fmt.Sprintf("unknown status %q", status))
		}
		filters.Status = &s
	}
	records, err := ledger.ListAudits(ctx, filters)
	if err != nil {
		return nil, errors.DatabaseError("failed to list audits", err)
	}
	return records, nil
}

func printHistory(out io.Writer, records []verdict.AuditRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No audits recorded")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tROUND\tAUDIT\tMAX P\tEXPECTED\tMATCH\tSTATUS\tRECORDED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%s/%s\t%.6g\t%g\t%t\t%s\t%s\n",
			r.RunID, r.Round, r.AuditType, r.SocialChoice, r.MaxPValue, r.ExpectedPValue, r.Matches, r.Status, humanize.Time(r.CreatedAt))
	}
	w.Flush()
}

func newMigrateCmd() *cobra.Command {
	var lf ledgerFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the audit ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := lf.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Ledger schema is up to date")
			return nil
		},
	}

	lf.register(cmd)
	return cmd
}
