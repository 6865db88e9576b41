package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gorla/app"
	"gorla/internal/audit"
	"gorla/internal/config"
	"gorla/internal/container"
)

type verifyFlags struct {
	configPath     string
	riskLimit      float64
	pvalue         float64
	winners        int
	socialChoice   string
	auditType      string
	preliminary    string
	recountDir     string
	rounds         bool
	workers        int
	securityFactor float64
	sheet          string
	ledgerURL      string
	ledgerDriver   string
	logLevel       string
}

func newVerifyCmd() *cobra.Command {
	var f verifyFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute the max p-value of an audit and compare it with the reported one",
		Long: `Verify a Ballot-Polling or Batch-Comparison Risk Limiting Audit.

The preliminary count and every recount file may be CSV or XLSX with the
columns table, candidate, votes and, for D'Hondt, party. Recount files are
concatenated unless --rounds is given, in which case each file is one audit
round, in file name order.

Flags override the YAML file given by --config, which overrides RLA_*
environment variables and .env.

Example:
  gorla verify -r 0.05 -p 0.042 -s plurality -a ballot-polling -f preliminary.csv -c recount/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadVerifyConfig(cmd, f)
			if err != nil {
				return err
			}
			return runVerify(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML configuration file")
	flags.Float64VarP(&f.riskLimit, "risk-limit", "r", 0, "risk limit for the RLA")
	flags.Float64VarP(&f.pvalue, "p-value", "p", 0, "reported p-value for the audit")
	flags.IntVarP(&f.winners, "winners", "n", 1, "number of winners for the election")
	flags.StringVarP(&f.socialChoice, "social-choice-function", "s", "", "social choice function (plurality, super, dhondt)")
	flags.StringVarP(&f.auditType, "audit-type", "a", "", "auditing scheme (ballot-polling, batch-comparison)")
	flags.StringVarP(&f.preliminary, "preliminary-count-file", "f", "", "path to the preliminary count file")
	flags.StringVarP(&f.recountDir, "recount-files", "c", "", "path to the directory of recount files")
	flags.BoolVar(&f.rounds, "rounds", false, "verify each recount file as its own round")
	flags.IntVar(&f.workers, "workers", 0, "parallel workers (default GOMAXPROCS)")
	flags.Float64Var(&f.securityFactor, "security-factor", 0, "batch-comparison security factor (default 0.95)")
	flags.StringVar(&f.sheet, "sheet", "", "XLSX sheet to read (default the first sheet)")
	flags.StringVar(&f.ledgerURL, "ledger-url", "", "record every round in this ledger database")
	flags.StringVar(&f.ledgerDriver, "ledger-driver", "", "ledger driver (postgres, sqlite); guessed from the URL")
	flags.StringVar(&f.logLevel, "log-level", "", "log level (error, warn, info, debug, trace)")

	return cmd
}

// loadVerifyConfig layers flags that were set explicitly over the loaded
// configuration and validates the result.
func loadVerifyConfig(cmd *cobra.Command, f verifyFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("risk-limit") {
		cfg.Audit.RiskLimit = f.riskLimit
	}
	if changed("p-value") {
		cfg.Audit.PValue = f.pvalue
	}
	if changed("winners") {
		cfg.Audit.Winners = f.winners
	}
	if changed("social-choice-function") {
		cfg.Audit.SocialChoice = f.socialChoice
	}
	if changed("audit-type") {
		cfg.Audit.Type = f.auditType
	}
	if changed("preliminary-count-file") {
		cfg.Input.Preliminary = f.preliminary
	}
	if changed("recount-files") {
		cfg.Input.RecountDir = f.recountDir
	}
	if changed("rounds") {
		cfg.Audit.Rounds = f.rounds
	}
	if changed("workers") {
		cfg.Audit.Workers = f.workers
	}
	if changed("security-factor") {
		cfg.Audit.SecurityFactor = f.securityFactor
	}
	if changed("sheet") {
		cfg.Input.Sheet = f.sheet
	}
	if changed("ledger-url") {
		cfg.Ledger.URL = f.ledgerURL
	}
	if changed("ledger-driver") {
		cfg.Ledger.Driver = f.ledgerDriver
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runVerify(ctx context.Context, out io.Writer, cfg *config.Config) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	result, err := c.AuditService.Verify(ctx, app.VerifyRequest{
		Params:          params,
		ExpectedPValue:  cfg.Audit.PValue,
		PreliminaryPath: cfg.Input.Preliminary,
		RecountDir:      cfg.Input.RecountDir,
		Rounds:          cfg.Audit.Rounds,
	})
	if err != nil {
		return err
	}

	printReport(out, params, result)

	if result.Verdict.Matches {
		fmt.Fprintln(out, "Audit validated correctly")
		return nil
	}
	fmt.Fprintf(out, "Audit result is incorrect, reached p-value of %v != %v\n", result.Verdict.MaxPValue, result.Verdict.Expected)
	return errMismatch
}

func printReport(out io.Writer, params audit.Params, result *app.VerifyResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Run\t%s\n", result.RunID)
	fmt.Fprintf(w, "Audit\t%s, %s, %d winner(s), risk limit %g\n", params.Type, params.SocialChoice, params.Winners, params.RiskLimit)
	fmt.Fprintf(w, "Winners\t%s\n", strings.Join(winners(result.Audit), ", "))
	fmt.Fprintf(w, "Preliminary\t%s\n", result.PreliminaryHash.Short())

	for _, r := range result.Rounds {
		fmt.Fprintf(w, "Round %d\t%s (%s rows)\tmax p-value %.6g\t%s\n",
			r.Round, strings.Join(r.Sources, ", "), humanize.Comma(int64(r.Rows)), r.Verdict.MaxPValue, r.Verdict.Status)
	}

	fmt.Fprintf(w, "Verdict\t%s at risk limit %g\n", result.Verdict.Status, result.Verdict.RiskLimit)
	fmt.Fprintf(w, "Runtime\t%s\n", result.Runtime.Round(time.Millisecond))
	w.Flush()
}

// winners lists the elected candidates; D'Hondt audits elect party members
func winners(a audit.Audit) []string {
	if d, ok := a.(*audit.DHondt); ok {
		return d.WinningCandidates()
	}
	return a.Winners()
}
