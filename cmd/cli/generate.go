package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gorla/adapters/excel"
	"gorla/domain/tally"
	"gorla/internal/errors"
	"gorla/internal/testkit"
)

type generateFlags struct {
	out          string
	tables       int
	ballots      int
	candidates   string
	seed         int64
	ballotSample int
	batchSample  int
	format       string
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic contest and a faithful recount sample",
		Long: `Generate a seeded contest for trying out verify.

Candidates are given as id[@party]:share, comma separated. The preliminary
count is written to <out>/preliminary.<format>. With --ballot-sample the
recount is one ballot-polling sample file; with --batch-sample every drawn
table is recounted into its own file.

Example:
  gorla generate --out demo --candidates x1@X:0.35,x2@X:0.25,y1@Y:0.4 --batch-sample 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.OutOrStdout(), f)
		},
	}

	def := testkit.DefaultContestConfig()
	flags := cmd.Flags()
	flags.StringVar(&f.out, "out", "contest", "output directory")
	flags.IntVar(&f.tables, "tables", def.Tables, "number of tables")
	flags.IntVar(&f.ballots, "ballots", def.BallotsPerTable, "ballots per table")
	flags.StringVar(&f.candidates, "candidates", "A:0.6,B:0.4", "candidates as id[@party]:share")
	flags.Int64Var(&f.seed, "seed", def.Seed, "random seed")
	flags.IntVar(&f.ballotSample, "ballot-sample", 0, "ballots drawn for a ballot-polling recount")
	flags.IntVar(&f.batchSample, "batch-sample", 0, "tables drawn for a batch-comparison recount")
	flags.StringVar(&f.format, "format", "csv", "file format (csv, xlsx)")

	return cmd
}

func runGenerate(out io.Writer, f generateFlags) error {
	if f.format != "csv" && f.format != "xlsx" {
		return errors.InvalidInput(fmt.Sprintf("unknown format %q", f.format))
	}
	if f.tables < 1 || f.ballots < 1 {
		return errors.InvalidInput("tables and ballots must be positive")
	}
	candidates, err := parseCandidates(f.candidates)
	if err != nil {
		return err
	}

	gen := testkit.NewContestGenerator(testkit.ContestGeneratorConfig{
		Tables:          f.tables,
		BallotsPerTable: f.ballots,
		Candidates:      candidates,
		Seed:            f.seed,
	})
	prelim := gen.Preliminary()

	recountDir := filepath.Join(f.out, "recount")
	if err := os.MkdirAll(recountDir, 0o755); err != nil {
		return errors.IOError("failed to create output directory", err)
	}

	prelimPath := filepath.Join(f.out, "preliminary."+f.format)
	if err := excel.WriteTable(prelimPath, prelim); err != nil {
		return errors.IOError("failed to write preliminary count", err)
	}

	files := 0
	if f.ballotSample > 0 {
		sample := gen.BallotSample(prelim, f.ballotSample)
		if err := excel.WriteTable(filepath.Join(recountDir, "sample."+f.format), sample); err != nil {
			return errors.IOError("failed to write ballot sample", err)
		}
		files++
	}
	if f.batchSample > 0 {
		sample := gen.BatchSample(prelim, f.batchSample)
		for _, id := range sample.TableIDs() {
			if err := excel.WriteTable(filepath.Join(recountDir, id+"."+f.format), sample.ForTable(id)); err != nil {
				return errors.IOError("failed to write table recount", err)
			}
			files++
		}
	}

	total := prelim.SumBy(tally.ColumnCandidate).Total()
	fmt.Fprintf(out, "Wrote %s (%s tables, %s votes) and %d recount file(s) to %s\n",
		prelimPath, humanize.Comma(int64(f.tables)), humanize.Comma(total), files, recountDir)
	return nil
}

// parseCandidates parses id[@party]:share lists
func parseCandidates(s string) ([]testkit.CandidateSpec, error) {
	var out []testkit.CandidateSpec
	sum := 0.0
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, shareText, ok := strings.Cut(item, ":")
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("candidate %q has no share", item))
		}
		share, err := strconv.ParseFloat(shareText, 64)
		if err != nil || share <= 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("candidate %q has an invalid share", item))
		}
		id, party, _ := strings.Cut(name, "@")
		if id == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("candidate %q has no id", item))
		}
		out = append(out, testkit.CandidateSpec{ID: id, Party: party, Share: share})
		sum += share
	}
	if len(out) < 2 {
		return nil, errors.InvalidInput("at least two candidates are needed")
	}
	for i := range out {
		out[i].Share /= sum
	}
	return out, nil
}
