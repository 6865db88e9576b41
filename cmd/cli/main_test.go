package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeContest(t *testing.T) (prelim, recount string) {
	t.Helper()
	dir := t.TempDir()
	prelim = filepath.Join(dir, "preliminary.csv")
	require.NoError(t, os.WriteFile(prelim, []byte(
		"table,candidate,votes\nt1,A,350\nt1,B,150\nt2,A,250\nt2,B,250\n"), 0o644))

	recount = filepath.Join(dir, "recount")
	require.NoError(t, os.Mkdir(recount, 0o755))
	for _, name := range []string{"r1.csv", "r2.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(recount, name), []byte(
			"table,candidate,votes\n"+name+",A,60\n"+name+",B,40\n"), 0o644))
	}
	return prelim, recount
}

func TestVerify_Matches(t *testing.T) {
	prelim, recount := writeContest(t)

	out, err := execute(t, "verify", "-r", "0.1", "-p", "0.018", "-s", "plurality", "-a", "ballot-polling",
		"-f", prelim, "-c", recount, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Audit validated correctly")
	assert.Contains(t, out, "validated at risk limit 0.1")
}

func TestVerify_Mismatch(t *testing.T) {
	prelim, recount := writeContest(t)

	out, err := execute(t, "verify", "-r", "0.1", "-p", "0.5", "-s", "plurality", "-a", "ballot-polling",
		"-f", prelim, "-c", recount, "--rounds", "--log-level", "error")
	require.ErrorIs(t, err, errMismatch)
	assert.Contains(t, out, "Audit result is incorrect, reached p-value of 0.0178")
	assert.Contains(t, out, "!= 0.5")
	assert.Contains(t, out, "Round 2")
}

func TestVerify_InvalidConfig(t *testing.T) {
	prelim, recount := writeContest(t)

	code := run(context.Background(), []string{"verify", "-r", "2", "-p", "0.1", "-s", "plurality",
		"-a", "ballot-polling", "-f", prelim, "-c", recount})
	assert.Equal(t, 2, code)

	code = run(context.Background(), []string{"verify", "-r", "0.1", "-p", "0.1", "-s", "plurality",
		"-a", "ballot-polling", "-f", filepath.Join(t.TempDir(), "none.csv"), "-c", recount, "--log-level", "error"})
	assert.Equal(t, 5, code)
}

func TestVerify_LedgerAndHistory(t *testing.T) {
	prelim, recount := writeContest(t)
	ledger := filepath.Join(t.TempDir(), "ledger.db")

	_, err := execute(t, "verify", "-r", "0.1", "-p", "0.018", "-s", "plurality", "-a", "ballot-polling",
		"-f", prelim, "-c", recount, "--rounds", "--ledger-url", ledger, "--log-level", "error")
	require.NoError(t, err)

	out, err := execute(t, "history", "--ledger-url", ledger)
	require.NoError(t, err)
	assert.Contains(t, out, "ballot-polling/plurality")
	assert.Contains(t, out, "not_validated")

	out, err = execute(t, "history", "--ledger-url", ledger, "--status", "bogus")
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestGenerateThenVerify(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo")

	out, err := execute(t, "generate", "--out", dir, "--tables", "10", "--ballots", "100",
		"--candidates", "A:0.7,B:0.3", "--batch-sample", "5", "--format", "xlsx")
	require.NoError(t, err)
	assert.Contains(t, out, "1,000 votes")

	entries, err := os.ReadDir(filepath.Join(dir, "recount"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	out, err = execute(t, "verify", "-r", "0.1", "-p", "0", "-s", "plurality", "-a", "batch-comparison",
		"-f", filepath.Join(dir, "preliminary.xlsx"), "-c", filepath.Join(dir, "recount"), "--log-level", "error")
	if err != nil {
		require.ErrorIs(t, err, errMismatch)
	}
	assert.Contains(t, out, "Verdict")
}

func TestParseCandidates(t *testing.T) {
	got, err := parseCandidates("x1@X:3, y1@Y:1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "X", got[0].Party)
	assert.Equal(t, 0.75, got[0].Share)

	for _, bad := range []string{"A", "A:0.5", "A:x,B:1", "@X:1,B:1", "A:-1,B:1"} {
		_, err := parseCandidates(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gorla dev\n", out)
}
