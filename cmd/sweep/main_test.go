package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Keep the caller's environment from leaking into the loaded sweep.
	for _, k := range []string{"SWEEP_LOG_LEVEL", "SWEEP_EXECUTABLE", "SWEEP_TEMPLATE", "SWEEP_LEDGER"} {
		t.Setenv(k, "")
	}

	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func generateArgs(dir string, extra ...string) []string {
	args := []string{
		"generate",
		"--data-dir", filepath.Join(dir, "data"),
		"--config-dir", filepath.Join(dir, "config"),
		"--repo-dir", filepath.Join(dir, "repo"),
	}
	return append(args, extra...)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestConditionsCmd(t *testing.T) {
	out, err := runCmd(t, "conditions", "--json")
	if err != nil {
		t.Fatalf("conditions failed: %v", err)
	}
	var got struct {
		Count      int `json:"count"`
		Conditions []struct {
			Name     string   `json:"name"`
			Verbatim []string `json:"verbatim"`
		} `json:"conditions"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Count != 22 || len(got.Conditions) != 22 {
		t.Fatalf("count = %d, want 22", got.Count)
	}
	if got.Conditions[21].Name != "C21" || len(got.Conditions[21].Verbatim) != 1 {
		t.Errorf("last condition = %+v", got.Conditions[21])
	}
}

func TestConditionsCmd_SweepFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	content := `
fixed_parameters:
  POP_SIZE: 10
axes:
  - name: TOURNAMENT_SIZE
    values: ["1", "8"]
  - name: MUT
    values: ["0.1", "0.2", "0.3"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "conditions", "--sweep", path)
	if err != nil {
		t.Fatalf("conditions failed: %v", err)
	}
	if !strings.Contains(out, "6 conditions across 2 axes") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "-MUT 0.2 -TOURNAMENT_SIZE 1") {
		t.Errorf("expected rendered arguments in output:\n%s", out)
	}
}

func TestConditionsCmd_RepeatedAxis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	content := `
axes:
  - name: MUT
    values: ["0.1"]
  - name: TOURNAMENT_SIZE
    values: ["1", "8"]
  - name: MUT
    values: ["0.2"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "conditions", "--sweep", path)
	if err != nil {
		t.Fatalf("conditions failed: %v", err)
	}
	if !strings.Contains(out, "4 conditions across 2 axes") {
		t.Errorf("repeated axis should extend the first:\n%s", out)
	}
}

func TestGenerateCmd_WritesScripts(t *testing.T) {
	dir := t.TempDir()
	out, err := runCmd(t, generateArgs(dir, "--hpc-account", "devolab")...)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "Generating 660 replicates across 22 conditions") {
		t.Errorf("unexpected output:\n%s", out)
	}

	scripts, err := filepath.Glob(filepath.Join(dir, "data", "jobs", "RUN_C*_P*.sb"))
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 44 {
		t.Fatalf("wrote %d scripts, want 44", len(scripts))
	}

	data, err := os.ReadFile(filepath.Join(dir, "data", "jobs", "RUN_C1_P2.sb"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"#SBATCH --account devolab",
		"#SBATCH --job-name C1_P2",
		"JOB_SEED_OFFSET=1030",
		"-PHASE_2_ACTIVE 1",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("RUN_C1_P2.sb missing %q", want)
		}
	}
	if strings.Contains(content, "<<") {
		t.Error("RUN_C1_P2.sb has unreplaced placeholders")
	}
}

func TestGenerateCmd_RequiresDirectories(t *testing.T) {
	if _, err := runCmd(t, "generate", "--data-dir", t.TempDir()); err == nil {
		t.Error("expected error without --config-dir and --repo-dir")
	}
}

func TestGenerateCmd_InvalidOptions(t *testing.T) {
	if _, err := runCmd(t, generateArgs(t.TempDir(), "--seeds-per-task", "0")...); err == nil {
		t.Error("expected error for --seeds-per-task 0")
	}
}

func TestGenerateCmd_DryRunJSON(t *testing.T) {
	dir := t.TempDir()
	out, err := runCmd(t, generateArgs(dir, "--dry-run", "--json", "--runs-per-subdir", "60")...)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var got struct {
		Report struct {
			DryRun  bool `json:"dry_run"`
			Shards  int  `json:"shards"`
			Scripts []struct {
				Path string `json:"path"`
			} `json:"scripts"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !got.Report.DryRun || len(got.Report.Scripts) != 44 {
		t.Errorf("report = %+v", got.Report)
	}
	// 30 replicates per condition, 60 per set: two conditions per set.
	if got.Report.Shards != 11 {
		t.Errorf("shards = %d, want 11", got.Report.Shards)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); !os.IsNotExist(err) {
		t.Error("dry run created the data directory")
	}
}

func TestGenerateCmd_Ledger(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "sweep.db")

	out, err := runCmd(t, generateArgs(dir, "--ledger", ledgerPath)...)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "in "+ledgerPath) {
		t.Errorf("expected ledger path in output:\n%s", out)
	}

	out, err = runCmd(t, "ledger", "--ledger", ledgerPath, "--json")
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}
	var sweeps struct {
		Count  int `json:"count"`
		Sweeps []struct {
			ID         string `json:"id"`
			Conditions int    `json:"conditions"`
		} `json:"sweeps"`
	}
	if err := json.Unmarshal([]byte(out), &sweeps); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sweeps.Count != 1 || sweeps.Sweeps[0].Conditions != 22 {
		t.Fatalf("sweeps = %+v", sweeps)
	}

	out, err = runCmd(t, "ledger", "--ledger", ledgerPath, "--id", sweeps.Sweeps[0].ID)
	if err != nil {
		t.Fatalf("ledger --id failed: %v", err)
	}
	if !strings.Contains(out, "C21_P2") {
		t.Errorf("expected C21_P2 in scripts listing:\n%s", out)
	}
}

func TestLedgerCmd_RunSummary(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	ledgerPath := filepath.Join(dir, "sweep.db")
	out := filepath.Join(dataDir, "RUN_C0_P1_1000", "output")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"run_config.csv":         "parameter,value\nPOP_SIZE,1000\n",
		"gene_stats.csv":         "update,avg_num_genes\n100,15\n200,14\n",
		"representative_org.csv": "update,fitness\n100,0.5\n200,0.75\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(out, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := runCmd(t, "aggregate", "--data", dataDir, "--dump", dir,
		"--updates", "200,100", "--ledger", ledgerPath); err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	stdout, err := runCmd(t, "ledger", "--ledger", ledgerPath, "--run", "RUN_C0_P1_1000", "--json")
	if err != nil {
		t.Fatalf("ledger --run failed: %v", err)
	}
	var got struct {
		Run  string              `json:"run"`
		Rows []map[string]string `json:"rows"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Run != "RUN_C0_P1_1000" || len(got.Rows) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Rows[0]["update"] != "100" || got.Rows[0]["fitness"] != "0.5" || got.Rows[1]["POP_SIZE"] != "1000" {
		t.Errorf("rows = %v", got.Rows)
	}

	stdout, err = runCmd(t, "ledger", "--ledger", ledgerPath, "--run", "RUN_C0_P1_1000")
	if err != nil {
		t.Fatalf("ledger --run failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "update,POP_SIZE,avg_num_genes,fitness\n100,1000,15,0.5\n") {
		t.Errorf("unexpected table:\n%s", stdout)
	}

	stdout, err = runCmd(t, "ledger", "--ledger", ledgerPath, "--run", "RUN_missing")
	if err != nil {
		t.Fatalf("ledger --run failed: %v", err)
	}
	if !strings.Contains(stdout, "No rows recorded for run RUN_missing.") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestLedgerCmd_RequiresLedger(t *testing.T) {
	if _, err := runCmd(t, "ledger"); err == nil {
		t.Error("expected error without a ledger")
	}
}

func TestAggregateCmd_MissingDataDir(t *testing.T) {
	_, err := runCmd(t, "aggregate", "--data", filepath.Join(t.TempDir(), "missing"), "--updates", "100")
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != -1 {
		t.Errorf("expected exit code -1, got %v", err)
	}
}

func TestAggregateCmd_NoUpdates(t *testing.T) {
	_, err := runCmd(t, "aggregate", "--data", t.TempDir())
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != -1 {
		t.Errorf("expected exit code -1, got %v", err)
	}
}

func TestAggregateCmd_WritesSummary(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	files := map[string]string{
		"run_config.csv":         "parameter,value\nPOP_SIZE,1000\nSUMMARY_INTERVAL,10\n",
		"gene_stats.csv":         "update,avg_num_genes\n100,15\n",
		"representative_org.csv": "update,gene_starts,site_cnt_3_gene_occupancy\n100,\"1,2\",7\n",
	}
	out := filepath.Join(dataDir, "RUN_C0_P1_1000", "output")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(out, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// A run that never started.
	if err := os.MkdirAll(filepath.Join(dataDir, "RUN_C0_P2_1000"), 0755); err != nil {
		t.Fatal(err)
	}

	dumpDir := filepath.Join(dir, "dump")
	stdout, err := runCmd(t, "aggregate", "--data", dataDir, "--dump", dumpDir, "--updates", "100")
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !strings.Contains(stdout, "Found 2 run directories.") || !strings.Contains(stdout, "RUN_C0_P2_1000") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dumpDir, "summary.csv"))
	if err != nil {
		t.Fatalf("summary.csv not written: %v", err)
	}
	want := "update,POP_SIZE,avg_num_genes,gene_starts\n100,1000,15,\"\"\"1,2\"\"\"\n"
	if string(data) != want {
		t.Errorf("summary.csv =\n%s\nwant\n%s", data, want)
	}
}
