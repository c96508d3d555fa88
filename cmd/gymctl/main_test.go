package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type harness struct {
	t   *testing.T
	dir string
}

// newHarness points every GYMLEDGER_* setting at a temp directory.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GYMLEDGER_STORAGE_DRIVER", "text")
	t.Setenv("GYMLEDGER_DATA_FILE", filepath.Join(dir, "members.txt"))
	t.Setenv("GYMLEDGER_CAPACITY", "100")
	t.Setenv("GYMLEDGER_NEAR_EXPIRY_DAYS", "30")
	t.Setenv("GYMLEDGER_LOG_LEVEL", "error")
	t.Setenv("GYMLEDGER_LOG_FORMAT", "text")
	t.Setenv("GYMLEDGER_METRICS_FILE", "")
	t.Setenv("GYMLEDGER_TRACE_FILE", "")
	t.Setenv("GYMLEDGER_BACKUP_DRIVER", "none")
	return &harness{t: t, dir: dir}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-env", filepath.Join(h.dir, "absent.env"), "-today", "2024-01-10"}, args...)
	code := cli(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) must(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.run(args...)
	if code != exitOK {
		h.t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != exitUsage {
		t.Fatalf("no command should be a usage error, got %d", code)
	}
	if code, _, _ := h.run("frobnicate"); code != exitUsage {
		t.Fatalf("unknown command should exit %d, got %d", exitUsage, code)
	}
	if code, out, _ := h.run("help"); code != exitOK || !strings.Contains(out, "renew <id> <plan>") {
		t.Fatalf("help exited %d with %q", code, out)
	}
	if code, _, errOut := h.run("show", "abc"); code != exitUsage || !strings.Contains(errOut, "invalid member id") {
		t.Fatalf("bad id exited %d: %s", code, errOut)
	}
	if code, _, _ := h.run("renew", "1001"); code != exitUsage {
		t.Fatalf("missing plan should be a usage error, got %d", code)
	}
	stdout.Reset()
	stderr.Reset()
	if code := cli([]string{"-today", "2024-02-30", "list"}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("invalid -today should be a usage error, got %d", code)
	}
}

func TestMemberLifecycleThroughCLI(t *testing.T) {
	h := newHarness(t)
	out := h.must("seed")
	if !strings.Contains(out, "张三") || !strings.Contains(out, "---") {
		t.Fatalf("seed output missing demo members:\n%s", out)
	}
	if code, _, errOut := h.run("seed"); code != exitFail || !strings.Contains(errOut, "already holds records") {
		t.Fatalf("second seed exited %d: %s", code, errOut)
	}

	out = h.must("add", "-name", "Alice", "-gender", "female", "-age", "28", "-phone", "13500000000", "-plan", "monthly")
	if !strings.Contains(out, "added member 1005") || !strings.Contains(out, "2024-02-09") {
		t.Fatalf("unexpected add output %q", out)
	}
	if code, _, errOut := h.run("add", "-name", "Bob", "-gender", "male", "-age", "28", "-phone", "1350000000a", "-plan", "monthly"); code != exitFail || !strings.Contains(errOut, "phone") {
		t.Fatalf("invalid phone exited %d: %s", code, errOut)
	}

	if code, _, errOut := h.run("renew", "1003", "quarterly"); code != exitFail || !strings.Contains(errOut, "plan") {
		t.Fatalf("plan change on an active member exited %d: %s", code, errOut)
	}
	if out := h.must("renew", "1003", "monthly"); !strings.Contains(out, "extended by 30 days") {
		t.Fatalf("unexpected renew output %q", out)
	}
	if out := h.must("renew", "1002", "yearly"); !strings.Contains(out, "repurchased for 365 days") {
		t.Fatalf("unexpected fresh purchase output %q", out)
	}

	if code, _, _ := h.run("delete", "1001"); code != exitFail {
		t.Fatalf("deleting an active member should fail, got %d", code)
	}
	if out := h.must("deactivate", "1001"); !strings.Contains(out, "deactivated") {
		t.Fatalf("unexpected deactivate output %q", out)
	}
	if out := h.must("deactivate", "1001"); !strings.Contains(out, "already inactive") {
		t.Fatalf("second deactivate printed %q", out)
	}
	if out := h.must("delete", "1001"); !strings.Contains(out, "deleted") {
		t.Fatalf("unexpected delete output %q", out)
	}
	if code, _, _ := h.run("show", "1001"); code != exitFail {
		t.Fatalf("deleted member should not be found, got %d", code)
	}

	if out := h.must("phone", "1004", "13700000000"); !strings.Contains(out, "13700000000") {
		t.Fatalf("unexpected phone output %q", out)
	}
	if out := h.must("show", "1004"); !strings.Contains(out, "13700000000") || !strings.Contains(out, "赵六") {
		t.Fatalf("show did not reflect the saved phone:\n%s", out)
	}
	if out := h.must("search", "王"); !strings.Contains(out, "王五") || strings.Contains(out, "赵六") {
		t.Fatalf("unexpected search output:\n%s", out)
	}
	if code, _, _ := h.run("search", " "); code != exitFail {
		t.Fatalf("blank search keyword should fail, got %d", code)
	}
	if out := h.must("stats"); !strings.Contains(out, "4 members") {
		t.Fatalf("unexpected stats:\n%s", out)
	}
	if out := h.must("expiring"); !strings.Contains(out, "赵六") {
		t.Fatalf("quarterly member close to expiry missing:\n%s", out)
	}
}

func TestSyncPersistsExpiry(t *testing.T) {
	h := newHarness(t)
	h.must("add", "-name", "Carol", "-gender", "female", "-age", "40", "-phone", "13600000000", "-plan", "monthly")

	var stdout, stderr bytes.Buffer
	later := []string{"-env", filepath.Join(h.dir, "absent.env"), "-today", "2024-03-01", "sync"}
	if code := cli(later, &stdout, &stderr); code != exitOK || !strings.Contains(stdout.String(), "1 memberships expired") {
		t.Fatalf("sync exited %d: %s %s", code, stdout.String(), stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(h.dir, "members.txt"))
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	if !strings.Contains(string(data), "|0|0") {
		t.Fatalf("expired status was not saved: %q", data)
	}
	if out := h.must("save"); !strings.Contains(out, "members.txt") {
		t.Fatalf("unexpected save output %q", out)
	}
}

func TestObservabilityFiles(t *testing.T) {
	h := newHarness(t)
	metrics := filepath.Join(h.dir, "gym.prom")
	trace := filepath.Join(h.dir, "trace.jsonl")
	t.Setenv("GYMLEDGER_METRICS_FILE", metrics)
	t.Setenv("GYMLEDGER_TRACE_FILE", trace)
	h.must("seed")
	h.must("list")

	prom, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(prom), `gymledger_operations_total{operation="list",status="success"} 1`) {
		t.Fatalf("metrics file missing list counter:\n%s", prom)
	}
	lines, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if n := strings.Count(string(lines), "\n"); n < 4 {
		t.Fatalf("expected spans from both runs, got %d lines", n)
	}
}

func TestBackupCommands(t *testing.T) {
	h := newHarness(t)
	if code, _, errOut := h.run("backup"); code != exitFail || !strings.Contains(errOut, "not configured") {
		t.Fatalf("backup without a store exited %d: %s", code, errOut)
	}
	t.Setenv("GYMLEDGER_BACKUP_DRIVER", "fs")
	t.Setenv("GYMLEDGER_BACKUP_FS_ROOT", filepath.Join(h.dir, "snapshots"))
	if out := h.must("backups"); !strings.Contains(out, "no backups") {
		t.Fatalf("unexpected empty listing %q", out)
	}
	h.must("seed")
	if out := h.must("backup"); !strings.Contains(out, "members/2024-01-10/") {
		t.Fatalf("unexpected backup output %q", out)
	}
	out := h.must("backups")
	if !strings.Contains(out, "members/2024-01-10/") || !strings.Contains(out, "  4  ") {
		t.Fatalf("unexpected backup listing:\n%s", out)
	}
}

func TestConfigurationErrorsExitOne(t *testing.T) {
	h := newHarness(t)
	t.Setenv("GYMLEDGER_STORAGE_DRIVER", "csv")
	if code, _, errOut := h.run("list"); code != exitFail || !strings.Contains(errOut, "GYMLEDGER_STORAGE_DRIVER") {
		t.Fatalf("bad driver exited %d: %s", code, errOut)
	}
}
