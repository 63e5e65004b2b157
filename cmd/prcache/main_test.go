package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_SetGetStats(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, "--dir", dir, "set", "repos/octo/app/pulls", `[{"number":1}]`, "--ttl", "1h"); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err := run(t, "--dir", dir, "-o", "json", "get", "repos/octo/app/pulls")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, `"number": 1`) {
		t.Errorf("get output = %q", out)
	}

	out, err = run(t, "--dir", dir, "-o", "yaml", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "entry_count: 1") || !strings.Contains(out, "total_size_bytes: 14") {
		t.Errorf("stats output = %q", out)
	}

	out, err = run(t, "--dir", dir, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if out != "repos/octo/app/pulls\n" {
		t.Errorf("ls output = %q", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := run(t, "--dir", dir, "get", "missing"); err == nil || !strings.Contains(err.Error(), "not cached") {
		t.Errorf("get missing = %v", err)
	}
	if _, err := run(t, "--dir", dir, "set", "k", "{not json"); err == nil {
		t.Error("set with invalid JSON should fail")
	}
	if _, err := run(t, "--dir", dir, "get"); err == nil {
		t.Error("get without key should fail")
	}
}

func TestCLI_RmClear(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"a", "b", "c"} {
		if _, err := run(t, "--dir", dir, "set", k, "1"); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	if _, err := run(t, "--dir", dir, "rm", "a", "nope"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	out, err := run(t, "--dir", dir, "clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "Removed 2 entries") {
		t.Errorf("clear output = %q", out)
	}
}

func TestCLI_MaxSizeFlag(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"a", "b"} {
		if _, err := run(t, "--dir", dir, "--max-size", "10", "set", k, `"12345678"`); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	out, err := run(t, "--dir", dir, "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if out != "b\n" {
		t.Errorf("ls after eviction = %q; want only b", out)
	}
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "prcache.yaml")
	body := "cache:\n  dir: " + dir + "\n  compression: s2\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := run(t, "--config", cfgPath, "set", "k", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*", "*.cache.s"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("compressed payload files = %v; want 1", matches)
	}

	if _, err := run(t, "--config", filepath.Join(dir, "missing.yaml"), "stats"); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestCLI_Fetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"login":"octocat"}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	dir := t.TempDir()
	for range 2 {
		out, err := run(t, "--dir", dir, "-o", "yaml", "fetch", "user", srv.URL)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if !strings.Contains(out, "login: octocat") {
			t.Errorf("fetch output = %q", out)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d; want 1 (second fetch cached)", got)
	}
}

func TestCLI_Prune(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "--dir", dir, "set", "k", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := run(t, "--dir", dir, "prune")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 1 files") {
		t.Errorf("prune output = %q", out)
	}
}
