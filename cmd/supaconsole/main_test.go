package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/multision/SupaConsole/pkg/jwt"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"POSTGRES_PORT=6543", "PGRST_DB_SCHEMAS=public,storage", "FLAG=a=b", "EMPTY="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{
		"POSTGRES_PORT":    "6543",
		"PGRST_DB_SCHEMAS": "public,storage",
		"FLAG":             "a=b",
		"EMPTY":            "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAssignmentsRejectsMissingKey(t *testing.T) {
	for _, arg := range []string{"NOVALUE", "=value", "HAS SPACE=v", "1KEY=v"} {
		if _, err := parseAssignments([]string{arg}); err == nil {
			t.Fatalf("expected error for %q", arg)
		}
	}
}

func TestDeriveCommandPrintsPorts(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"derive", "--timestamp", "1234"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !strings.Contains(out.String(), "KONG_HTTP_PORT=9234") {
		t.Fatalf("expected derived kong port, got:\n%s", out.String())
	}
}

func TestKeysCommandWithSecretFlag(t *testing.T) {
	secret := strings.Repeat("k", 40)
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"keys", "--secret", secret})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keys: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		_, token, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("unexpected line %q", line)
		}
		if _, err := jwt.ParseRoleKey(token, secret); err != nil {
			t.Fatalf("minted key does not verify: %v", err)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("SUPACONSOLE_CONFIG", filepath.Join(t.TempDir(), "cfg", "config.json"))
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if cfg.APIBaseURL != defaultAPIBase {
		t.Fatalf("expected default base, got %q", cfg.APIBaseURL)
	}
	cfg.SessionToken = "tok"
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveCommandAcceptsZeroTimestamp(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"derive", "--timestamp", "0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !strings.Contains(out.String(), "KONG_HTTP_PORT=8000\n") {
		t.Fatalf("expected ports derived from timestamp 0, got:\n%s", out.String())
	}
}
