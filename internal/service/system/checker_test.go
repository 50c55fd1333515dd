package system

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubDaemon struct {
	err error
}

func (s stubDaemon) Ping(context.Context) error { return s.err }

func (s stubDaemon) ServerVersion(context.Context) (string, error) { return "26.1.1", nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckAllPassing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
	}))
	defer srv.Close()

	var ran []string
	checker := NewChecker(stubDaemon{}, discard(), Options{
		LookPath: func(string) (string, error) { return "/usr/bin/docker", nil },
		Run: func(_ context.Context, name string, args ...string) error {
			ran = append(ran, name)
			ran = append(ran, args...)
			return nil
		},
		ProbeURL: srv.URL,
	})
	report := checker.Check(context.Background())
	if !report.Ready() {
		t.Fatalf("expected ready report, got %+v", report)
	}
	if report.DockerVersion != "26.1.1" {
		t.Fatalf("unexpected version %q", report.DockerVersion)
	}
	if len(ran) != 3 || ran[1] != "compose" || ran[2] != "version" {
		t.Fatalf("unexpected command %v", ran)
	}
	if report.Errors != nil {
		t.Fatalf("expected no errors, got %v", report.Errors)
	}
}

func TestCheckReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	checker := NewChecker(stubDaemon{err: errors.New("daemon down")}, discard(), Options{
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
		Run: func(context.Context, string, ...string) error {
			t.Error("compose should not run without docker")
			return nil
		},
		ProbeURL: srv.URL,
	})
	report := checker.Check(context.Background())
	if report.Docker || report.DockerCompose || report.DockerRunning || report.InternetConnection {
		t.Fatalf("expected every probe to fail, got %+v", report)
	}
	for _, key := range []string{"docker", "dockerRunning", "internetConnection"} {
		if report.Errors[key] == "" {
			t.Fatalf("expected error for %s, got %v", key, report.Errors)
		}
	}
}

func TestCheckWithoutDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()
	checker := NewChecker(nil, discard(), Options{
		LookPath: func(string) (string, error) { return "/usr/bin/docker", nil },
		Run:      func(context.Context, string, ...string) error { return nil },
		ProbeURL: srv.URL,
	})
	report := checker.Check(context.Background())
	if report.DockerRunning || report.Errors["dockerRunning"] == "" {
		t.Fatalf("expected docker running failure, got %+v", report)
	}
	if !report.Docker || !report.DockerCompose || !report.InternetConnection {
		t.Fatalf("expected other probes to pass, got %+v", report)
	}
}
