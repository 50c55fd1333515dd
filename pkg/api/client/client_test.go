package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpdateEnvSendsBearerAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/projects/p1/env" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		body["KEPT"] = "yes"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"project_id": "p1", "env": body})
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	env, err := cli.UpdateEnv(context.Background(), "tok", "p1", map[string]string{"POSTGRES_PORT": "5555"})
	if err != nil {
		t.Fatalf("update env: %v", err)
	}
	if env["POSTGRES_PORT"] != "5555" || env["KEPT"] != "yes" {
		t.Fatalf("unexpected env %v", env)
	}
}

func TestErrorsCarryKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"value of A must be a string","kind":"InvalidPayload"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.UpdateEnv(context.Background(), "tok", "p1", map[string]string{"A": "1"})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Kind != "InvalidPayload" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestDefaultEnvTimestampQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timestamp"); got != "1700000000000" {
			t.Errorf("unexpected timestamp %q", got)
		}
		_, _ = w.Write([]byte(`{"env":{"KONG_HTTP_PORT":"8000"}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	ts := int64(1700000000000)
	env, err := cli.DefaultEnv(context.Background(), "tok", "p1", &ts)
	if err != nil {
		t.Fatalf("default env: %v", err)
	}
	if env["KONG_HTTP_PORT"] != "8000" {
		t.Fatalf("unexpected env %v", env)
	}
}

func TestDefaultEnvSendsZeroTimestamp(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"env":{}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	zero := int64(0)
	if _, err := cli.DefaultEnv(context.Background(), "tok", "p1", &zero); err != nil {
		t.Fatalf("default env: %v", err)
	}
	if _, err := cli.DefaultEnv(context.Background(), "tok", "p1", nil); err != nil {
		t.Fatalf("default env: %v", err)
	}
	if len(queries) != 2 || queries[0] != "timestamp=0" || queries[1] != "" {
		t.Fatalf("unexpected queries %q", queries)
	}
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("localhost:4000/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.baseURL != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
}
