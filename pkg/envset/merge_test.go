package envset

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeScenario(t *testing.T) {
	existing := Set{PostgresPort: "10000", KongHTTPPort: "8000"}
	got := Merge(existing, Set{PostgresPort: "5555"})
	want := Set{PostgresPort: "5555", KongHTTPPort: "8000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected merge (-want +got):\n%s", diff)
	}
	if existing[PostgresPort] != "10000" {
		t.Fatalf("merge mutated its input")
	}
}

func TestMergeIdentity(t *testing.T) {
	c := Derive(1700000001234)
	if diff := cmp.Diff(c, Merge(c, Set{})); diff != "" {
		t.Fatalf("merge with empty update changed the set:\n%s", diff)
	}
	if diff := cmp.Diff(c, Merge(c, nil)); diff != "" {
		t.Fatalf("merge with nil update changed the set:\n%s", diff)
	}
}

func TestMergeIdempotentAndUnion(t *testing.T) {
	c := Derive(42)
	u := Set{SMTPHost: "mail.internal", "EXTRA_FLAG": "on", JWTExpiry: "7200"}
	once := Merge(c, u)
	twice := Merge(once, u)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge not idempotent:\n%s", diff)
	}
	for k := range c {
		if _, ok := once[k]; !ok {
			t.Fatalf("merge dropped existing key %s", k)
		}
	}
	for k, v := range u {
		if once[k] != v {
			t.Fatalf("update key %s: expected %q, got %q", k, v, once[k])
		}
	}
}

func TestDecodeUpdate(t *testing.T) {
	got, err := DecodeUpdate([]byte(` {"POSTGRES_PORT":"5555","OPENAI_API_KEY":""} `))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Set{PostgresPort: "5555", OpenAIAPIKey: ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected decode (-want +got):\n%s", diff)
	}
}

func TestDecodeUpdateRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"empty":       ``,
		"array":       `["a"]`,
		"string":      `"POSTGRES_PORT"`,
		"null":        `null`,
		"number":      `{"POSTGRES_PORT":5555}`,
		"bool":        `{"DISABLE_SIGNUP":false}`,
		"nested":      `{"KONG":{"HTTP":"8000"}}`,
		"list value":  `{"KONG":["8000"]}`,
		"null value":  `{"KONG":null}`,
		"empty key":   `{"":"x"}`,
		"truncated":   `{"KONG":"8000"`,
		"newline key": `{"X\nKONG_HTTP_PORT":"1"}`,
		"equals key":  `{"A=B":"c"}`,
		"space key":   `{"has space":"v"}`,
		"digit first": `{"1KEY":"v"}`,
		"dash key":    `{"MY-KEY":"v"}`,
	}
	for name, body := range cases {
		if _, err := DecodeUpdate([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%s: expected ErrInvalidPayload, got %v", name, err)
		}
	}
}

func TestValidKey(t *testing.T) {
	for _, key := range []string{"POSTGRES_PORT", "_PRIVATE", "a1", "X"} {
		if !ValidKey(key) {
			t.Fatalf("expected %q to be valid", key)
		}
	}
	for _, key := range []string{"", "1A", "A B", "A=B", "A\nB", "Ä"} {
		if ValidKey(key) {
			t.Fatalf("expected %q to be invalid", key)
		}
	}
}

func TestDecodeUpdateCannotInjectRenderedLines(t *testing.T) {
	_, err := DecodeUpdate([]byte(`{"X\nKONG_HTTP_PORT":"1"}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
