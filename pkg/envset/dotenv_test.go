package envset

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderOrderAndQuoting(t *testing.T) {
	s := Set{
		KongHTTPPort:              "8000",
		PostgresPassword:          "plain",
		StudioDefaultOrganization: "Default Organization",
		SMTPPass:                  "it's $ecret",
		"MY_FLAG":                 "1",
	}
	var buf bytes.Buffer
	if err := Render(&buf, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := strings.Join([]string{
		"# Secrets",
		"POSTGRES_PASSWORD=plain",
		"",
		"# Kong",
		"KONG_HTTP_PORT=8000",
		"",
		"# Email auth",
		`SMTP_PASS="it's \$ecret"`,
		"",
		"# Studio",
		"STUDIO_DEFAULT_ORGANIZATION='Default Organization'",
		"",
		"# Custom",
		"MY_FLAG=1",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected render:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderDerivedSetHasEveryKey(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Derive(1700000000000)); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, k := range KnownKeys {
		if !strings.Contains(out, "\n"+k+"=") && !strings.HasPrefix(out, k+"=") {
			t.Fatalf("rendered output missing %s", k)
		}
	}
}
