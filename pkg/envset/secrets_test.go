package envset

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/multision/SupaConsole/pkg/jwt"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestRandomStringAlphabetAndLength(t *testing.T) {
	rnd := seeded()
	for _, n := range []int{0, 1, 16, 64} {
		s := RandomString(rnd, n)
		if len(s) != n {
			t.Fatalf("expected length %d, got %d", n, len(s))
		}
		for _, r := range s {
			if !strings.ContainsRune(alphanumeric, r) {
				t.Fatalf("unexpected character %q in %q", r, s)
			}
		}
	}
}

func TestRegenerateLengthsAndPorts(t *testing.T) {
	const ts = int64(1700000004321)
	update, err := Regenerate(ts, seeded(), nil)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	lengths := map[string]int{
		PostgresPassword:           32,
		JWTSecret:                  40,
		DashboardPassword:          16,
		SecretKeyBase:              64,
		VaultEncKey:                32,
		LogflarePublicAccessToken:  64,
		LogflarePrivateAccessToken: 64,
	}
	for k, n := range lengths {
		if len(update[k]) != n {
			t.Fatalf("%s: expected length %d, got %d", k, n, len(update[k]))
		}
	}
	if update[KongHTTPPort] != strconv.Itoa(8000+4321) {
		t.Fatalf("unexpected KONG_HTTP_PORT %s", update[KongHTTPPort])
	}
	if update[SiteURL] != "http://localhost:12421" {
		t.Fatalf("unexpected SITE_URL %s", update[SiteURL])
	}
	if update[PoolerTenantID] != "project-1700000004321" {
		t.Fatalf("unexpected tenant id %s", update[PoolerTenantID])
	}

	anon, err := jwt.ParseRoleKey(update[AnonKey], update[JWTSecret])
	if err != nil || anon.Role != jwt.RoleAnon {
		t.Fatalf("anon key does not verify against new secret: %v", err)
	}
	service, err := jwt.ParseRoleKey(update[ServiceRoleKey], update[JWTSecret])
	if err != nil || service.Role != jwt.RoleServiceRole {
		t.Fatalf("service key does not verify against new secret: %v", err)
	}
}

func TestRegenerateKeepsUntouchedKeysWhenMerged(t *testing.T) {
	existing := Derive(1)
	existing[SMTPHost] = "smtp.example.net"
	update, err := Regenerate(2, seeded(), nil)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	merged := Merge(existing, update)
	if merged[SMTPHost] != "smtp.example.net" {
		t.Fatalf("regeneration dropped a user edit")
	}
	if merged[JWTSecret] == existing[JWTSecret] {
		t.Fatalf("expected JWT secret to change")
	}
}

func TestRegenerateIssuerFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Regenerate(1, seeded(), func(jwt.Role, string) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected issuer error, got %v", err)
	}
}
